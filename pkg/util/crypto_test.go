package util

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func seal(t *testing.T, key []byte, plain string) string {
	t.Helper()
	block, err := aes.NewCipher(key)
	assert.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	assert.NoError(t, err)
	nonce := make([]byte, gcm.NonceSize())
	_, err = rand.Read(nonce)
	assert.NoError(t, err)
	sealed := gcm.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed)
}

func TestDecryptRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	encoded := seal(t, key, "super-secret-private-key")

	out, err := Decrypt(key, encoded)
	assert.NoError(t, err)
	assert.Equal(t, "super-secret-private-key", out)
}

func TestDecryptBadKey(t *testing.T) {
	key := make([]byte, 32)
	encoded := seal(t, key, "secret")

	wrongKey := make([]byte, 32)
	wrongKey[0] = 1
	_, err := Decrypt(wrongKey, encoded)
	assert.Error(t, err)
}
