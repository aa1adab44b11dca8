package txlistener

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewTxListenerDefaults(t *testing.T) {
	l := NewTxListener(nil)
	assert.Equal(t, 3*time.Second, l.pollInterval)
	assert.Equal(t, 5*time.Minute, l.timeout)
}

func TestNewTxListenerOptions(t *testing.T) {
	l := NewTxListener(nil, WithPollInterval(time.Second), WithTimeout(10*time.Second))
	assert.Equal(t, time.Second, l.pollInterval)
	assert.Equal(t, 10*time.Second, l.timeout)
}
