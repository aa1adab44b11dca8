// Package util holds small leaf helpers shared across the binding and
// probe layers: ABI loading, sqrtPrice math, and private-key decryption.
package util

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// LoadABI reads a plain ABI JSON array from path.
func LoadABI(path string) (abi.ABI, error) {
	f, err := os.Open(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("open abi %s: %w", path, err)
	}
	defer f.Close()

	parsed, err := abi.JSON(f)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi %s: %w", path, err)
	}
	return parsed, nil
}

// hardhatArtifact is the subset of a Hardhat/Foundry build artifact this
// agent needs.
type hardhatArtifact struct {
	ABI json.RawMessage `json:"abi"`
}

// LoadABIFromHardhatArtifact reads a Hardhat-style build artifact
// (`{"abi": [...], "bytecode": "...", ...}`) and returns only its ABI.
func LoadABIFromHardhatArtifact(path string) (abi.ABI, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("read artifact %s: %w", path, err)
	}

	var artifact hardhatArtifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return abi.ABI{}, fmt.Errorf("unmarshal artifact %s: %w", path, err)
	}

	parsed, err := abi.JSON(strings.NewReader(string(artifact.ABI)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse artifact abi %s: %w", path, err)
	}
	return parsed, nil
}

// Hex2Bytes decodes a hex string, tolerating an optional "0x" prefix.
func Hex2Bytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}
