package multicall

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const balanceOfABIJSON = `[{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

func TestBuildCall(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(balanceOfABIJSON))
	require.NoError(t, err)

	target := common.HexToAddress("0xAB")
	owner := common.HexToAddress("0xCD")

	call, err := BuildCall(target, &parsed, "balanceOf", owner)
	require.NoError(t, err)
	assert.Equal(t, target, call.Target)
	assert.True(t, call.AllowFailure)
	assert.NotEmpty(t, call.CallData)
}

func TestBuildCallBadMethod(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(balanceOfABIJSON))
	require.NoError(t, err)

	_, err = BuildCall(common.HexToAddress("0xAB"), &parsed, "nonexistent")
	assert.Error(t, err)
}

func TestNewClientParsesABI(t *testing.T) {
	c, err := NewClient(nil, common.HexToAddress("0x1"))
	require.NoError(t, err)
	assert.NotNil(t, c.abi.Methods["aggregate3"])
}
