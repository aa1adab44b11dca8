package contractclient

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agenttypes "github.com/claucondor/more-liquidation-bot/pkg/types"
)

const erc20ABIJSON = `[
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"}
]`

func mustABI(t *testing.T) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	require.NoError(t, err)
	return parsed
}

func TestDecodeTransaction(t *testing.T) {
	parsed := mustABI(t)
	cc := NewContractClient(nil, common.HexToAddress("0x1"), parsed)

	to := common.HexToAddress("0x2")
	amount := big.NewInt(1000000000000000000)
	data, err := parsed.Pack("transfer", to, amount)
	require.NoError(t, err)

	decoded, err := cc.DecodeTransaction(data)
	require.NoError(t, err)
	assert.Equal(t, "transfer", decoded.Method)
	assert.Len(t, decoded.Args, 2)
}

func TestDecodeTransactionTooShort(t *testing.T) {
	parsed := mustABI(t)
	cc := NewContractClient(nil, common.HexToAddress("0x1"), parsed)

	_, err := cc.DecodeTransaction([]byte{0x01, 0x02})
	assert.Error(t, err)
}

func TestParseReceiptFindsEvent(t *testing.T) {
	parsed := mustABI(t)
	addr := common.HexToAddress("0x1")
	cc := NewContractClient(nil, addr, parsed)

	transferEvent := parsed.Events["Transfer"]
	receipt := agenttypes.TxReceipt{
		Logs: []agenttypes.TxLog{
			{Address: addr, Topics: []common.Hash{transferEvent.ID}},
		},
	}

	name, err := cc.ParseReceipt(receipt)
	require.NoError(t, err)
	assert.Equal(t, "Transfer", name)
}

func TestParseReceiptNoMatch(t *testing.T) {
	parsed := mustABI(t)
	cc := NewContractClient(nil, common.HexToAddress("0x1"), parsed)

	_, err := cc.ParseReceipt(agenttypes.TxReceipt{})
	assert.Error(t, err)
}
