package util

import (
	"testing"

	"github.com/claucondor/more-liquidation-bot/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestExtractGasCost(t *testing.T) {
	r := types.TxReceipt{GasUsed: "0x5208", EffectiveGasPrice: "0x3b9aca00"}
	cost, err := ExtractGasCost(r)
	assert.NoError(t, err)
	assert.Equal(t, int64(21000*1000000000), cost.Int64())
}

func TestExtractGasCostInvalid(t *testing.T) {
	r := types.TxReceipt{GasUsed: "not-a-number", EffectiveGasPrice: "0x1"}
	_, err := ExtractGasCost(r)
	assert.Error(t, err)
}
