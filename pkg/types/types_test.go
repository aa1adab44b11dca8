package types

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthFactorBands(t *testing.T) {
	one := NewHealthFactorFromRaw(new(big.Int).Set(hfScale))
	assert.True(t, one.IsLiquidatable())
	assert.True(t, one.IsWarm())

	belowOne := NewHealthFactorFromRaw(big.NewInt(900000000000000000)) // 0.9
	assert.True(t, belowOne.IsLiquidatable())
	assert.False(t, belowOne.IsWarm())

	warm := NewHealthFactorFromRaw(big.NewInt(1050000000000000000)) // 1.05
	assert.False(t, warm.IsLiquidatable())
	assert.True(t, warm.IsWarm())

	edge := NewHealthFactorFromRaw(big.NewInt(1100000000000000000)) // 1.10 exactly, not warm
	assert.False(t, edge.IsWarm())

	healthy := NewHealthFactorFromRaw(big.NewInt(2000000000000000000)) // 2.0
	assert.False(t, healthy.IsLiquidatable())
	assert.False(t, healthy.IsWarm())
}

func TestHealthFactorPriceDropToLiquidate(t *testing.T) {
	// HF = 1.25 -> drop = (1 - 1/1.25)*100 = 20%
	hf := NewHealthFactorFromRaw(big.NewInt(1250000000000000000))
	drop := hf.PriceDropToLiquidate()
	assert.InDelta(t, 20.0, drop, 0.01)
}

func TestPriceMulAmount(t *testing.T) {
	// price = $2000.00000000 (8 decimals), amount = 1.5 tokens at 18 decimals
	price := NewPriceFromRaw(new(big.Int).Mul(big.NewInt(2000), priceScale))
	amount := new(big.Int).Mul(big.NewInt(15), new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil))
	value := price.MulAmount(amount, 18)
	expected := new(big.Int).Mul(big.NewInt(3000), priceScale)
	assert.Equal(t, expected.String(), value.String())
}

func TestStrategyPriority(t *testing.T) {
	assert.Less(t, StableKittyOverAaveFlash.Priority(), StableKittyOverV3Flash.Priority())
	assert.Less(t, StableKittyOverV3Flash.Priority(), V2FlashSwap.Priority())
	assert.Less(t, V2FlashSwap.Priority(), V3Flash.Priority())
	assert.Less(t, V3Flash.Priority(), V2DirectOverAaveFlash.Priority())
	assert.Less(t, V2DirectOverAaveFlash.Priority(), V3DirectOverAaveFlash.Priority())
	assert.Less(t, V3DirectOverAaveFlash.Priority(), AggregatorOverAaveFlash.Priority())
}

func TestQuoteIsUsable(t *testing.T) {
	q := Quote{AmountIn: big.NewInt(100), AmountOut: big.NewInt(150)}
	assert.True(t, q.IsUsable(big.NewInt(40)))
	assert.False(t, q.IsUsable(big.NewInt(50)))
}

func TestPreparedLiquidationFreshness(t *testing.T) {
	now := time.Now()
	p := PreparedLiquidation{CreatedAt: now.Add(-2 * time.Second)}
	assert.True(t, p.IsFresh(3*time.Second, now))
	assert.False(t, p.IsFresh(1*time.Second, now))
}

func TestTxReceiptParsing(t *testing.T) {
	r := TxReceipt{GasUsed: "0x5208", EffectiveGasPrice: "0x3b9aca00", Status: "0x1"}
	gas, err := r.GasUsedBig()
	assert.NoError(t, err)
	assert.Equal(t, int64(21000), gas.Int64())

	gasPrice, err := r.EffectiveGasPriceBig()
	assert.NoError(t, err)
	assert.Equal(t, int64(1000000000), gasPrice.Int64())

	assert.True(t, r.Succeeded())
}
