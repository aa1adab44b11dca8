package util

import "math/big"

// tickMagic holds the Uniswap-V3-style per-bit Q128.128 multipliers used by
// TickToSqrtPriceX96, indexed by which bit of |tick| is set.
var tickMagic = []string{
	"fffcb933bd6fad37aa2d162d1a594001",
	"fff97272373d413259a46990580e213a",
	"fff2e50f5f656932ef12357cf3c7fdcc",
	"ffe5caca7e10e4e61c3624eaa0941cd0",
	"ffcb9843d60f6159c9db58835c926644",
	"ff973b41fa98c081472e6896dfb254c0",
	"ff2ea16466c96a3843ec78b326b52861",
	"fe5dee046a99a2a811c461f1969c3053",
	"fcbe86c7900a88aedcffc83b479aa3a4",
	"f987a7253ac413176f2b074cf7815e54",
	"f3392b0822b70005940c7a398e4b70f3",
	"e7159475a2c29b7443b29c7fa6e889d9",
	"d097f3bdfd2022b8845ad8f792aa5825",
	"a9f746462d870fdf8a65dc1f90e061e5",
	"70d869a156d2a1b890bb3df62baf32f7",
	"31be135f97d08fd981231505542fcfa6",
	"09aa508b5b7a84e1c677de54f3e99bc9",
	"005d6af8dedb81196699c329225ee604",
	"002216e584f5fa1ea926041bedfe98",
	"0048a170391f7dc42444e8fa2",
}

var q128 = new(big.Int).Lsh(big.NewInt(1), 128)
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// TickToSqrtPriceX96 computes the Q64.96 sqrt-price for a given tick,
// following the standard Uniswap V3 tick-math bit-multiplication algorithm.
// Grounded on the teacher's `pkg/util.TickToSqrtPriceX96`. The probe's V3
// quote does not call it: it reads sqrtPriceX96 from slot0 directly and
// prices through QuoteV3ExactIn.
func TickToSqrtPriceX96(tick int) *big.Int {
	absTick := tick
	neg := tick < 0
	if neg {
		absTick = -absTick
	}

	ratio := new(big.Int)
	if absTick&0x1 != 0 {
		ratio.SetString(tickMagic[0], 16)
	} else {
		ratio.Set(q128)
	}

	for i := 1; i < len(tickMagic); i++ {
		bit := 1 << uint(i)
		if absTick&bit != 0 {
			magic := new(big.Int)
			magic.SetString(tickMagic[i], 16)
			ratio.Mul(ratio, magic)
			ratio.Rsh(ratio, 128)
		}
	}

	if !neg {
		ratio.Div(maxUint256, ratio)
	}

	// Q128.128 -> Q64.96, rounding up.
	sqrtPriceX96 := new(big.Int).Rsh(ratio, 32)
	remainder := new(big.Int).And(ratio, big.NewInt(0xFFFFFFFF))
	if remainder.Sign() != 0 {
		sqrtPriceX96.Add(sqrtPriceX96, big.NewInt(1))
	}
	return sqrtPriceX96
}

// q96Squared is 2^192, the Q64.96 sqrtPrice normalization divisor.
var q96Squared = new(big.Int).Lsh(big.NewInt(1), 192)

// SqrtPriceToPrice converts a Q64.96 sqrtPriceX96 reading into a raw price
// (token1 per token0, with no decimals adjustment applied). Callers scale
// by 10^(decimals0-decimals1) for a human/display price. Grounded on the
// teacher's `pkg/util.SqrtPriceToPrice`.
func SqrtPriceToPrice(sqrtPriceX96 *big.Int) *big.Float {
	num := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	return new(big.Float).Quo(new(big.Float).SetInt(num), new(big.Float).SetInt(q96Squared))
}

// QuoteV3ExactIn estimates the exact-integer output of a single-tick V3 swap
// from the pool's current sqrtPriceX96, ignoring tick-crossing slippage:
//
//	amountOut = amountIn * (sqrtPrice^2 / 2^192) * (1 - feeMicro/1e6)
//
// zeroForOne selects the direction: true means token0 is the input. This is
// a cheap batchable approximation (probe C3) used to rank venues and seed
// the adaptive sizer; the executor always re-validates the chosen strategy
// by simulation before submission (see Open Question resolution #2 in
// DESIGN.md).
func QuoteV3ExactIn(sqrtPriceX96 *big.Int, feeMicro uint32, amountIn *big.Int, zeroForOne bool) *big.Int {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return big.NewInt(0)
	}
	sqrtSquared := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)

	var gross *big.Int
	if zeroForOne {
		gross = new(big.Int).Mul(amountIn, sqrtSquared)
		gross.Div(gross, q96Squared)
	} else {
		gross = new(big.Int).Mul(amountIn, q96Squared)
		gross.Div(gross, sqrtSquared)
	}

	feeNumerator := big.NewInt(1_000_000 - int64(feeMicro))
	gross.Mul(gross, feeNumerator)
	gross.Div(gross, big.NewInt(1_000_000))
	return gross
}
