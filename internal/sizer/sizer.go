// Package sizer implements the adaptive sizer (C5): a close-fraction
// ladder of candidate liquidation sizes, each priced for expected
// collateral seized and ranked by profit net of gas. Grounded on the
// teacher's `Mint` capital-utilization-ladder logic in `blackhole.go`,
// generalized from a single 50/50 mint split to the {10,25,50}% debt
// close-fraction ladder.
package sizer

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/claucondor/more-liquidation-bot/pkg/types"
)

// Ladder is the close-fraction ladder tried in order, in basis points of
// total outstanding debt. BuildDebtToCover keeps each rung within the
// protocol's close-factor ceiling (I1) and within the borrower's actual debt
// balance, from the totalDebt/maxCloseBp the caller supplies.
var Ladder = []int{1000, 2500, 5000}

// DefaultConservativeFactorBp is spec.md I2's CONSERVATIVE_FACTOR (0.99),
// expressed in basis points so ExpectedCollateralSeized stays big.Int math.
const DefaultConservativeFactorBp = 9900

// BuildDebtToCover computes a candidate debtToCover for one ladder rung:
//
//	debtToCover = min(totalDebt, totalDebt * min(fractionBp, maxCloseBp)/10000 * (1 + interestBufferBp/10000))
//
// The interest buffer is applied exactly once, here (DESIGN.md Open
// Question resolution #3) — no other component re-applies it.
func BuildDebtToCover(totalDebt *big.Int, fractionBp, interestBufferBp, maxCloseBp int) *big.Int {
	if fractionBp > maxCloseBp {
		fractionBp = maxCloseBp
	}
	base := new(big.Int).Mul(totalDebt, big.NewInt(int64(fractionBp)))
	base.Div(base, big.NewInt(10000))

	buffered := new(big.Int).Mul(base, big.NewInt(int64(10000+interestBufferBp)))
	buffered.Div(buffered, big.NewInt(10000))

	if buffered.Cmp(totalDebt) > 0 {
		return new(big.Int).Set(totalDebt)
	}
	return buffered
}

// ExpectedCollateralSeized converts a debtToCover amount into the
// collateral amount a liquidation would seize, applying the protocol's
// liquidation bonus and then spec.md I2's conservative factor:
//
//	debtValue = debtToCover * debtPrice / 10^debtDecimals
//	seizedValue = debtValue * liquidationBonusBp / 10000
//	seizedAmount = floor(seizedValue * 10^collateralDecimals / collateralPrice) * conservativeFactorBp / 10000
//
// conservativeFactorBp is spec.md I2's CONSERVATIVE_FACTOR (0.99 ==
// 9900bp by default, DefaultConservativeFactorBp) applied as the final
// step so the encoded Amount/TransferAmount always undershoots the raw
// bonus-adjusted value rather than risk a revert from oracle drift between
// quoting and submission.
func ExpectedCollateralSeized(
	debtToCover *big.Int,
	debtPrice types.Price,
	debtDecimals int,
	collateralPrice types.Price,
	collateralDecimals int,
	liquidationBonusBp int,
	conservativeFactorBp int,
) *big.Int {
	debtValue := debtPrice.MulAmount(debtToCover, debtDecimals)

	seizedValue := new(big.Int).Mul(debtValue, big.NewInt(int64(liquidationBonusBp)))
	seizedValue.Div(seizedValue, big.NewInt(10000))

	if collateralPrice.IsZero() {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(seizedValue, pow10(collateralDecimals))
	seizedAmount := num.Div(num, collateralPrice.Raw())

	conservative := new(big.Int).Mul(seizedAmount, big.NewInt(int64(conservativeFactorBp)))
	return conservative.Div(conservative, big.NewInt(10000))
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Candidate is one priced, quoted ladder rung.
type Candidate struct {
	FractionBp               int
	DebtToCover              *big.Int
	ExpectedCollateralSeized *big.Int
	Quote                    types.Quote
	EstimatedProfitUSD       decimal.Decimal
	EstimatedGasCostUSD      decimal.Decimal
}

// NetUSD is the candidate's profit net of its own gas estimate, the
// ranking criterion.
func (c Candidate) NetUSD() decimal.Decimal {
	return c.EstimatedProfitUSD.Sub(c.EstimatedGasCostUSD)
}

// Rank picks the candidate with the greatest net USD value. Float
// arithmetic (via shopspring/decimal) is confined to this ranking step —
// every upstream amount (debtToCover, seized collateral) stays exact
// big.Int math.
func Rank(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.NetUSD().GreaterThan(best.NetUSD()) {
			best = c
		}
	}
	if best.NetUSD().IsNegative() {
		return Candidate{}, false
	}
	return best, true
}
