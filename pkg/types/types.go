// Package types holds the core data model shared across the liquidation
// pipeline: borrower/asset identifiers, fixed-point Price and HealthFactor,
// positions, pool references, strategies, quotes and prepared liquidations.
//
// All monetary arithmetic stays in *big.Int base units; Price and
// HealthFactor are thin fixed-point wrappers so that ranking and threshold
// comparisons never touch a binary float.
package types

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// BorrowerId is the opaque fixed-width account identifier (an EVM address).
type BorrowerId = common.Address

// AssetId is the opaque fixed-width token identifier (an EVM address).
type AssetId = common.Address

// Amount is an arbitrary-precision nonnegative integer in an asset's base
// units. All arithmetic over Amount is exact.
type Amount = *big.Int

// priceDecimals is the number of fractional base-10 digits carried by Price,
// per the oracle's own numeraire precision (spec.md §3).
const priceDecimals = 8

// healthFactorDecimals is the number of fractional base-10 digits carried by
// HealthFactor (spec.md §3).
const healthFactorDecimals = 18

var priceScale = pow10(priceDecimals)
var hfScale = pow10(healthFactorDecimals)

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Price is a fixed-point value with 8 fractional base-10 digits,
// denominated in a common numeraire (USD-ish).
type Price struct {
	raw *big.Int // value * 10^8
}

// NewPriceFromRaw wraps an already-scaled on-chain price reading (as
// returned by the oracle, 8 fractional digits).
func NewPriceFromRaw(raw *big.Int) Price {
	return Price{raw: new(big.Int).Set(raw)}
}

// Raw returns the underlying scaled integer (value * 10^8).
func (p Price) Raw() *big.Int {
	if p.raw == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(p.raw)
}

// IsZero reports whether the price is the zero value.
func (p Price) IsZero() bool {
	return p.raw == nil || p.raw.Sign() == 0
}

// MulAmount converts an Amount (in the asset's base units, `decimals`
// fractional digits) into a base-value reading with 8 fractional digits:
// value = amount * price / 10^decimals.
func (p Price) MulAmount(amount Amount, decimals int) *big.Int {
	num := new(big.Int).Mul(amount, p.Raw())
	return new(big.Int).Div(num, pow10(decimals))
}

// String renders the price as a decimal string for logging.
func (p Price) String() string {
	return scaledString(p.Raw(), priceDecimals)
}

// HealthFactor is a fixed-point value with 18 fractional base-10 digits.
// A value <= 1 (ScaledHFOne) means the position is liquidatable; a value
// < 1.10 means the position is warm (I4).
type HealthFactor struct {
	raw *big.Int // value * 10^18
}

// ScaledHFOne is HealthFactor's fixed-point representation of 1.0.
var ScaledHFOne = new(big.Int).Set(hfScale)

// warmCeilingNumerator/Denominator encode 1.10 exactly as a rational so the
// warm-band comparison never touches a float (numerator/denominator * raw
// HF scale).
var (
	warmCeilingNumerator   = big.NewInt(110)
	warmCeilingDenominator = big.NewInt(100)
)

// NewHealthFactorFromRaw wraps an on-chain `healthFactor` reading (18
// fractional digits, as returned by getUserAccountData).
func NewHealthFactorFromRaw(raw *big.Int) HealthFactor {
	return HealthFactor{raw: new(big.Int).Set(raw)}
}

// Raw returns the underlying scaled integer (value * 10^18).
func (hf HealthFactor) Raw() *big.Int {
	if hf.raw == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(hf.raw)
}

// IsLiquidatable reports 0 < HF <= 1.
func (hf HealthFactor) IsLiquidatable() bool {
	r := hf.Raw()
	return r.Sign() > 0 && r.Cmp(ScaledHFOne) <= 0
}

// IsWarm reports 1 <= HF < 1.10 (I4).
func (hf HealthFactor) IsWarm() bool {
	r := hf.Raw()
	if r.Cmp(ScaledHFOne) < 0 {
		return false
	}
	// r < 1.10  <=>  r * 100 < 110 * 10^18
	lhs := new(big.Int).Mul(r, warmCeilingDenominator)
	rhs := new(big.Int).Mul(ScaledHFOne, warmCeilingNumerator)
	return lhs.Cmp(rhs) < 0
}

// PriceDropToLiquidate returns (1 - 1/HF) * 100, the collateral-price drop
// percentage that would pull HF to unity (P7). HF must be > 1.
func (hf HealthFactor) PriceDropToLiquidate() float64 {
	f := new(big.Float).Quo(new(big.Float).SetInt(hf.Raw()), new(big.Float).SetInt(hfScale))
	v, _ := f.Float64()
	if v <= 1 {
		return 0
	}
	return (1 - 1/v) * 100
}

// Float64 returns the health factor as a float64, for logging only.
func (hf HealthFactor) Float64() float64 {
	f := new(big.Float).Quo(new(big.Float).SetInt(hf.Raw()), new(big.Float).SetInt(hfScale))
	v, _ := f.Float64()
	return v
}

func (hf HealthFactor) String() string {
	return scaledString(hf.Raw(), healthFactorDecimals)
}

func scaledString(raw *big.Int, decimals int) string {
	neg := raw.Sign() < 0
	abs := new(big.Int).Abs(raw)
	scale := pow10(decimals)
	whole := new(big.Int).Div(abs, scale)
	frac := new(big.Int).Mod(abs, scale)
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s%s.%0*s", sign, whole.String(), decimals, frac.String())
}

// Venue is the DEX topology a PoolRef belongs to.
type Venue int

const (
	VenueV2 Venue = iota
	VenueV3
	VenueStable
)

func (v Venue) String() string {
	switch v {
	case VenueV2:
		return "v2"
	case VenueV3:
		return "v3"
	case VenueStable:
		return "stable"
	default:
		return "unknown"
	}
}

// PoolRef identifies a swap venue and the parameters needed to quote and
// flash-borrow against it.
type PoolRef struct {
	Venue     Venue
	Address   common.Address
	Token0    common.Address
	Token1    common.Address
	FeeMicro  uint32 // parts-per-million fee tier (V3) or 0
	IndexA    int8   // stable-pool coin index for token0, -1 if n/a
	IndexB    int8   // stable-pool coin index for token1, -1 if n/a
	Name      string // configured name, used for stable-pool registry lookups
}

// StrategyId is the closed set of liquidation strategies (spec.md §4.4).
type StrategyId int

const (
	StableKittyOverAaveFlash StrategyId = iota
	StableKittyOverV3Flash
	V2FlashSwap
	V3Flash
	V2DirectOverAaveFlash
	V3DirectOverAaveFlash
	AggregatorOverAaveFlash
)

func (s StrategyId) String() string {
	switch s {
	case StableKittyOverAaveFlash:
		return "StableKittyOverAaveFlash"
	case StableKittyOverV3Flash:
		return "StableKittyOverV3Flash"
	case V2FlashSwap:
		return "V2FlashSwap"
	case V3Flash:
		return "V3Flash"
	case V2DirectOverAaveFlash:
		return "V2DirectOverAaveFlash"
	case V3DirectOverAaveFlash:
		return "V3DirectOverAaveFlash"
	case AggregatorOverAaveFlash:
		return "AggregatorOverAaveFlash"
	default:
		return "Unknown"
	}
}

// Priority returns the strategy's tie-break priority, ascending = tried
// first (spec.md §4.4).
func (s StrategyId) Priority() int {
	switch s {
	case StableKittyOverAaveFlash:
		return 1
	case StableKittyOverV3Flash:
		return 2
	case V2FlashSwap:
		return 3
	case V3Flash:
		return 4
	case V2DirectOverAaveFlash:
		return 5
	case V3DirectOverAaveFlash:
		return 6
	case AggregatorOverAaveFlash:
		return 99
	default:
		return 1 << 30
	}
}

// Position is owned exclusively by the latest scan; it is mutated only by
// replacement (spec.md §3 lifecycle).
type Position struct {
	Borrower          BorrowerId
	Pool              common.Address
	HF                HealthFactor
	TotalDebtValue    *big.Int // base units, 8 fractional digits
	LastObservedBlock uint64
}

// CollateralHolding and DebtHolding are (AssetId, Amount) pairs sourced from
// on-chain receipt tokens.
type CollateralHolding struct {
	Asset  AssetId
	Amount Amount
}

type DebtHolding struct {
	Asset  AssetId
	Amount Amount
}

// SwapKind mirrors the on-chain liquidation contract's swapParams.swapKind
// enumeration (spec.md §6.2).
type SwapKind uint8

const (
	SwapKindV2 SwapKind = iota
	SwapKindV3
	SwapKindNativeAggregator
	SwapKindExternalAggregator
)

// Quote is the result of probing a venue for a collateral->debt (or
// debt->collateral) swap size.
type Quote struct {
	Venue     Venue
	Pool      PoolRef
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
	FeeBps    int
}

// IsUsable reports whether the quote clears all fees (I6): amountOut >
// amountIn + allFees, where allFees is pre-converted into tokenOut units by
// the caller and passed in here.
func (q Quote) IsUsable(allFeesInTokenOut *big.Int) bool {
	if q.AmountOut == nil {
		return false
	}
	threshold := new(big.Int).Add(q.AmountIn, allFeesInTokenOut)
	return q.AmountOut.Cmp(threshold) > 0
}

// SwapParams mirrors the on-chain liquidation contract's swapParams tuple.
type SwapParams struct {
	SwapKind     SwapKind
	Router       common.Address
	Path         []byte
	AmountIn     *big.Int
	AmountOutMin *big.Int
	Adapters     []common.Address
}

// LiquidationParams mirrors the on-chain liquidation contract's
// liquidationParams tuple.
type LiquidationParams struct {
	CollateralAsset common.Address
	DebtAsset       common.Address
	User            common.Address
	Amount          *big.Int
	TransferAmount  *big.Int
	DebtToCover     *big.Int
}

// ContractMethod is the liquidation contract overload a strategy targets
// (spec.md §6.2), distinguished by flash source.
type ContractMethod int

const (
	MethodExecuteWithFlashPool ContractMethod = iota
	MethodExecuteWithV2FlashSwap
	MethodExecuteWithV3Flash
)

func (m ContractMethod) String() string {
	switch m {
	case MethodExecuteWithFlashPool:
		return "executeWithFlashPool"
	case MethodExecuteWithV2FlashSwap:
		return "executeWithV2FlashSwap"
	case MethodExecuteWithV3Flash:
		return "executeWithV3Flash"
	default:
		return "unknown"
	}
}

// PreparedLiquidation is a precomputed, signed-ready liquidation parameter
// bundle. It is valid only while now-CreatedAt <= PREPARED_TTL (I3).
type PreparedLiquidation struct {
	Borrower                 BorrowerId
	Strategy                 StrategyId
	Method                   ContractMethod
	Pool                     PoolRef
	CollateralAsset          AssetId
	DebtAsset                AssetId
	DebtToCover              *big.Int
	ExpectedCollateralSeized *big.Int
	EncodedSwapPrimary       SwapParams
	EncodedSwapResidual      SwapParams
	EstimatedProfitUSD       *big.Float
	CreatedAt                time.Time

	// Alternates are the remaining strategy-registry candidates for this
	// same sized position, in priority order, for the executor's
	// simulation-revert fallback (spec.md §4.11 step 3). Each alternate's
	// own Alternates is left empty — the ladder is flat, not recursive.
	Alternates []PreparedLiquidation
}

// IsFresh reports whether the prepared liquidation is still within its TTL
// (I3/P4).
func (p PreparedLiquidation) IsFresh(ttl time.Duration, now time.Time) bool {
	return now.Sub(p.CreatedAt) <= ttl
}

// BlacklistReason tags why a borrower failed a liquidation attempt
// (spec.md §4.8/§7).
type BlacklistReason string

const (
	ReasonNoStrategy       BlacklistReason = "no-strategy"
	ReasonNoProfitableSize BlacklistReason = "no-profitable-size"
	ReasonSimulationRevert BlacklistReason = "simulation-revert"
	ReasonExecutionRevert  BlacklistReason = "execution-revert"
	ReasonSwapFailed       BlacklistReason = "swap-failed"
	ReasonNegativeReward   BlacklistReason = "negative-reward"
)

// BlacklistEntry tracks repeated failures for a borrower within a TTL
// window (I5).
type BlacklistEntry struct {
	Failures      int
	LastAttemptAt time.Time
	Reason        BlacklistReason
}

// TxReceipt is the subset of a JSON-RPC transaction receipt the pipeline
// needs, with quantity fields kept as strings in either 0x-prefixed hex or
// decimal form (the executor's receipt conversion writes decimal) (mirrors the teacher's own receipt handling in
// blackhole.go, which parses EffectiveGasPrice/GasUsed via
// big.Int.SetString(s, 0)).
type TxReceipt struct {
	TransactionHash   common.Hash
	BlockNumber       string
	GasUsed           string
	EffectiveGasPrice string
	Status            string
	Logs              []TxLog
}

// TxLog is a single decoded-or-not event log entry from a TxReceipt.
type TxLog struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte
}

// GasUsedBig parses GasUsed (a "0x..."-prefixed or decimal string) into a
// big.Int.
func (r TxReceipt) GasUsedBig() (*big.Int, error) {
	return parseQuantity(r.GasUsed)
}

// EffectiveGasPriceBig parses EffectiveGasPrice into a big.Int.
func (r TxReceipt) EffectiveGasPriceBig() (*big.Int, error) {
	return parseQuantity(r.EffectiveGasPrice)
}

// Succeeded reports whether the receipt's status is 0x1.
func (r TxReceipt) Succeeded() bool {
	return r.Status == "0x1" || r.Status == "1"
}

func parseQuantity(s string) (*big.Int, error) {
	v := new(big.Int)
	if _, ok := v.SetString(s, 0); !ok {
		return nil, fmt.Errorf("invalid quantity %q", s)
	}
	return v, nil
}
