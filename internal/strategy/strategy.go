// Package strategy implements the strategy registry (C4): a closed sum
// type of seven liquidation strategies, each a (flash-loan source, swap
// venue) pairing, tried in priority order until one both handles the
// context and builds a valid on-chain call plan. Grounded on spec.md §9's
// explicit design note ("closed sum type of strategies plus a Strategy
// interface").
package strategy

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/claucondor/more-liquidation-bot/pkg/types"
)

// Context is everything a strategy needs to decide whether it applies and,
// if so, build its on-chain call plan.
type Context struct {
	Borrower                 types.BorrowerId
	CollateralAsset          types.AssetId
	DebtAsset                types.AssetId
	DebtToCover              *big.Int
	ExpectedCollateralSeized *big.Int

	PrimaryQuote  types.Quote
	ResidualQuote types.Quote

	StablePools         []types.PoolRef
	V3Pools             []types.PoolRef
	V2Routers           []types.PoolRef
	AggregatorAvailable bool
	AggregatorRouter    [20]byte
}

// Plan is a fully-built on-chain call plan: which contract overload to
// invoke and its encoded arguments.
type Plan struct {
	Strategy          types.StrategyId
	Method            types.ContractMethod
	FlashPool         types.PoolRef
	LiquidationParams types.LiquidationParams
	SwapPrimary       types.SwapParams
	SwapResidual      types.SwapParams
}

// Strategy is implemented by each of the seven closed variants.
type Strategy interface {
	ID() types.StrategyId
	CanHandle(ctx Context) bool
	Build(ctx Context) (Plan, error)
}

// Registry holds all seven strategies, ordered by priority.
type Registry struct {
	strategies []Strategy
}

// NewRegistry builds the standard registry with all seven strategies,
// sorted by StrategyId.Priority() ascending (lowest tried first).
func NewRegistry() *Registry {
	strategies := []Strategy{
		stableKittyOverAaveFlash{},
		stableKittyOverV3Flash{},
		v2FlashSwap{},
		v3Flash{},
		v2DirectOverAaveFlash{},
		v3DirectOverAaveFlash{},
		aggregatorOverAaveFlash{},
	}
	sort.SliceStable(strategies, func(i, j int) bool {
		return strategies[i].ID().Priority() < strategies[j].ID().Priority()
	})
	return &Registry{strategies: strategies}
}

// Select tries each strategy in priority order, returning the first plan
// that both CanHandle and Build succeed for.
func (r *Registry) Select(ctx Context) (Plan, error) {
	for _, s := range r.strategies {
		if !s.CanHandle(ctx) {
			continue
		}
		plan, err := s.Build(ctx)
		if err != nil {
			continue
		}
		return plan, nil
	}
	return Plan{}, fmt.Errorf("no strategy handles borrower %s", ctx.Borrower)
}

// Candidates returns every plan the registry can build for ctx, in
// priority order, so a caller (the executor's simulation-revert fallback,
// spec.md §4.11 step 3) can try the next strategy when the first reverts
// instead of committing to a single choice up front.
func (r *Registry) Candidates(ctx Context) []Plan {
	var plans []Plan
	for _, s := range r.strategies {
		if !s.CanHandle(ctx) {
			continue
		}
		plan, err := s.Build(ctx)
		if err != nil {
			continue
		}
		plans = append(plans, plan)
	}
	return plans
}

// findStableKittyPool returns the first stable pool matching (tokenA,
// tokenB) in either order, preferring an exact (token0,token1) match over
// the swapped pairing — the single canonical search order (DESIGN.md Open
// Question resolution #4).
func findStableKittyPool(pools []types.PoolRef, tokenA, tokenB types.AssetId) (types.PoolRef, bool) {
	for _, p := range pools {
		if p.Token0 == tokenA && p.Token1 == tokenB {
			return p, true
		}
	}
	for _, p := range pools {
		if p.Token0 == tokenB && p.Token1 == tokenA {
			return p, true
		}
	}
	return types.PoolRef{}, false
}

func findV3Pool(pools []types.PoolRef, tokenA, tokenB types.AssetId) (types.PoolRef, bool) {
	for _, p := range pools {
		if (p.Token0 == tokenA && p.Token1 == tokenB) || (p.Token0 == tokenB && p.Token1 == tokenA) {
			return p, true
		}
	}
	return types.PoolRef{}, false
}

func firstV2Router(routers []types.PoolRef) (types.PoolRef, bool) {
	if len(routers) == 0 {
		return types.PoolRef{}, false
	}
	return routers[0], true
}

// residualSwapParams builds the pass-through residual leg: amountIn is
// always encoded as 0, a contract-side instruction to swap whatever
// balance the primary swap left behind rather than a caller-computed
// amount (DESIGN.md Open Question resolution #1).
func residualSwapParams(kind types.SwapKind, router [20]byte) types.SwapParams {
	return types.SwapParams{
		SwapKind:     kind,
		Router:       router,
		AmountIn:     big.NewInt(0),
		AmountOutMin: big.NewInt(0),
	}
}

func baseLiquidationParams(ctx Context) types.LiquidationParams {
	return types.LiquidationParams{
		CollateralAsset: ctx.CollateralAsset,
		DebtAsset:       ctx.DebtAsset,
		User:            ctx.Borrower,
		Amount:          ctx.ExpectedCollateralSeized,
		TransferAmount:  ctx.ExpectedCollateralSeized,
		DebtToCover:     ctx.DebtToCover,
	}
}
