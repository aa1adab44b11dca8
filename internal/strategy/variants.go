package strategy

import (
	"fmt"

	"github.com/claucondor/more-liquidation-bot/pkg/types"
)

// stableKittyOverAaveFlash: flash-borrow the debt asset from the Aave pool
// itself, swap collateral->debt through a matching stable-stable pool.
// Highest priority: no flash premium beyond Aave's own, and stable-stable
// swaps carry the least slippage of any venue.
type stableKittyOverAaveFlash struct{}

func (stableKittyOverAaveFlash) ID() types.StrategyId { return types.StableKittyOverAaveFlash }

func (stableKittyOverAaveFlash) CanHandle(ctx Context) bool {
	_, ok := findStableKittyPool(ctx.StablePools, ctx.CollateralAsset, ctx.DebtAsset)
	return ok
}

func (s stableKittyOverAaveFlash) Build(ctx Context) (Plan, error) {
	pool, ok := findStableKittyPool(ctx.StablePools, ctx.CollateralAsset, ctx.DebtAsset)
	if !ok {
		return Plan{}, fmt.Errorf("%s: no stable kitty pool", s.ID())
	}
	return Plan{
		Strategy:          s.ID(),
		Method:            types.MethodExecuteWithFlashPool,
		LiquidationParams: baseLiquidationParams(ctx),
		SwapPrimary:       primarySwapParams(types.SwapKindV2, pool, ctx.PrimaryQuote),
		SwapResidual:      residualSwapParams(types.SwapKindV2, pool.Address),
	}, nil
}

// stableKittyOverV3Flash: same stable-pool swap route, but the flash loan
// is sourced from a V3 pool instead of Aave, used when the Aave flash
// premium path is unavailable or the sizer prefers the V3 source.
type stableKittyOverV3Flash struct{}

func (stableKittyOverV3Flash) ID() types.StrategyId { return types.StableKittyOverV3Flash }

func (stableKittyOverV3Flash) CanHandle(ctx Context) bool {
	_, stableOK := findStableKittyPool(ctx.StablePools, ctx.CollateralAsset, ctx.DebtAsset)
	_, v3OK := findV3Pool(ctx.V3Pools, ctx.CollateralAsset, ctx.DebtAsset)
	return stableOK && v3OK
}

func (s stableKittyOverV3Flash) Build(ctx Context) (Plan, error) {
	stablePool, ok := findStableKittyPool(ctx.StablePools, ctx.CollateralAsset, ctx.DebtAsset)
	if !ok {
		return Plan{}, fmt.Errorf("%s: no stable kitty pool", s.ID())
	}
	flashPool, ok := findV3Pool(ctx.V3Pools, ctx.CollateralAsset, ctx.DebtAsset)
	if !ok {
		return Plan{}, fmt.Errorf("%s: no v3 flash pool", s.ID())
	}
	return Plan{
		Strategy:          s.ID(),
		Method:            types.MethodExecuteWithV3Flash,
		FlashPool:         flashPool,
		LiquidationParams: baseLiquidationParams(ctx),
		SwapPrimary:       primarySwapParams(types.SwapKindV2, stablePool, ctx.PrimaryQuote),
		SwapResidual:      residualSwapParams(types.SwapKindV2, stablePool.Address),
	}, nil
}

// v2FlashSwap: flash-borrow directly from a V2 pair covering the
// collateral/debt leg, settling the flash in the same swap call.
type v2FlashSwap struct{}

func (v2FlashSwap) ID() types.StrategyId { return types.V2FlashSwap }

func (v2FlashSwap) CanHandle(ctx Context) bool {
	pair := ctx.PrimaryQuote.Pool
	return ctx.PrimaryQuote.Venue == types.VenueV2 && ctx.PrimaryQuote.AmountOut != nil &&
		(pair.Token0 == ctx.DebtAsset || pair.Token1 == ctx.DebtAsset)
}

func (s v2FlashSwap) Build(ctx Context) (Plan, error) {
	router, ok := firstV2Router(ctx.V2Routers)
	if !ok {
		return Plan{}, fmt.Errorf("%s: no v2 router configured", s.ID())
	}
	return Plan{
		Strategy:          s.ID(),
		Method:            types.MethodExecuteWithV2FlashSwap,
		FlashPool:         ctx.PrimaryQuote.Pool,
		LiquidationParams: baseLiquidationParams(ctx),
		SwapPrimary:       primarySwapParams(types.SwapKindV2, router, ctx.PrimaryQuote),
		SwapResidual:      residualSwapParams(types.SwapKindV2, router.Address),
	}, nil
}

// v3Flash: flash-borrow directly from a V3 pool covering the
// collateral/debt leg, swapping through that same pool.
type v3Flash struct{}

func (v3Flash) ID() types.StrategyId { return types.V3Flash }

func (v3Flash) CanHandle(ctx Context) bool {
	_, ok := findV3Pool(ctx.V3Pools, ctx.CollateralAsset, ctx.DebtAsset)
	return ok
}

func (s v3Flash) Build(ctx Context) (Plan, error) {
	pool, ok := findV3Pool(ctx.V3Pools, ctx.CollateralAsset, ctx.DebtAsset)
	if !ok {
		return Plan{}, fmt.Errorf("%s: no v3 pool", s.ID())
	}
	return Plan{
		Strategy:          s.ID(),
		Method:            types.MethodExecuteWithV3Flash,
		FlashPool:         pool,
		LiquidationParams: baseLiquidationParams(ctx),
		SwapPrimary:       primarySwapParams(types.SwapKindV3, pool, ctx.PrimaryQuote),
		SwapResidual:      residualSwapParams(types.SwapKindV3, pool.Address),
	}, nil
}

// v2DirectOverAaveFlash: flash-borrow from Aave, swap collateral->debt
// directly through a V2 router (no stable intermediary).
type v2DirectOverAaveFlash struct{}

func (v2DirectOverAaveFlash) ID() types.StrategyId { return types.V2DirectOverAaveFlash }

func (v2DirectOverAaveFlash) CanHandle(ctx Context) bool {
	return len(ctx.V2Routers) > 0
}

func (s v2DirectOverAaveFlash) Build(ctx Context) (Plan, error) {
	router, ok := firstV2Router(ctx.V2Routers)
	if !ok {
		return Plan{}, fmt.Errorf("%s: no v2 router configured", s.ID())
	}
	return Plan{
		Strategy:          s.ID(),
		Method:            types.MethodExecuteWithFlashPool,
		LiquidationParams: baseLiquidationParams(ctx),
		SwapPrimary:       primarySwapParams(types.SwapKindV2, router, ctx.PrimaryQuote),
		SwapResidual:      residualSwapParams(types.SwapKindV2, router.Address),
	}, nil
}

// v3DirectOverAaveFlash: flash-borrow from Aave, swap collateral->debt
// directly through a V3 pool.
type v3DirectOverAaveFlash struct{}

func (v3DirectOverAaveFlash) ID() types.StrategyId { return types.V3DirectOverAaveFlash }

func (v3DirectOverAaveFlash) CanHandle(ctx Context) bool {
	_, ok := findV3Pool(ctx.V3Pools, ctx.CollateralAsset, ctx.DebtAsset)
	return ok
}

func (s v3DirectOverAaveFlash) Build(ctx Context) (Plan, error) {
	pool, ok := findV3Pool(ctx.V3Pools, ctx.CollateralAsset, ctx.DebtAsset)
	if !ok {
		return Plan{}, fmt.Errorf("%s: no v3 pool", s.ID())
	}
	return Plan{
		Strategy:          s.ID(),
		Method:            types.MethodExecuteWithFlashPool,
		LiquidationParams: baseLiquidationParams(ctx),
		SwapPrimary:       primarySwapParams(types.SwapKindV3, pool, ctx.PrimaryQuote),
		SwapResidual:      residualSwapParams(types.SwapKindV3, pool.Address),
	}, nil
}

// aggregatorOverAaveFlash: flash-borrow from Aave, route the swap through
// an external swap aggregator (§6.6). Catch-all, lowest priority: every
// other venue failed to clear fees or no direct pool exists.
type aggregatorOverAaveFlash struct{}

func (aggregatorOverAaveFlash) ID() types.StrategyId { return types.AggregatorOverAaveFlash }

func (aggregatorOverAaveFlash) CanHandle(ctx Context) bool {
	return ctx.AggregatorAvailable
}

func (s aggregatorOverAaveFlash) Build(ctx Context) (Plan, error) {
	if !ctx.AggregatorAvailable {
		return Plan{}, fmt.Errorf("%s: aggregator unavailable", s.ID())
	}
	primary := types.SwapParams{
		SwapKind:     types.SwapKindExternalAggregator,
		Router:       ctx.AggregatorRouter,
		AmountIn:     ctx.PrimaryQuote.AmountIn,
		AmountOutMin: ctx.PrimaryQuote.AmountOut,
	}
	return Plan{
		Strategy:          s.ID(),
		Method:            types.MethodExecuteWithFlashPool,
		LiquidationParams: baseLiquidationParams(ctx),
		SwapPrimary:       primary,
		SwapResidual:      residualSwapParams(types.SwapKindExternalAggregator, ctx.AggregatorRouter),
	}, nil
}

func primarySwapParams(kind types.SwapKind, pool types.PoolRef, quote types.Quote) types.SwapParams {
	return types.SwapParams{
		SwapKind:     kind,
		Router:       pool.Address,
		AmountIn:     quote.AmountIn,
		AmountOutMin: quote.AmountOut,
	}
}
