package strategy

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claucondor/more-liquidation-bot/pkg/types"
)

var (
	collateral = common.HexToAddress("0xC0")
	debt       = common.HexToAddress("0xD0")
)

func baseContext() Context {
	return Context{
		Borrower:                 common.HexToAddress("0xB0"),
		CollateralAsset:          collateral,
		DebtAsset:                debt,
		DebtToCover:              big.NewInt(1000),
		ExpectedCollateralSeized: big.NewInt(1050),
		PrimaryQuote: types.Quote{
			AmountIn:  big.NewInt(1050),
			AmountOut: big.NewInt(1040),
		},
	}
}

func TestFindStableKittyPoolExactThenSwapped(t *testing.T) {
	exact := types.PoolRef{Address: common.HexToAddress("0x1"), Token0: collateral, Token1: debt}
	swapped := types.PoolRef{Address: common.HexToAddress("0x2"), Token0: debt, Token1: collateral}

	pool, ok := findStableKittyPool([]types.PoolRef{swapped, exact}, collateral, debt)
	require.True(t, ok)
	assert.Equal(t, exact.Address, pool.Address, "exact (token0,token1) match must win over swapped order")

	pool, ok = findStableKittyPool([]types.PoolRef{swapped}, collateral, debt)
	require.True(t, ok)
	assert.Equal(t, swapped.Address, pool.Address)
}

func TestRegistrySelectsStableKittyFirst(t *testing.T) {
	reg := NewRegistry()
	ctx := baseContext()
	ctx.StablePools = []types.PoolRef{{Address: common.HexToAddress("0x9"), Token0: collateral, Token1: debt}}
	ctx.V2Routers = []types.PoolRef{{Address: common.HexToAddress("0xAA")}}

	plan, err := reg.Select(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.StableKittyOverAaveFlash, plan.Strategy)
}

func TestRegistryFallsBackToV2Direct(t *testing.T) {
	reg := NewRegistry()
	ctx := baseContext()
	ctx.V2Routers = []types.PoolRef{{Address: common.HexToAddress("0xAA")}}

	plan, err := reg.Select(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.V2DirectOverAaveFlash, plan.Strategy)
}

func TestRegistryFallsBackToAggregator(t *testing.T) {
	reg := NewRegistry()
	ctx := baseContext()
	ctx.AggregatorAvailable = true

	plan, err := reg.Select(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.AggregatorOverAaveFlash, plan.Strategy)
}

func TestRegistryNoStrategyHandles(t *testing.T) {
	reg := NewRegistry()
	ctx := baseContext()

	_, err := reg.Select(ctx)
	assert.Error(t, err)
}

func TestRegistryCandidatesOrderedByPriorityWithFallbacks(t *testing.T) {
	reg := NewRegistry()
	ctx := baseContext()
	ctx.StablePools = []types.PoolRef{{Address: common.HexToAddress("0x9"), Token0: collateral, Token1: debt}}
	ctx.V2Routers = []types.PoolRef{{Address: common.HexToAddress("0xAA")}}
	ctx.AggregatorAvailable = true

	plans := reg.Candidates(ctx)
	require.Len(t, plans, 3)
	assert.Equal(t, types.StableKittyOverAaveFlash, plans[0].Strategy)
	assert.Equal(t, types.V2DirectOverAaveFlash, plans[1].Strategy)
	assert.Equal(t, types.AggregatorOverAaveFlash, plans[2].Strategy)
}

func TestRegistryCandidatesEmptyWhenNoneHandle(t *testing.T) {
	reg := NewRegistry()
	ctx := baseContext()

	assert.Empty(t, reg.Candidates(ctx))
}

func TestResidualSwapParamsAlwaysZeroAmountIn(t *testing.T) {
	params := residualSwapParams(types.SwapKindV2, common.HexToAddress("0x1"))
	assert.Equal(t, big.NewInt(0).String(), params.AmountIn.String())
}
