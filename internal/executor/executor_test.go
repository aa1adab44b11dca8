package executor

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claucondor/more-liquidation-bot/internal/blacklist"
	"github.com/claucondor/more-liquidation-bot/internal/prepared"
	"github.com/claucondor/more-liquidation-bot/internal/rpcerr"
	"github.com/claucondor/more-liquidation-bot/internal/tracker"
	agenttypes "github.com/claucondor/more-liquidation-bot/pkg/types"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(liquidationContractABIJSON))
	require.NoError(t, err)
	return &Executor{
		cfg:       Config{GasLimit: 1_000_000},
		abi:       parsed,
		prepared:  prepared.New(time.Minute),
		tracker:   tracker.New(),
		blacklist: blacklist.New(2, time.Minute),
		log:       zerolog.Nop(),
	}
}

func TestTightenSlippage(t *testing.T) {
	p := agenttypes.SwapParams{AmountOutMin: big.NewInt(10_000)}
	out := tightenSlippage(p, 100) // 1%
	assert.Equal(t, big.NewInt(9_900), out.AmountOutMin)
}

func TestTightenSlippageNoopWhenZero(t *testing.T) {
	p := agenttypes.SwapParams{AmountOutMin: big.NewInt(10_000)}
	out := tightenSlippage(p, 0)
	assert.Equal(t, big.NewInt(10_000), out.AmountOutMin)
}

func TestBuildCalldataFlashPool(t *testing.T) {
	e := newTestExecutor(t)
	plan := agenttypes.PreparedLiquidation{
		Borrower:                 common.HexToAddress("0xB1"),
		Method:                   agenttypes.MethodExecuteWithFlashPool,
		Pool:                     agenttypes.PoolRef{Address: common.HexToAddress("0xFlash")},
		CollateralAsset:          common.HexToAddress("0xC1"),
		DebtAsset:                common.HexToAddress("0xD1"),
		DebtToCover:              big.NewInt(100),
		ExpectedCollateralSeized: big.NewInt(105),
		EncodedSwapPrimary:       agenttypes.SwapParams{Router: common.HexToAddress("0xR1"), AmountIn: big.NewInt(1), AmountOutMin: big.NewInt(1)},
		EncodedSwapResidual:      agenttypes.SwapParams{Router: common.HexToAddress("0xR1"), AmountIn: big.NewInt(0), AmountOutMin: big.NewInt(0)},
	}

	data, err := e.buildCalldata(plan, 100)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	method, err := e.abi.MethodById(data[:4])
	require.NoError(t, err)
	assert.Equal(t, "executeWithFlashPool", method.Name)
}

func TestBuildCalldataUnknownMethod(t *testing.T) {
	e := newTestExecutor(t)
	plan := agenttypes.PreparedLiquidation{Method: agenttypes.ContractMethod(99)}
	_, err := e.buildCalldata(plan, 100)
	assert.Error(t, err)
}

func TestGasTierMultiplier(t *testing.T) {
	assert.Equal(t, 1.5, gasTierMultiplier(1))
	assert.Equal(t, 2.5, gasTierMultiplier(10))
	assert.Equal(t, 8.0, gasTierMultiplier(10_000))
}

func TestApplyGasTier(t *testing.T) {
	out := applyGasTier(big.NewInt(100), 1) // profit < 5 -> 1.5x
	assert.Equal(t, big.NewInt(150), out)
}

func TestSlippageToleranceBp(t *testing.T) {
	assert.Equal(t, 200, slippageToleranceBp(50))
	assert.Equal(t, 1000, slippageToleranceBp(100_000))
}

func TestTransportReasonToBlacklistReason(t *testing.T) {
	assert.Equal(t, agenttypes.ReasonExecutionRevert, transportReasonToBlacklistReason(rpcerr.KindInsufficientFunds))
	assert.Equal(t, agenttypes.ReasonSimulationRevert, transportReasonToBlacklistReason(rpcerr.KindRateLimited))
}

func noopBuild(plan agenttypes.PreparedLiquidation, toleranceBp int) ([]byte, error) {
	return []byte{byte(toleranceBp >> 8), byte(toleranceBp)}, nil
}

func TestSelectSimulatedSucceedsOnFirstCandidateFirstTier(t *testing.T) {
	primary := agenttypes.PreparedLiquidation{Strategy: agenttypes.StableKittyOverAaveFlash}
	calls := 0
	sim, err := selectSimulated([]agenttypes.PreparedLiquidation{primary}, 0, noopBuild, func(data []byte) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "must not widen tolerance or try another candidate once the first simulation succeeds")
	assert.Equal(t, agenttypes.StableKittyOverAaveFlash, sim.plan.Strategy)
}

func TestSelectSimulatedEscalatesSlippageBeforeFallingBack(t *testing.T) {
	primary := agenttypes.PreparedLiquidation{Strategy: agenttypes.StableKittyOverAaveFlash, EstimatedProfitUSD: big.NewFloat(50)}
	var seenTolerances []int
	sim, err := selectSimulated([]agenttypes.PreparedLiquidation{primary}, 0, noopBuild, func(data []byte) error {
		seenTolerances = append(seenTolerances, int(data[0])<<8|int(data[1]))
		if len(seenTolerances) < 3 {
			return errors.New("execution reverted: SwapFailed")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{200, 300, 500}, seenTolerances, "must widen tolerance 1x, 1.5x, 2.5x on a swap-failed revert before giving up on the candidate")
	assert.Equal(t, 500, sim.toleranceBp)
}

func TestSelectSimulatedFallsThroughToNextCandidateOnNonSlippageRevert(t *testing.T) {
	primary := agenttypes.PreparedLiquidation{Strategy: agenttypes.StableKittyOverAaveFlash}
	fallback := agenttypes.PreparedLiquidation{Strategy: agenttypes.V2DirectOverAaveFlash}

	var order []agenttypes.StrategyId
	_, err := selectSimulated([]agenttypes.PreparedLiquidation{primary, fallback}, 0,
		func(plan agenttypes.PreparedLiquidation, toleranceBp int) ([]byte, error) {
			order = append(order, plan.Strategy)
			return []byte{0}, nil
		},
		func(data []byte) error {
			if len(order) == 1 {
				return errors.New("execution reverted: HealthFactor too high")
			}
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []agenttypes.StrategyId{agenttypes.StableKittyOverAaveFlash, agenttypes.V2DirectOverAaveFlash}, order,
		"a non-swap-failed revert must abandon the candidate immediately and move to the next, not widen tolerance")
}

func TestSelectSimulatedFailsWhenEveryCandidateReverts(t *testing.T) {
	primary := agenttypes.PreparedLiquidation{Strategy: agenttypes.StableKittyOverAaveFlash}
	fallback := agenttypes.PreparedLiquidation{Strategy: agenttypes.V2DirectOverAaveFlash}
	_, err := selectSimulated([]agenttypes.PreparedLiquidation{primary, fallback}, 0, noopBuild, func(data []byte) error {
		return errors.New("execution reverted: out of gas")
	})
	assert.Error(t, err)
}

func TestExecuteRejectsBlacklistedBorrower(t *testing.T) {
	e := newTestExecutor(t)
	borrower := common.HexToAddress("0xB2")
	now := time.Now()
	e.blacklist.RecordFailure(borrower, agenttypes.ReasonExecutionRevert, now)
	e.blacklist.RecordFailure(borrower, agenttypes.ReasonExecutionRevert, now)

	_, err := e.Execute(context.Background(), borrower)
	assert.Error(t, err)
}

func TestExecuteRejectsMissingPreparedLiquidation(t *testing.T) {
	e := newTestExecutor(t)
	borrower := common.HexToAddress("0xB3")

	_, err := e.Execute(context.Background(), borrower)
	assert.Error(t, err)

	// in-flight slot must be released even on early-exit failure paths
	assert.False(t, e.tracker.IsPreparing(borrower))
}

func TestExecuteRejectsSecondConcurrentAttempt(t *testing.T) {
	e := newTestExecutor(t)
	borrower := common.HexToAddress("0xB4")
	require.True(t, e.tracker.TryStartPreparing(borrower))
	defer e.tracker.FinishPreparing(borrower)

	_, err := e.Execute(context.Background(), borrower)
	assert.Error(t, err)
}
