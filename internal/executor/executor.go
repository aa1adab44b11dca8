// Package executor implements the executor (C11): the state machine that
// turns a fresh PreparedLiquidation into a signed, submitted, and
// attributed on-chain transaction. Grounded on the teacher's
// `blackhole.go` submit-then-wait-then-classify shape (`Send` followed by
// `tl.WaitForTransaction`), generalized from single-call LP actions to the
// liquidation contract's three flash-source overloads.
package executor

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/claucondor/more-liquidation-bot/internal/blacklist"
	"github.com/claucondor/more-liquidation-bot/internal/prepared"
	"github.com/claucondor/more-liquidation-bot/internal/rpc"
	"github.com/claucondor/more-liquidation-bot/internal/rpcerr"
	"github.com/claucondor/more-liquidation-bot/internal/tracker"
	"github.com/claucondor/more-liquidation-bot/pkg/txlistener"
	agenttypes "github.com/claucondor/more-liquidation-bot/pkg/types"
)

// lendingPoolABIJSON carries only the read the freshness gate needs — the
// same fragment scanner/trigger parse for their own HF reads (spec.md
// §4.11 step 1).
const lendingPoolABIJSON = `[{"inputs":[{"internalType":"address","name":"user","type":"address"}],"name":"getUserAccountData","outputs":[{"internalType":"uint256","name":"totalCollateralBase","type":"uint256"},{"internalType":"uint256","name":"totalDebtBase","type":"uint256"},{"internalType":"uint256","name":"availableBorrowsBase","type":"uint256"},{"internalType":"uint256","name":"currentLiquidationThreshold","type":"uint256"},{"internalType":"uint256","name":"ltv","type":"uint256"},{"internalType":"uint256","name":"healthFactor","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// slippageTiersX10 are the widening multipliers (x10 fixed-point) tried in
// order against a candidate's base slippage tolerance when simulation
// reverts with a swap-failed reason (spec.md §4.11 step 5): 1x, 1.5x, 2.5x.
var slippageTiersX10 = []int{10, 15, 25}

const liquidationContractABIJSON = `[
	{"name":"executeWithFlashPool","type":"function","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"flashPool","type":"address"},
		{"name":"params","type":"tuple","components":[
			{"name":"CollateralAsset","type":"address"},
			{"name":"DebtAsset","type":"address"},
			{"name":"User","type":"address"},
			{"name":"Amount","type":"uint256"},
			{"name":"TransferAmount","type":"uint256"},
			{"name":"DebtToCover","type":"uint256"}]},
		{"name":"swapPrimary","type":"tuple","components":[
			{"name":"SwapKind","type":"uint8"},
			{"name":"Router","type":"address"},
			{"name":"Path","type":"bytes"},
			{"name":"AmountIn","type":"uint256"},
			{"name":"AmountOutMin","type":"uint256"},
			{"name":"Adapters","type":"address[]"}]},
		{"name":"swapResidual","type":"tuple","components":[
			{"name":"SwapKind","type":"uint8"},
			{"name":"Router","type":"address"},
			{"name":"Path","type":"bytes"},
			{"name":"AmountIn","type":"uint256"},
			{"name":"AmountOutMin","type":"uint256"},
			{"name":"Adapters","type":"address[]"}]}],
	 "outputs":[]},
	{"name":"executeWithV2FlashSwap","type":"function","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"pair","type":"address"},
		{"name":"params","type":"tuple","components":[
			{"name":"CollateralAsset","type":"address"},
			{"name":"DebtAsset","type":"address"},
			{"name":"User","type":"address"},
			{"name":"Amount","type":"uint256"},
			{"name":"TransferAmount","type":"uint256"},
			{"name":"DebtToCover","type":"uint256"}]},
		{"name":"swapPrimary","type":"tuple","components":[
			{"name":"SwapKind","type":"uint8"},
			{"name":"Router","type":"address"},
			{"name":"Path","type":"bytes"},
			{"name":"AmountIn","type":"uint256"},
			{"name":"AmountOutMin","type":"uint256"},
			{"name":"Adapters","type":"address[]"}]},
		{"name":"swapResidual","type":"tuple","components":[
			{"name":"SwapKind","type":"uint8"},
			{"name":"Router","type":"address"},
			{"name":"Path","type":"bytes"},
			{"name":"AmountIn","type":"uint256"},
			{"name":"AmountOutMin","type":"uint256"},
			{"name":"Adapters","type":"address[]"}]}],
	 "outputs":[]},
	{"name":"executeWithV3Flash","type":"function","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"pool","type":"address"},
		{"name":"params","type":"tuple","components":[
			{"name":"CollateralAsset","type":"address"},
			{"name":"DebtAsset","type":"address"},
			{"name":"User","type":"address"},
			{"name":"Amount","type":"uint256"},
			{"name":"TransferAmount","type":"uint256"},
			{"name":"DebtToCover","type":"uint256"}]},
		{"name":"swapPrimary","type":"tuple","components":[
			{"name":"SwapKind","type":"uint8"},
			{"name":"Router","type":"address"},
			{"name":"Path","type":"bytes"},
			{"name":"AmountIn","type":"uint256"},
			{"name":"AmountOutMin","type":"uint256"},
			{"name":"Adapters","type":"address[]"}]},
		{"name":"swapResidual","type":"tuple","components":[
			{"name":"SwapKind","type":"uint8"},
			{"name":"Router","type":"address"},
			{"name":"Path","type":"bytes"},
			{"name":"AmountIn","type":"uint256"},
			{"name":"AmountOutMin","type":"uint256"},
			{"name":"Adapters","type":"address[]"}]}],
	 "outputs":[]}
]`

// Config tunes the submission path.
type Config struct {
	From            common.Address
	PrivateKey      *ecdsa.PrivateKey
	ContractAddress common.Address
	PoolAddress     common.Address
	ChainID         *big.Int
	GasLimit        uint64

	// MaxGasPriceWei rejects submission outright if the tiered gas price
	// (the node's suggested price scaled by gasTierMultiplier) exceeds it
	// (a liquidation that costs more in gas than the bonus is not worth
	// submitting).
	MaxGasPriceWei *big.Int

	// MaxSlippageBp caps the base slippage tolerance selectSimulated starts
	// from, before the slippageTiersX10 widening is applied; zero leaves the
	// profit-tier tolerance uncapped. The resulting tolerance lowers only
	// swapPrimary's AmountOutMin; swapResidual is encoded as prepared.
	MaxSlippageBp int
}

// Executor drives PreparedLiquidation -> submitted, mined, attributed tx.
type Executor struct {
	gateway   *rpc.Gateway
	cfg       Config
	abi       abi.ABI
	poolABI   abi.ABI
	prepared  *prepared.Cache
	tracker   *tracker.Tracker
	blacklist *blacklist.List
	listener  *txlistener.TxListener
	log       zerolog.Logger
}

// New builds an Executor.
func New(gateway *rpc.Gateway, cfg Config, prep *prepared.Cache, trk *tracker.Tracker, bl *blacklist.List, log zerolog.Logger) (*Executor, error) {
	parsed, err := abi.JSON(strings.NewReader(liquidationContractABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse liquidation contract abi: %w", err)
	}
	poolParsed, err := abi.JSON(strings.NewReader(lendingPoolABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse lending pool abi: %w", err)
	}
	return &Executor{
		gateway:   gateway,
		cfg:       cfg,
		abi:       parsed,
		poolABI:   poolParsed,
		prepared:  prep,
		tracker:   trk,
		blacklist: bl,
		listener:  txlistener.NewTxListener(gateway.PrivateClient()),
		log:       log,
	}, nil
}

// Execute runs the full state machine for borrower: blacklist gate,
// single-in-flight claim, freshness re-check, simulate-and-escalate over
// every strategy candidate, gas pricing, submission, receipt wait, and
// success/failure attribution (spec.md §4.11).
func (e *Executor) Execute(ctx context.Context, borrower agenttypes.BorrowerId) (agenttypes.TxReceipt, error) {
	now := time.Now()

	if e.blacklist.IsBlacklisted(borrower, now) {
		return agenttypes.TxReceipt{}, fmt.Errorf("borrower %s is blacklisted", borrower)
	}

	if !e.tracker.TryStartPreparing(borrower) {
		return agenttypes.TxReceipt{}, fmt.Errorf("borrower %s already has an in-flight attempt", borrower)
	}
	defer e.tracker.FinishPreparing(borrower)

	plan, ok := e.prepared.Get(borrower, now)
	if !ok {
		e.blacklist.RecordFailure(borrower, agenttypes.ReasonNoStrategy, now)
		return agenttypes.TxReceipt{}, fmt.Errorf("no fresh prepared liquidation for %s", borrower)
	}

	// Step 1: freshness gate. A borrower whose health factor has already
	// recovered above 1 (paid down elsewhere, or liquidated by a
	// competitor) is dropped quietly — this is not the borrower's fault,
	// so no blacklist or failure accounting happens here.
	recovered, err := e.hasRecovered(ctx, borrower)
	if err != nil {
		return agenttypes.TxReceipt{}, fmt.Errorf("freshness check for %s: %w", borrower, err)
	}
	if recovered {
		e.prepared.Evict(borrower)
		return agenttypes.TxReceipt{}, fmt.Errorf("borrower %s health factor recovered, aborting", borrower)
	}

	// Steps 3 and 5: simulate the prepared plan and, on revert, its
	// registry-priority alternates, escalating slippage tolerance within
	// each candidate before moving to the next one.
	candidates := append([]agenttypes.PreparedLiquidation{plan}, plan.Alternates...)
	sim, err := selectSimulated(candidates, e.cfg.MaxSlippageBp, e.buildCalldata, func(data []byte) error {
		return e.simulateCall(ctx, data)
	})
	if err != nil {
		e.blacklist.RecordFailure(borrower, agenttypes.ReasonSimulationRevert, now)
		return agenttypes.TxReceipt{}, fmt.Errorf("every strategy failed simulation for %s: %w", borrower, err)
	}
	data := sim.data

	baseGasPrice, err := e.gateway.SuggestGasPrice(ctx)
	if err != nil {
		return agenttypes.TxReceipt{}, fmt.Errorf("suggest gas price: %w", err)
	}
	gasPrice := applyGasTier(baseGasPrice, profitUSDFloat64(sim.plan.EstimatedProfitUSD))
	if e.cfg.MaxGasPriceWei != nil && gasPrice.Cmp(e.cfg.MaxGasPriceWei) > 0 {
		e.blacklist.RecordFailure(borrower, agenttypes.ReasonNoProfitableSize, now)
		return agenttypes.TxReceipt{}, fmt.Errorf("gas price %s exceeds max %s", gasPrice, e.cfg.MaxGasPriceWei)
	}

	nonce, err := e.gateway.PendingNonceAt(ctx, e.cfg.From)
	if err != nil {
		return agenttypes.TxReceipt{}, fmt.Errorf("nonce: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &e.cfg.ContractAddress,
		Value:    big.NewInt(0),
		Gas:      e.cfg.GasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.NewEIP155Signer(e.cfg.ChainID), e.cfg.PrivateKey)
	if err != nil {
		return agenttypes.TxReceipt{}, fmt.Errorf("sign tx: %w", err)
	}

	if err := e.gateway.SendTransaction(ctx, signed); err != nil {
		kind := rpcerr.ClassifyTransportError(err)
		e.blacklist.RecordFailure(borrower, transportReasonToBlacklistReason(kind), now)
		return agenttypes.TxReceipt{}, fmt.Errorf("send tx: %w", err)
	}

	receipt, err := e.listener.WaitForTransaction(ctx, signed.Hash())
	if err != nil {
		e.blacklist.RecordFailure(borrower, agenttypes.ReasonExecutionRevert, now)
		return agenttypes.TxReceipt{}, fmt.Errorf("wait receipt: %w", err)
	}

	out := convertReceipt(signed.Hash(), receipt)
	if !out.Succeeded() {
		e.blacklist.RecordFailure(borrower, agenttypes.ReasonExecutionRevert, now)
		return out, fmt.Errorf("liquidation tx %s reverted", signed.Hash())
	}

	e.blacklist.RecordSuccess(borrower)
	e.prepared.Evict(borrower)
	e.tracker.Remove(borrower)
	return out, nil
}

// buildCalldata encodes plan's contract call with swapPrimary's
// AmountOutMin tightened by toleranceBp basis points below the quote it was
// prepared with.
func (e *Executor) buildCalldata(plan agenttypes.PreparedLiquidation, toleranceBp int) ([]byte, error) {
	liquidationParams := agenttypes.LiquidationParams{
		CollateralAsset: plan.CollateralAsset,
		DebtAsset:       plan.DebtAsset,
		User:            plan.Borrower,
		Amount:          plan.ExpectedCollateralSeized,
		TransferAmount:  plan.ExpectedCollateralSeized,
		DebtToCover:     plan.DebtToCover,
	}
	swapPrimary := tightenSlippage(plan.EncodedSwapPrimary, toleranceBp)
	swapResidual := plan.EncodedSwapResidual

	switch plan.Method {
	case agenttypes.MethodExecuteWithFlashPool:
		return e.abi.Pack("executeWithFlashPool", plan.Pool.Address, liquidationParams, swapPrimary, swapResidual)
	case agenttypes.MethodExecuteWithV2FlashSwap:
		return e.abi.Pack("executeWithV2FlashSwap", plan.Pool.Address, liquidationParams, swapPrimary, swapResidual)
	case agenttypes.MethodExecuteWithV3Flash:
		return e.abi.Pack("executeWithV3Flash", plan.Pool.Address, liquidationParams, swapPrimary, swapResidual)
	default:
		return nil, fmt.Errorf("unknown contract method %v", plan.Method)
	}
}

// hasRecovered re-reads borrower's health factor from the lending pool
// directly (spec.md §4.11 step 1), bypassing the prepared-liquidation's
// stale snapshot.
func (e *Executor) hasRecovered(ctx context.Context, borrower common.Address) (bool, error) {
	data, err := e.poolABI.Pack("getUserAccountData", borrower)
	if err != nil {
		return false, fmt.Errorf("pack getUserAccountData: %w", err)
	}
	out, err := e.gateway.CallContract(ctx, ethereum.CallMsg{To: &e.cfg.PoolAddress, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("call getUserAccountData: %w", err)
	}
	unpacked, err := e.poolABI.Unpack("getUserAccountData", out)
	if err != nil || len(unpacked) != 6 {
		return false, fmt.Errorf("decode getUserAccountData: %w", err)
	}
	healthFactor, ok := unpacked[5].(*big.Int)
	if !ok {
		return false, fmt.Errorf("decode health factor: unexpected type")
	}
	return !agenttypes.NewHealthFactorFromRaw(healthFactor).IsLiquidatable(), nil
}

// simulateCall static-calls data against the liquidation contract through
// the read endpoint (spec.md §4.11 step 3), spending no gas.
func (e *Executor) simulateCall(ctx context.Context, data []byte) error {
	_, err := e.gateway.CallContract(ctx, ethereum.CallMsg{
		From: e.cfg.From,
		To:   &e.cfg.ContractAddress,
		Data: data,
	}, nil)
	return err
}

// simulateResult is the candidate and tolerance tier selectSimulated
// settled on, plus its already-encoded calldata.
type simulateResult struct {
	plan        agenttypes.PreparedLiquidation
	data        []byte
	toleranceBp int
}

// selectSimulated runs the simulate/escalate state machine (spec.md §4.11
// steps 3 and 5) over candidates in priority order: for each, widen the
// slippage tolerance through slippageTiersX10 on a swap-failed revert
// before giving up on it and falling through to the next candidate. Any
// other revert reason abandons the candidate immediately. build and call
// are injected so the escalation logic is unit-testable without a live RPC
// endpoint.
func selectSimulated(
	candidates []agenttypes.PreparedLiquidation,
	maxSlippageBp int,
	build func(agenttypes.PreparedLiquidation, int) ([]byte, error),
	call func([]byte) error,
) (simulateResult, error) {
	var lastErr error
	for _, candidate := range candidates {
		baseTolerance := slippageToleranceBp(profitUSDFloat64(candidate.EstimatedProfitUSD))
		if maxSlippageBp > 0 && baseTolerance > maxSlippageBp {
			baseTolerance = maxSlippageBp
		}

		for _, tierX10 := range slippageTiersX10 {
			tolerance := baseTolerance * tierX10 / 10
			data, err := build(candidate, tolerance)
			if err != nil {
				lastErr = err
				break
			}
			simErr := call(data)
			if simErr == nil {
				return simulateResult{plan: candidate, data: data, toleranceBp: tolerance}, nil
			}
			lastErr = simErr
			if rpcerr.ClassifyRevertReason(simErr.Error()) != rpcerr.KindSwapFailed {
				break
			}
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no candidates to simulate")
	}
	return simulateResult{}, lastErr
}

// gasTierMultiplier maps estimated profit (USD) to the gas-price
// multiplier ladder: thinner-margin liquidations bid less aggressively,
// fatter ones are worth outbidding competing searchers for.
func gasTierMultiplier(profitUSD float64) float64 {
	switch {
	case profitUSD < 5:
		return 1.5
	case profitUSD < 50:
		return 2.5
	case profitUSD < 200:
		return 4
	case profitUSD < 1000:
		return 5
	case profitUSD < 5000:
		return 6
	default:
		return 8
	}
}

// slippageToleranceBp maps estimated profit (USD, standing in for trade
// size) to the dynamic minOut tolerance ladder.
func slippageToleranceBp(profitUSD float64) int {
	switch {
	case profitUSD < 100:
		return 200
	case profitUSD < 1000:
		return 300
	case profitUSD < 10000:
		return 500
	case profitUSD < 50000:
		return 700
	default:
		return 1000
	}
}

// applyGasTier scales base by gasTierMultiplier's ladder, truncated to a
// whole wei via a fixed-point (x1000) multiply-then-divide.
func applyGasTier(base *big.Int, profitUSD float64) *big.Int {
	if base == nil {
		return big.NewInt(0)
	}
	multiplierX1000 := big.NewInt(int64(gasTierMultiplier(profitUSD) * 1000))
	out := new(big.Int).Mul(base, multiplierX1000)
	return out.Div(out, big.NewInt(1000))
}

func profitUSDFloat64(f *big.Float) float64 {
	if f == nil {
		return 0
	}
	v, _ := f.Float64()
	return v
}

// tightenSlippage lowers AmountOutMin by maxSlippageBp basis points,
// re-validated at submission time against whatever AmountOutMin the
// strategy originally computed from its quote.
func tightenSlippage(p agenttypes.SwapParams, maxSlippageBp int) agenttypes.SwapParams {
	if p.AmountOutMin == nil || maxSlippageBp <= 0 {
		return p
	}
	out := p
	reduction := new(big.Int).Mul(p.AmountOutMin, big.NewInt(int64(maxSlippageBp)))
	reduction.Div(reduction, big.NewInt(10_000))
	out.AmountOutMin = new(big.Int).Sub(p.AmountOutMin, reduction)
	return out
}

func transportReasonToBlacklistReason(kind rpcerr.Kind) agenttypes.BlacklistReason {
	switch kind {
	case rpcerr.KindInsufficientFunds, rpcerr.KindNonceTooLow:
		return agenttypes.ReasonExecutionRevert
	default:
		return agenttypes.ReasonSimulationRevert
	}
}

func convertReceipt(txHash common.Hash, receipt *types.Receipt) agenttypes.TxReceipt {
	status := "0x0"
	if receipt.Status == types.ReceiptStatusSuccessful {
		status = "0x1"
	}
	logs := make([]agenttypes.TxLog, 0, len(receipt.Logs))
	for _, l := range receipt.Logs {
		logs = append(logs, agenttypes.TxLog{Address: l.Address, Topics: l.Topics, Data: l.Data})
	}
	return agenttypes.TxReceipt{
		TransactionHash:   txHash,
		BlockNumber:       receipt.BlockNumber.String(),
		GasUsed:           new(big.Int).SetUint64(receipt.GasUsed).String(),
		EffectiveGasPrice: receipt.EffectiveGasPrice.String(),
		Status:            status,
		Logs:              logs,
	}
}
