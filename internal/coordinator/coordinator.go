// Package coordinator implements the control loop (C12): the long-running
// supervisor that owns every other component's shared state, drives the
// full scanner on a cron cadence, runs the block trigger's fast path
// concurrently, serializes execution attempts per spec.md §5, and emits
// periodic status reports and error alerts through the notifier. Grounded
// on the teacher's `cmd/main.go` bootstrap (`reportChan`-driven loop around
// a long-running strategy call), generalized from a single goroutine into a
// `robfig/cron/v3`-scheduled multi-loop supervisor.
package coordinator

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/claucondor/more-liquidation-bot/internal/blacklist"
	"github.com/claucondor/more-liquidation-bot/internal/cache"
	"github.com/claucondor/more-liquidation-bot/internal/executor"
	"github.com/claucondor/more-liquidation-bot/internal/multicall"
	"github.com/claucondor/more-liquidation-bot/internal/notify"
	"github.com/claucondor/more-liquidation-bot/internal/prepared"
	"github.com/claucondor/more-liquidation-bot/internal/probe"
	"github.com/claucondor/more-liquidation-bot/internal/rpc"
	"github.com/claucondor/more-liquidation-bot/internal/scanner"
	"github.com/claucondor/more-liquidation-bot/internal/sizer"
	"github.com/claucondor/more-liquidation-bot/internal/state"
	"github.com/claucondor/more-liquidation-bot/internal/store"
	"github.com/claucondor/more-liquidation-bot/internal/strategy"
	"github.com/claucondor/more-liquidation-bot/internal/tracker"
	"github.com/claucondor/more-liquidation-bot/internal/trigger"
	"github.com/claucondor/more-liquidation-bot/pkg/types"
)

const aaveOracleABIJSON = `[{"inputs":[{"internalType":"address","name":"asset","type":"address"}],"name":"getAssetPrice","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// flashPremiumBp is the money-market flash loan's premium (spec.md §4.4's
// fee-model table: "5 (flash)"), the cheapest flash source across the
// strategy table and used as a pre-strategy-selection floor when filtering
// quotes (I6) before the registry has picked the actual route.
const flashPremiumBp = 5

// Market bundles the configuration this spec's single-dominant-collateral
// simplification needs (spec.md §4.5: "assuming a single dominant
// collateral"): one lending pool, one collateral/debt asset pair, and the
// venues the probe is allowed to quote across.
type Market struct {
	PoolAddress        common.Address
	OracleAddress      common.Address
	CollateralAsset    common.Address
	CollateralDecimals int
	DebtAsset          common.Address
	DebtDecimals       int
	LiquidationBonusBp int

	StablePools         []types.PoolRef
	V3Pools             []types.PoolRef
	V2Routers           []types.PoolRef
	AggregatorAvailable bool
	AggregatorRouter    common.Address
}

// Config tunes the coordinator's scheduling and sizing behavior.
type Config struct {
	Market Market

	// Cron descriptors, e.g. "@every 1m". FullScanCron defaults to spec's
	// LOOP_INTERVAL of 60s if empty.
	FullScanCron string
	ReportCron   string
	SweepCron    string

	// LiquidationPause is the pause between sequential execution attempts
	// within one scan's liquidatable cohort (spec.md §5).
	LiquidationPause time.Duration

	// ConsecutiveErrorAlertThreshold is N in spec.md §4.12: after this many
	// consecutive full-scan failures, an alert fires.
	ConsecutiveErrorAlertThreshold int

	FractionLadderBp     []int
	InterestBufferBp     int
	MaxCloseFactorBp     int
	ConservativeFactorBp int

	TopNReport int
	StatePath  string
}

// DefaultConfig fills in spec.md's defaults for anything the caller leaves
// zero-valued.
func DefaultConfig(market Market) Config {
	return Config{
		Market:                         market,
		FullScanCron:                   "@every 1m",
		ReportCron:                     "@every 1h",
		SweepCron:                      "@every 5m",
		LiquidationPause:               5 * time.Second,
		ConsecutiveErrorAlertThreshold: 3,
		FractionLadderBp:               sizer.Ladder,
		InterestBufferBp:               10,
		MaxCloseFactorBp:               5000,
		ConservativeFactorBp:           sizer.DefaultConservativeFactorBp,
		TopNReport:                     5,
	}
}

// Coordinator wires every other component together and drives their
// lifecycles. It is the sole owner of the hot tracker, prepared cache, and
// blacklist — no other component mutates them directly except through the
// methods those packages already expose.
type Coordinator struct {
	cfg Config
	log zerolog.Logger

	gateway *rpc.Gateway
	blocks  *rpc.BlockStream
	mc      *multicall.Client

	scanner    *scanner.Scanner
	triggerRun *trigger.Trigger
	executor   *executor.Executor
	probe      *probe.Probe
	strategies *strategy.Registry

	tracker   *tracker.Tracker
	prepared  *prepared.Cache
	blacklist *blacklist.List
	prices    *cache.PriceCache

	recorder *store.Recorder
	notifier *notify.Notifier

	oracleABI abi.ABI
	cron      *cron.Cron

	mu                sync.Mutex
	consecutiveErrors int
}

// Deps are the already-constructed components the coordinator drives.
// Building these (dialing the gateway, parsing ABIs, opening the recorder)
// is the CLI's job; the coordinator only orchestrates.
type Deps struct {
	Gateway    *rpc.Gateway
	Blocks     *rpc.BlockStream
	MC         *multicall.Client
	Scanner    *scanner.Scanner
	Executor   *executor.Executor
	Probe      *probe.Probe
	Strategies *strategy.Registry
	Tracker    *tracker.Tracker
	Prepared   *prepared.Cache
	Blacklist  *blacklist.List
	Prices     *cache.PriceCache
	Recorder   *store.Recorder // nil disables the audit log
	Notifier   *notify.Notifier
}

// New builds a Coordinator and its internal block trigger. The trigger's
// OnLiquidatable callback is wired to the coordinator's own
// prepareAndExecute, so a block-detected crossing gets the same prepare ->
// submit path a full scan's liquidatable cohort does.
func New(d Deps, cfg Config, log zerolog.Logger) (*Coordinator, error) {
	oracleABI, err := abi.JSON(strings.NewReader(aaveOracleABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse oracle abi: %w", err)
	}

	c := &Coordinator{
		cfg:        cfg,
		log:        log,
		gateway:    d.Gateway,
		blocks:     d.Blocks,
		mc:         d.MC,
		scanner:    d.Scanner,
		executor:   d.Executor,
		probe:      d.Probe,
		strategies: d.Strategies,
		tracker:    d.Tracker,
		prepared:   d.Prepared,
		blacklist:  d.Blacklist,
		prices:     d.Prices,
		recorder:   d.Recorder,
		notifier:   d.Notifier,
		oracleABI:  oracleABI,
	}

	tr, err := trigger.New(d.Blocks, d.Tracker, d.MC, cfg.Market.PoolAddress, c.onHotCandidate, log)
	if err != nil {
		return nil, fmt.Errorf("build trigger: %w", err)
	}
	c.triggerRun = tr

	return c, nil
}

// Run starts the block subscription, the per-block trigger, and the
// cron-scheduled full scan / status report / sweep loops, blocking until
// ctx is cancelled. On cancellation it stops the cron scheduler (draining
// any job already mid-run) and returns once that drain completes —
// in-flight execute() attempts started by the block trigger are not
// cancelled; they run to completion and report their outcome independently.
func (c *Coordinator) Run(ctx context.Context) error {
	go c.blocks.Run(ctx)
	go c.triggerRun.Run(ctx)

	c.cron = cron.New()
	if _, err := c.cron.AddFunc(c.cfg.FullScanCron, func() { c.runFullScan(ctx) }); err != nil {
		return fmt.Errorf("schedule full scan: %w", err)
	}
	if _, err := c.cron.AddFunc(c.cfg.ReportCron, func() { c.runStatusReport(ctx) }); err != nil {
		return fmt.Errorf("schedule status report: %w", err)
	}
	if _, err := c.cron.AddFunc(c.cfg.SweepCron, func() { c.runSweep(ctx) }); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	c.cron.Start()

	<-ctx.Done()
	drainCtx := c.cron.Stop()
	<-drainCtx.Done()
	return ctx.Err()
}

// runFullScan executes one full scanner pass (C9), folds the liquidatable
// and warm cohorts into the hot tracker, and sequentially attempts every
// liquidatable borrower ordered by outstanding debt descending (largest
// first), pausing LiquidationPause between attempts so the agent never
// floods the mempool with simultaneous submissions.
func (c *Coordinator) runFullScan(ctx context.Context) {
	cohort, err := c.scanner.ScanAll(ctx)
	if err != nil {
		c.recordScanError(ctx, err)
		return
	}
	c.resetErrorCounter()

	now := time.Now()
	for _, pos := range cohort.Warm {
		c.tracker.Upsert(pos, now)
	}

	liquidatable := append([]types.Position(nil), cohort.Liquidatable...)
	sort.SliceStable(liquidatable, func(i, j int) bool {
		return liquidatable[i].TotalDebtValue.Cmp(liquidatable[j].TotalDebtValue) > 0
	})

	for _, pos := range liquidatable {
		if ctx.Err() != nil {
			return
		}
		c.tracker.Upsert(pos, now)
		c.prepareAndExecute(ctx, pos)

		timer := time.NewTimer(c.cfg.LiquidationPause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// onHotCandidate is the block trigger's per-block callback: a borrower just
// crossed into liquidatable territory between two full scans. It runs
// asynchronously so the per-block recheck loop is never blocked waiting on
// a prepare+submit round trip.
func (c *Coordinator) onHotCandidate(ctx context.Context, pos types.Position) {
	go c.prepareAndExecute(ctx, pos)
}

// prepareAndExecute builds a fresh PreparedLiquidation for pos, stores it,
// and immediately executes it. The single-in-flight-per-borrower guarantee
// (spec.md §5) is enforced inside executor.Execute via the tracker's
// preparing set, so for a borrower already being handled by a concurrent
// caller Execute returns an error (recorded as a failed attempt) instead of
// submitting a second transaction.
func (c *Coordinator) prepareAndExecute(ctx context.Context, pos types.Position) {
	plan, err := c.buildPreparedLiquidation(ctx, pos)
	if err != nil {
		c.blacklist.RecordFailure(pos.Borrower, types.ReasonNoProfitableSize, time.Now())
		c.log.Warn().Err(err).Str("borrower", pos.Borrower.Hex()).Msg("no prepared liquidation")
		return
	}
	c.prepared.Put(plan)

	receipt, execErr := c.executor.Execute(ctx, pos.Borrower)
	c.recordAttempt(pos, plan, receipt, execErr)

	if execErr != nil {
		c.log.Warn().Err(execErr).Str("borrower", pos.Borrower.Hex()).Msg("liquidation attempt failed")
		return
	}
	c.log.Info().Str("borrower", pos.Borrower.Hex()).Str("tx", receipt.TransactionHash.Hex()).Msg("liquidation submitted")
}

// buildPreparedLiquidation runs the sizer ladder (C5) priced against the
// liquidity probe (C3), then hands the winning candidate to the strategy
// registry (C4) to produce a signed-ready call plan (spec.md §4.5/§4.6).
func (c *Coordinator) buildPreparedLiquidation(ctx context.Context, pos types.Position) (types.PreparedLiquidation, error) {
	now := time.Now()
	m := c.cfg.Market

	debtPrice, err := c.priceFor(ctx, m.DebtAsset, now)
	if err != nil {
		return types.PreparedLiquidation{}, fmt.Errorf("debt price: %w", err)
	}
	collateralPrice, err := c.priceFor(ctx, m.CollateralAsset, now)
	if err != nil {
		return types.PreparedLiquidation{}, fmt.Errorf("collateral price: %w", err)
	}

	pools := allPools(m)

	var candidates []sizer.Candidate
	for _, fractionBp := range c.cfg.FractionLadderBp {
		debtToCover := sizer.BuildDebtToCover(pos.TotalDebtValue, fractionBp, c.cfg.InterestBufferBp, c.cfg.MaxCloseFactorBp)
		if debtToCover.Sign() <= 0 {
			continue
		}
		seized := sizer.ExpectedCollateralSeized(debtToCover, debtPrice, m.DebtDecimals, collateralPrice, m.CollateralDecimals, m.LiquidationBonusBp, c.cfg.ConservativeFactorBp)
		if seized.Sign() <= 0 {
			continue
		}

		quotes, err := c.probe.QuoteAll(ctx, pools, m.CollateralAsset, m.DebtAsset, seized)
		if err != nil {
			continue
		}
		best, ok := probe.Best(quotes)
		if !ok {
			continue
		}

		// I6: a quote is usable only once it clears debtToCover plus the
		// fee model (spec.md §4.4's fee-model table) — the swap venue's own
		// fee (best.FeeBps, already folded into best.AmountOut by the AMM
		// math but still charged against the margin) plus the cheapest
		// flash source's premium, used here as a floor estimate since the
		// strategy registry hasn't chosen the actual flash route yet.
		allFeesInDebtAsset := new(big.Int).Mul(debtToCover, big.NewInt(int64(flashPremiumBp+best.FeeBps)))
		allFeesInDebtAsset.Div(allFeesInDebtAsset, big.NewInt(10_000))
		feeQuote := types.Quote{AmountIn: debtToCover, AmountOut: best.AmountOut}
		if !feeQuote.IsUsable(allFeesInDebtAsset) {
			continue
		}

		profitRaw := new(big.Int).Sub(best.AmountOut, debtToCover)
		profitBase := debtPrice.MulAmount(profitRaw, m.DebtDecimals)
		profitUSD := decimal.NewFromBigInt(profitBase, -8)

		candidates = append(candidates, sizer.Candidate{
			FractionBp:               fractionBp,
			DebtToCover:              debtToCover,
			ExpectedCollateralSeized: seized,
			Quote:                    best,
			EstimatedProfitUSD:       profitUSD,
			EstimatedGasCostUSD:      decimal.Zero,
		})
	}

	winner, ok := sizer.Rank(candidates)
	if !ok {
		return types.PreparedLiquidation{}, fmt.Errorf("no profitable size for borrower %s", pos.Borrower)
	}

	strategyCtx := strategy.Context{
		Borrower:                 pos.Borrower,
		CollateralAsset:          m.CollateralAsset,
		DebtAsset:                m.DebtAsset,
		DebtToCover:              winner.DebtToCover,
		ExpectedCollateralSeized: winner.ExpectedCollateralSeized,
		PrimaryQuote:             winner.Quote,
		ResidualQuote:            winner.Quote,
		StablePools:              m.StablePools,
		V3Pools:                  m.V3Pools,
		V2Routers:                m.V2Routers,
		AggregatorAvailable:      m.AggregatorAvailable,
		AggregatorRouter:         m.AggregatorRouter,
	}
	// Every plan the registry can build for this sized position is kept,
	// not just the first — the executor's simulation step (spec.md §4.11
	// step 3) falls through to the next one in priority order on revert.
	plans := c.strategies.Candidates(strategyCtx)
	if len(plans) == 0 {
		return types.PreparedLiquidation{}, fmt.Errorf("select strategy: no strategy handles borrower %s", pos.Borrower)
	}

	profitFloat := new(big.Float).SetPrec(64)
	profitFloat.SetString(winner.EstimatedProfitUSD.String())

	prepared := make([]types.PreparedLiquidation, len(plans))
	for i, plan := range plans {
		prepared[i] = planToPreparedLiquidation(pos.Borrower, m, plan, profitFloat, now)
	}
	result := prepared[0]
	result.Alternates = prepared[1:]
	return result, nil
}

func planToPreparedLiquidation(borrower common.Address, m Market, plan strategy.Plan, profitUSD *big.Float, now time.Time) types.PreparedLiquidation {
	return types.PreparedLiquidation{
		Borrower:                 borrower,
		Strategy:                 plan.Strategy,
		Method:                   plan.Method,
		Pool:                     plan.FlashPool,
		CollateralAsset:          m.CollateralAsset,
		DebtAsset:                m.DebtAsset,
		DebtToCover:              plan.LiquidationParams.DebtToCover,
		ExpectedCollateralSeized: plan.LiquidationParams.Amount,
		EncodedSwapPrimary:       plan.SwapPrimary,
		EncodedSwapResidual:      plan.SwapResidual,
		EstimatedProfitUSD:       profitUSD,
		CreatedAt:                now,
	}
}

func allPools(m Market) []types.PoolRef {
	pools := make([]types.PoolRef, 0, len(m.StablePools)+len(m.V3Pools)+len(m.V2Routers))
	pools = append(pools, m.StablePools...)
	pools = append(pools, m.V3Pools...)
	pools = append(pools, m.V2Routers...)
	return pools
}

// priceFor serves a cached oracle price if fresh, else reads it through the
// gateway's read path (C1/C2) and caches the result.
func (c *Coordinator) priceFor(ctx context.Context, asset common.Address, now time.Time) (types.Price, error) {
	if price, ok := c.prices.Get(asset, now); ok {
		return price, nil
	}

	data, err := c.oracleABI.Pack("getAssetPrice", asset)
	if err != nil {
		return types.Price{}, fmt.Errorf("pack getAssetPrice: %w", err)
	}
	out, err := c.gateway.CallContract(ctx, ethereum.CallMsg{To: &c.cfg.Market.OracleAddress, Data: data}, nil)
	if err != nil {
		return types.Price{}, fmt.Errorf("call oracle: %w", err)
	}
	unpacked, err := c.oracleABI.Unpack("getAssetPrice", out)
	if err != nil || len(unpacked) != 1 {
		return types.Price{}, fmt.Errorf("unpack getAssetPrice: %w", err)
	}
	raw, ok := unpacked[0].(*big.Int)
	if !ok {
		return types.Price{}, fmt.Errorf("getAssetPrice: unexpected return type")
	}

	price := types.NewPriceFromRaw(raw)
	c.prices.Set(asset, price, now)
	return price, nil
}

// buildAttemptRecord maps one execute() outcome into the store's
// executor-facing Attempt shape, pulled out of recordAttempt for testability
// (mirrors store.attemptToRecord's pure-mapping extraction).
func buildAttemptRecord(pos types.Position, plan types.PreparedLiquidation, receipt types.TxReceipt, execErr error) store.Attempt {
	attempt := store.Attempt{
		Timestamp:           time.Now(),
		Borrower:            pos.Borrower,
		Strategy:            plan.Strategy,
		CollateralAsset:     plan.CollateralAsset,
		DebtAsset:           plan.DebtAsset,
		DebtToCover:         plan.DebtToCover,
		ExpectedSeizedValue: plan.ExpectedCollateralSeized,
		Succeeded:           execErr == nil && receipt.Succeeded(),
	}
	if receipt.TransactionHash != (common.Hash{}) {
		attempt.TxHash = receipt.TransactionHash.Hex()
	}
	if execErr != nil {
		attempt.FailureReason = types.ReasonExecutionRevert
	}
	if gasUsed, err := receipt.GasUsedBig(); err == nil {
		attempt.GasUsed = gasUsed
	}
	if gasPrice, err := receipt.EffectiveGasPriceBig(); err == nil && attempt.GasUsed != nil {
		attempt.GasCostWei = new(big.Int).Mul(attempt.GasUsed, gasPrice)
	}
	return attempt
}

// recordAttempt persists the attempt's outcome to the audit log (if a
// recorder is configured) for after-the-fact profitability review.
func (c *Coordinator) recordAttempt(pos types.Position, plan types.PreparedLiquidation, receipt types.TxReceipt, execErr error) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordAttempt(buildAttemptRecord(pos, plan, receipt, execErr)); err != nil {
		c.log.Warn().Err(err).Msg("record attempt failed")
	}
}

// recordScanError tracks consecutive full-scan failures, alerting via the
// notifier once ConsecutiveErrorAlertThreshold is reached (spec.md §4.12).
func (c *Coordinator) recordScanError(ctx context.Context, err error) {
	c.mu.Lock()
	c.consecutiveErrors++
	count := c.consecutiveErrors
	c.mu.Unlock()

	c.log.Warn().Err(err).Int("consecutive_errors", count).Msg("full scan failed")
	if count >= c.cfg.ConsecutiveErrorAlertThreshold {
		msg := fmt.Sprintf("full scan failed %d times in a row: %v", count, err)
		if sendErr := c.notifier.Send(ctx, notify.LevelAlert, msg); sendErr != nil {
			c.log.Warn().Err(sendErr).Msg("alert notify failed")
		}
	}
}

func (c *Coordinator) resetErrorCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveErrors = 0
}

// runStatusReport emits the hourly status report (spec.md §4.12): aggregate
// tracked/blacklisted counts, the N tracked borrowers with the largest
// debt, and the running count of successful liquidations. The report has
// no separate ranking by health factor, and carries no wallet balances or
// DEX liquidity figures.
func (c *Coordinator) runStatusReport(ctx context.Context) {
	entries := c.tracker.Snapshot()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Position.TotalDebtValue.Cmp(entries[j].Position.TotalDebtValue) > 0
	})

	topN := c.cfg.TopNReport
	if topN > len(entries) {
		topN = len(entries)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "status report: tracked=%d blacklisted=%d", c.tracker.Len(), c.blacklist.Len())
	if c.recorder != nil {
		if successes, err := c.recorder.CountSuccesses(); err == nil {
			fmt.Fprintf(&sb, " successes=%d", successes)
		}
	}
	for i := 0; i < topN; i++ {
		pos := entries[i].Position
		fmt.Fprintf(&sb, "\n  #%d borrower=%s hf=%s debt=%s", i+1, pos.Borrower.Hex(), pos.HF.String(), pos.TotalDebtValue.String())
	}

	if err := c.notifier.Send(ctx, notify.LevelInfo, sb.String()); err != nil {
		c.log.Warn().Err(err).Msg("status report notify failed")
	}
}

// runSweep evicts expired prepared liquidations, blacklist cooldowns, stale
// hot-tracker entries (I4), and notifier dedup entries, then persists
// restart-recovery state to disk.
func (c *Coordinator) runSweep(ctx context.Context) {
	now := time.Now()
	c.prepared.SweepExpired(now)
	c.blacklist.SweepExpired(now)
	c.tracker.SweepExpired(now)
	c.notifier.SweepExpired(now)

	if c.cfg.StatePath == "" {
		return
	}
	snap := state.Snapshot{
		SavedAt:   now,
		Blacklist: c.blacklist.Snapshot(),
	}
	if blockNumber, err := c.gateway.BlockNumber(ctx); err == nil {
		snap.LastScannedBlock = blockNumber
	}
	if err := state.Save(c.cfg.StatePath, snap); err != nil {
		c.log.Warn().Err(err).Msg("save state failed")
	}
}
