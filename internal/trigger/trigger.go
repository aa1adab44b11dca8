// Package trigger implements the block trigger (C10): on every new block
// header, the hot tracker's current borrower set (not the full indexer
// population) is re-checked in a single batched multicall read, so a
// borrower crossing into liquidatable territory between two full scans is
// caught within one block instead of waiting for the next scan cadence.
// Grounded on `kargakis/liquidatoor`'s `SubscribeToBlocks`-driven
// per-block recheck loop, adapted onto the shared multicall client.
package trigger

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/claucondor/more-liquidation-bot/internal/multicall"
	"github.com/claucondor/more-liquidation-bot/internal/rpc"
	"github.com/claucondor/more-liquidation-bot/internal/tracker"
	"github.com/claucondor/more-liquidation-bot/pkg/types"
)

const accountDataABIJSON = `[{"inputs":[{"internalType":"address","name":"user","type":"address"}],"name":"getUserAccountData","outputs":[{"internalType":"uint256","name":"totalCollateralBase","type":"uint256"},{"internalType":"uint256","name":"totalDebtBase","type":"uint256"},{"internalType":"uint256","name":"availableBorrowsBase","type":"uint256"},{"internalType":"uint256","name":"currentLiquidationThreshold","type":"uint256"},{"internalType":"uint256","name":"ltv","type":"uint256"},{"internalType":"uint256","name":"healthFactor","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// OnLiquidatable is invoked once per block for every borrower whose
// recheck crossed into liquidatable territory (HF <= 1). The coordinator
// wires its own handler here.
type OnLiquidatable func(ctx context.Context, pos types.Position)

// Trigger drives the per-block hot-set recheck loop.
type Trigger struct {
	blocks      *rpc.BlockStream
	tracker     *tracker.Tracker
	mc          *multicall.Client
	poolABI     abi.ABI
	poolAddress common.Address
	onLiquid    OnLiquidatable
	log         zerolog.Logger
}

// New builds a Trigger bound to blocks, re-checking borrowers held in
// hot via mc against poolAddress.
func New(blocks *rpc.BlockStream, hot *tracker.Tracker, mc *multicall.Client, poolAddress common.Address, onLiquid OnLiquidatable, log zerolog.Logger) (*Trigger, error) {
	parsed, err := abi.JSON(strings.NewReader(accountDataABIJSON))
	if err != nil {
		return nil, err
	}
	return &Trigger{
		blocks:      blocks,
		tracker:     hot,
		mc:          mc,
		poolABI:     parsed,
		poolAddress: poolAddress,
		onLiquid:    onLiquid,
		log:         log,
	}, nil
}

// Run drains the block stream until ctx is cancelled, re-checking the hot
// set on every header. Intended to run in its own goroutine alongside
// blocks.Run(ctx), which the caller must start separately.
func (tr *Trigger) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case h, ok := <-tr.blocks.Headers():
			if !ok {
				return
			}
			tr.onBlock(ctx, h.Number)
		case err, ok := <-tr.blocks.Errors():
			if !ok {
				continue
			}
			tr.log.Warn().Err(err).Msg("block stream error")
		}
	}
}

func (tr *Trigger) onBlock(ctx context.Context, blockNumber *big.Int) {
	entries := tr.tracker.Snapshot()
	if len(entries) == 0 {
		return
	}

	borrowers := make([]common.Address, 0, len(entries))
	for _, e := range entries {
		borrowers = append(borrowers, e.Position.Borrower)
	}

	positions, err := tr.readBatch(ctx, borrowers)
	if err != nil {
		tr.log.Warn().Err(err).Uint64("block", blockNumber.Uint64()).Msg("trigger recheck failed")
		return
	}

	now := time.Now()
	for _, pos := range positions {
		switch {
		case pos.HF.IsLiquidatable():
			tr.tracker.Upsert(pos, now)
			if tr.onLiquid != nil {
				tr.onLiquid(ctx, pos)
			}
		case pos.HF.IsWarm():
			tr.tracker.Upsert(pos, now)
		default:
			tr.tracker.Remove(pos.Borrower)
		}
	}
}

func (tr *Trigger) readBatch(ctx context.Context, borrowers []common.Address) ([]types.Position, error) {
	calls := make([]multicall.Call3, 0, len(borrowers))
	for _, b := range borrowers {
		call, err := multicall.BuildCall(tr.poolAddress, &tr.poolABI, "getUserAccountData", b)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}

	results, err := tr.mc.Aggregate3(ctx, calls)
	if err != nil {
		return nil, err
	}

	positions := make([]types.Position, 0, len(borrowers))
	for i, r := range results {
		if !r.Success {
			continue
		}
		pos, ok := tr.decodeAccountData(borrowers[i], r.ReturnData)
		if !ok {
			continue
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

func (tr *Trigger) decodeAccountData(borrower common.Address, returnData []byte) (types.Position, bool) {
	data, err := tr.poolABI.Unpack("getUserAccountData", returnData)
	if err != nil || len(data) != 6 {
		return types.Position{}, false
	}
	totalDebtBase, ok := data[1].(*big.Int)
	if !ok {
		return types.Position{}, false
	}
	healthFactor, ok := data[5].(*big.Int)
	if !ok {
		return types.Position{}, false
	}
	return types.Position{
		Borrower:       borrower,
		Pool:           tr.poolAddress,
		HF:             types.NewHealthFactorFromRaw(healthFactor),
		TotalDebtValue: totalDebtBase,
	}, true
}
