package scanner

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/claucondor/more-liquidation-bot/internal/multicall"
	"github.com/claucondor/more-liquidation-bot/pkg/types"
)

const defaultHTTPTimeout = 10 * time.Second

// defaultPageSize bounds how many borrower ids are requested per indexer
// page and how many getUserAccountData calls are batched into one
// aggregate3 call.
const defaultPageSize = 500

const lendingPoolABIJSON = `[{"inputs":[{"internalType":"address","name":"user","type":"address"}],"name":"getUserAccountData","outputs":[{"internalType":"uint256","name":"totalCollateralBase","type":"uint256"},{"internalType":"uint256","name":"totalDebtBase","type":"uint256"},{"internalType":"uint256","name":"availableBorrowsBase","type":"uint256"},{"internalType":"uint256","name":"currentLiquidationThreshold","type":"uint256"},{"internalType":"uint256","name":"ltv","type":"uint256"},{"internalType":"uint256","name":"healthFactor","type":"uint256"}],"stateMutability":"view","type":"function"}]`

// Cohort is the three-way split of every scanned borrower produced by a
// single scan pass.
type Cohort struct {
	Liquidatable []types.Position
	Warm         []types.Position
	Healthy      []types.Position
}

// Scanner performs the full periodic sweep (C9): page the indexer for the
// complete borrower set, batch-read getUserAccountData for all of them
// through the shared multicall client, and classify each borrower's
// health factor into a cohort.
type Scanner struct {
	indexer     *IndexerClient
	mc          *multicall.Client
	poolABI     abi.ABI
	poolAddress common.Address
	pageSize    int
}

// New builds a Scanner. poolAddress is the Aave-v3-style lending pool
// whose getUserAccountData is read for every borrower.
func New(indexer *IndexerClient, mc *multicall.Client, poolAddress common.Address) (*Scanner, error) {
	parsed, err := abi.JSON(strings.NewReader(lendingPoolABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse lending pool abi: %w", err)
	}
	return &Scanner{
		indexer:     indexer,
		mc:          mc,
		poolABI:     parsed,
		poolAddress: poolAddress,
		pageSize:    defaultPageSize,
	}, nil
}

// ScanAll fetches the complete borrower set from the indexer and
// classifies each into Liquidatable, Warm, or Healthy by current health
// factor. Borrowers whose on-chain read fails are silently skipped (the
// next scan pass will retry them).
func (s *Scanner) ScanAll(ctx context.Context) (Cohort, error) {
	borrowers, err := s.indexer.FetchAll(ctx, s.pageSize)
	if err != nil {
		return Cohort{}, fmt.Errorf("fetch borrowers: %w", err)
	}

	var cohort Cohort
	for start := 0; start < len(borrowers); start += s.pageSize {
		end := start + s.pageSize
		if end > len(borrowers) {
			end = len(borrowers)
		}
		batch := borrowers[start:end]

		positions, err := s.readBatch(ctx, batch)
		if err != nil {
			return Cohort{}, fmt.Errorf("read batch [%d:%d]: %w", start, end, err)
		}
		for _, pos := range positions {
			switch {
			case pos.HF.IsLiquidatable():
				cohort.Liquidatable = append(cohort.Liquidatable, pos)
			case pos.HF.IsWarm():
				cohort.Warm = append(cohort.Warm, pos)
			default:
				cohort.Healthy = append(cohort.Healthy, pos)
			}
		}
	}
	return cohort, nil
}

func (s *Scanner) readBatch(ctx context.Context, borrowers []common.Address) ([]types.Position, error) {
	calls := make([]multicall.Call3, 0, len(borrowers))
	for _, b := range borrowers {
		call, err := multicall.BuildCall(s.poolAddress, &s.poolABI, "getUserAccountData", b)
		if err != nil {
			return nil, fmt.Errorf("build call for %s: %w", b.Hex(), err)
		}
		calls = append(calls, call)
	}

	results, err := s.mc.Aggregate3(ctx, calls)
	if err != nil {
		return nil, err
	}
	if len(results) != len(borrowers) {
		return nil, fmt.Errorf("aggregate3 returned %d results, expected %d", len(results), len(borrowers))
	}

	positions := make([]types.Position, 0, len(borrowers))
	for i, r := range results {
		if !r.Success {
			continue
		}
		pos, ok := s.decodeAccountData(borrowers[i], r.ReturnData)
		if !ok {
			continue
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

func (s *Scanner) decodeAccountData(borrower common.Address, returnData []byte) (types.Position, bool) {
	data, err := s.poolABI.Unpack("getUserAccountData", returnData)
	if err != nil || len(data) != 6 {
		return types.Position{}, false
	}
	totalDebtBase, ok := toBigInt(data[1])
	if !ok {
		return types.Position{}, false
	}
	healthFactor, ok := toBigInt(data[5])
	if !ok {
		return types.Position{}, false
	}
	return types.Position{
		Borrower:       borrower,
		Pool:           s.poolAddress,
		HF:             types.NewHealthFactorFromRaw(healthFactor),
		TotalDebtValue: totalDebtBase,
	}, true
}

func toBigInt(v interface{}) (*big.Int, bool) {
	b, ok := v.(*big.Int)
	return b, ok
}
