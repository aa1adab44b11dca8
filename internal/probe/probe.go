// Package probe implements the liquidity probe (C3): batched, best-effort
// quoting of a candidate swap size across every configured venue (V2
// routers, Curve-style stable pools, and V3 pools) in a single
// aggregator-call round trip, grounded on `kargakis/liquidatoor`'s
// Multicall batching pattern. V3 quotes are a cheap local sqrtPrice-based
// approximation (pkg/util.QuoteV3ExactIn); see DESIGN.md's Open Question
// resolution #2 for why the executor never trusts this approximation for
// the final encoded `amountOutMin`.
package probe

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/claucondor/more-liquidation-bot/internal/multicall"
	"github.com/claucondor/more-liquidation-bot/pkg/types"
	"github.com/claucondor/more-liquidation-bot/pkg/util"
)

const v2RouterABIJSON = `[{"constant":true,"inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"name":"amounts","type":"uint256[]"}],"type":"function"}]`

const stablePoolABIJSON = `[{"constant":true,"inputs":[{"name":"i","type":"int128"},{"name":"j","type":"int128"},{"name":"dx","type":"uint256"}],"name":"get_dy","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

const v3PoolABIJSON = `[{"constant":true,"inputs":[],"name":"slot0","outputs":[{"name":"sqrtPriceX96","type":"uint160"},{"name":"tick","type":"int24"},{"name":"observationIndex","type":"uint16"},{"name":"observationCardinality","type":"uint16"},{"name":"observationCardinalityNext","type":"uint16"},{"name":"feeProtocol","type":"uint8"},{"name":"unlocked","type":"bool"}],"type":"function"}]`

// Probe batches quote requests across venues through a shared multicall
// client.
type Probe struct {
	mc         *multicall.Client
	v2Router   abi.ABI
	stablePool abi.ABI
	v3Pool     abi.ABI
}

// New parses the fixed venue ABIs and wires the shared multicall client.
func New(mc *multicall.Client) (*Probe, error) {
	v2, err := parseABI(v2RouterABIJSON)
	if err != nil {
		return nil, fmt.Errorf("v2 router abi: %w", err)
	}
	stable, err := parseABI(stablePoolABIJSON)
	if err != nil {
		return nil, fmt.Errorf("stable pool abi: %w", err)
	}
	v3, err := parseABI(v3PoolABIJSON)
	if err != nil {
		return nil, fmt.Errorf("v3 pool abi: %w", err)
	}
	return &Probe{mc: mc, v2Router: v2, stablePool: stable, v3Pool: v3}, nil
}

func parseABI(jsonSrc string) (abi.ABI, error) {
	return abi.JSON(strings.NewReader(jsonSrc))
}

// QuoteAll probes every pool for amountIn of tokenIn -> tokenOut, returning
// one Quote per pool that answered successfully. Pools whose call failed or
// reverted are silently dropped (I6: an unusable quote is simply absent,
// never a zero-value placeholder the sizer might rank as free).
func (p *Probe) QuoteAll(ctx context.Context, pools []types.PoolRef, tokenIn, tokenOut common.Address, amountIn *big.Int) ([]types.Quote, error) {
	if len(pools) == 0 {
		return nil, nil
	}

	calls := make([]multicall.Call3, 0, len(pools))
	for _, pool := range pools {
		call, err := p.buildCall(pool, tokenIn, tokenOut, amountIn)
		if err != nil {
			return nil, fmt.Errorf("build call for pool %s: %w", pool.Address, err)
		}
		calls = append(calls, call)
	}

	results, err := p.mc.Aggregate3(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("aggregate3: %w", err)
	}
	if len(results) != len(pools) {
		return nil, fmt.Errorf("aggregate3: got %d results for %d pools", len(results), len(pools))
	}

	quotes := make([]types.Quote, 0, len(pools))
	for i, pool := range pools {
		if !results[i].Success {
			continue
		}
		quote, ok := p.decodeResult(pool, tokenIn, tokenOut, amountIn, results[i].ReturnData)
		if ok {
			quotes = append(quotes, quote)
		}
	}
	return quotes, nil
}

func (p *Probe) buildCall(pool types.PoolRef, tokenIn, tokenOut common.Address, amountIn *big.Int) (multicall.Call3, error) {
	switch pool.Venue {
	case types.VenueV2:
		path := []common.Address{tokenIn, tokenOut}
		return multicall.BuildCall(pool.Address, &p.v2Router, "getAmountsOut", amountIn, path)
	case types.VenueStable:
		return multicall.BuildCall(pool.Address, &p.stablePool, "get_dy", big.NewInt(int64(pool.IndexA)), big.NewInt(int64(pool.IndexB)), amountIn)
	case types.VenueV3:
		return multicall.BuildCall(pool.Address, &p.v3Pool, "slot0")
	default:
		return multicall.Call3{}, fmt.Errorf("unsupported venue %s", pool.Venue)
	}
}

func (p *Probe) decodeResult(pool types.PoolRef, tokenIn, tokenOut common.Address, amountIn *big.Int, returnData []byte) (types.Quote, bool) {
	switch pool.Venue {
	case types.VenueV2:
		out, err := p.v2Router.Unpack("getAmountsOut", returnData)
		if err != nil || len(out) == 0 {
			return types.Quote{}, false
		}
		amounts, ok := abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int)
		if !ok || len(*amounts) == 0 {
			return types.Quote{}, false
		}
		amountOut := (*amounts)[len(*amounts)-1]
		return types.Quote{Venue: pool.Venue, Pool: pool, TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: amountIn, AmountOut: amountOut, FeeBps: 30}, true

	case types.VenueStable:
		out, err := p.stablePool.Unpack("get_dy", returnData)
		if err != nil || len(out) == 0 {
			return types.Quote{}, false
		}
		amountOut, ok := out[0].(*big.Int)
		if !ok {
			return types.Quote{}, false
		}
		return types.Quote{Venue: pool.Venue, Pool: pool, TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: amountIn, AmountOut: amountOut, FeeBps: 4}, true

	case types.VenueV3:
		out, err := p.v3Pool.Unpack("slot0", returnData)
		if err != nil || len(out) == 0 {
			return types.Quote{}, false
		}
		sqrtPriceX96, ok := out[0].(*big.Int)
		if !ok {
			return types.Quote{}, false
		}
		zeroForOne := tokenIn == pool.Token0
		amountOut := util.QuoteV3ExactIn(sqrtPriceX96, pool.FeeMicro, amountIn, zeroForOne)
		return types.Quote{Venue: pool.Venue, Pool: pool, TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: amountIn, AmountOut: amountOut, FeeBps: int(pool.FeeMicro / 100)}, true

	default:
		return types.Quote{}, false
	}
}

// Best returns the quote with the greatest amountOut, or false if quotes is
// empty.
func Best(quotes []types.Quote) (types.Quote, bool) {
	if len(quotes) == 0 {
		return types.Quote{}, false
	}
	best := quotes[0]
	for _, q := range quotes[1:] {
		if q.AmountOut.Cmp(best.AmountOut) > 0 {
			best = q
		}
	}
	return best, true
}
