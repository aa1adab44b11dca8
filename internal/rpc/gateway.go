// Package rpc implements the dual-endpoint RPC gateway (C1): a public read
// endpoint guarded by exponential-backoff retry and a circuit breaker, a
// private endpoint reserved for transaction submission (and substituted in
// for reads while the breaker is open), and a block-header subscription
// that degrades to polling after repeated reconnect failures.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/claucondor/more-liquidation-bot/internal/rpcerr"
)

// Config tunes the gateway's retry, breaker and reconnect behavior.
type Config struct {
	PublicURL  string
	PrivateURL string

	// RetryAttempts is the max number of attempts per call (spec: 3, 1s
	// base, doubling).
	RetryAttempts uint64
	RetryBaseWait time.Duration

	// BreakerOpenDuration is how long the read breaker stays open before
	// allowing a half-open probe against the public endpoint again.
	BreakerOpenDuration time.Duration

	// ReconnectMaxAttempts bounds the block-subscription reconnect
	// backoff (doubling 1s->30s, capped at 10 attempts per spec) before
	// the trigger degrades to polling.
	ReconnectMaxAttempts uint64
}

// DefaultConfig returns the spec's default tuning.
func DefaultConfig(publicURL, privateURL string) Config {
	return Config{
		PublicURL:            publicURL,
		PrivateURL:           privateURL,
		RetryAttempts:        3,
		RetryBaseWait:        time.Second,
		BreakerOpenDuration:  30 * time.Second,
		ReconnectMaxAttempts: 10,
	}
}

// Gateway is the sole owner of both RPC connections; every other component
// reaches the chain exclusively through it.
type Gateway struct {
	cfg     Config
	public  *ethclient.Client
	private *ethclient.Client
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// Dial connects both endpoints and wires the read-path circuit breaker.
func Dial(ctx context.Context, cfg Config, log zerolog.Logger) (*Gateway, error) {
	public, err := ethclient.DialContext(ctx, cfg.PublicURL)
	if err != nil {
		return nil, fmt.Errorf("dial public endpoint: %w", err)
	}

	private, err := ethclient.DialContext(ctx, cfg.PrivateURL)
	if err != nil {
		return nil, fmt.Errorf("dial private endpoint: %w", err)
	}

	g := &Gateway{cfg: cfg, public: public, private: private, log: log}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "rpc-read",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("rpc read breaker state change")
		},
	})
	return g, nil
}

// Close releases both underlying RPC connections.
func (g *Gateway) Close() {
	g.public.Close()
	g.private.Close()
}

// PrivateClient exposes the private endpoint directly for submission paths
// that need the raw ethclient (e.g. gas estimation tied to a signed tx).
func (g *Gateway) PrivateClient() *ethclient.Client {
	return g.private
}

func call[T any](ctx context.Context, g *Gateway, fn func(*ethclient.Client) (T, error)) (T, error) {
	var zero T
	var result T

	bo := g.retryPolicy(ctx)

	operation := func() error {
		out, err := g.breaker.Execute(func() (interface{}, error) {
			return fn(g.public)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			g.log.Warn().Msg("read breaker open, falling back to private endpoint")
			v, ferr := fn(g.private)
			if ferr != nil {
				return ferr
			}
			result = v
			return nil
		}
		if err != nil {
			kind := rpcerr.ClassifyTransportError(err)
			if kind == rpcerr.KindInsufficientFunds {
				return backoff.Permanent(err)
			}
			return err
		}
		result = out.(T)
		return nil
	}

	if err := backoff.Retry(operation, bo); err != nil {
		return zero, err
	}
	return result, nil
}

func newExponentialBackoff(base time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	return b
}

// retryPolicy bounds one call to RetryAttempts attempts in total: the first
// try plus RetryAttempts-1 backoff retries.
func (g *Gateway) retryPolicy(ctx context.Context) backoff.BackOffContext {
	retries := uint64(0)
	if g.cfg.RetryAttempts > 1 {
		retries = g.cfg.RetryAttempts - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(newExponentialBackoff(g.cfg.RetryBaseWait), retries), ctx)
}

// CallContract performs a read-only contract call via the gateway's
// failover/retry path.
func (g *Gateway) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return call(ctx, g, func(c *ethclient.Client) ([]byte, error) {
		return c.CallContract(ctx, msg, blockNumber)
	})
}

// BlockNumber returns the latest block number via the read path.
func (g *Gateway) BlockNumber(ctx context.Context) (uint64, error) {
	return call(ctx, g, func(c *ethclient.Client) (uint64, error) {
		return c.BlockNumber(ctx)
	})
}

// SuggestGasPrice returns the node's suggested gas price via the read path.
func (g *Gateway) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return call(ctx, g, func(c *ethclient.Client) (*big.Int, error) {
		return c.SuggestGasPrice(ctx)
	})
}

// PendingNonceAt reads the pending nonce via the read path.
func (g *Gateway) PendingNonceAt(ctx context.Context, from common.Address) (uint64, error) {
	return call(ctx, g, func(c *ethclient.Client) (uint64, error) {
		return c.PendingNonceAt(ctx, from)
	})
}

// EstimateGas estimates gas via the read path.
func (g *Gateway) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return call(ctx, g, func(c *ethclient.Client) (uint64, error) {
		return c.EstimateGas(ctx, msg)
	})
}

// SendTransaction always submits through the private endpoint: a
// liquidation's edge comes from not broadcasting to the public mempool.
func (g *Gateway) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	bo := g.retryPolicy(ctx)

	return backoff.Retry(func() error {
		err := g.private.SendTransaction(ctx, tx)
		if err == nil {
			return nil
		}
		kind := rpcerr.ClassifyTransportError(err)
		if kind == rpcerr.KindNonceTooLow || kind == rpcerr.KindInsufficientFunds {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
}

// TransactionReceipt reads a receipt via the read path.
func (g *Gateway) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return call(ctx, g, func(c *ethclient.Client) (*types.Receipt, error) {
		return c.TransactionReceipt(ctx, txHash)
	})
}
