// Package txlistener polls an RPC endpoint for transaction receipts,
// generalizing the teacher's `txlistener.NewTxListener` (constructed in
// `cmd/main.go` with `WithPollInterval`/`WithTimeout` options and driven via
// `b.tl.WaitForTransaction(txHash)` in `blackhole.go`).
package txlistener

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrTimeout is returned by WaitForTransaction when the configured timeout
// elapses before a receipt appears.
var ErrTimeout = errors.New("txlistener: timed out waiting for receipt")

// Option configures a TxListener.
type Option func(*TxListener)

// WithPollInterval sets the receipt-polling cadence.
func WithPollInterval(d time.Duration) Option {
	return func(l *TxListener) { l.pollInterval = d }
}

// WithTimeout sets the max wait duration per WaitForTransaction call.
func WithTimeout(d time.Duration) Option {
	return func(l *TxListener) { l.timeout = d }
}

// TxListener polls for a transaction's receipt until it is mined or the
// configured timeout elapses.
type TxListener struct {
	client       *ethclient.Client
	pollInterval time.Duration
	timeout      time.Duration
}

// NewTxListener builds a TxListener with sensible defaults (3s poll,
// 5m timeout), overridable via options.
func NewTxListener(client *ethclient.Client, opts ...Option) *TxListener {
	l := &TxListener{
		client:       client,
		pollInterval: 3 * time.Second,
		timeout:      5 * time.Minute,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WaitForTransaction blocks until txHash is mined, the listener's timeout
// elapses, or ctx is cancelled — whichever comes first.
func (l *TxListener) WaitForTransaction(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := l.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrTimeout
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
