// Package rpcerr classifies the error surface this agent reacts to —
// transport failures, simulation/execution reverts, and the small set of
// named revert-reason substrings spec'd for recovery decisions — as typed
// sentinels rather than ad-hoc string matching.
package rpcerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a closed classification of recoverable/unrecoverable error
// conditions (spec.md §7).
type Kind int

const (
	// KindUnknown is any error this agent has no special recovery for.
	KindUnknown Kind = iota
	// KindTransport covers RPC network failures: timeouts, connection
	// refused, rate limiting. Recoverable via retry/backoff/failover.
	KindTransport
	// KindRateLimited is a transport failure specifically attributable to
	// a 429/"too many requests" response.
	KindRateLimited
	// KindSimulationRevert is a static-call (eth_call) revert encountered
	// before submission — the executor aborts without spending gas.
	KindSimulationRevert
	// KindExecutionRevert is an on-chain revert after submission — the
	// executor records gas spent and blacklists per I5.
	KindExecutionRevert
	// KindSwapFailed is an execution revert whose reason contains
	// "SwapFailed" — attributed to slippage/liquidity movement, not a
	// structural strategy defect.
	KindSwapFailed
	// KindHealthFactorChanged is an execution or simulation revert whose
	// reason contains "HealthFactor" — the position recovered or was
	// liquidated by a competitor between scan and submission.
	KindHealthFactorChanged
	// KindNonceTooLow indicates a stale nonce, recoverable by refetching
	// the pending nonce and resubmitting.
	KindNonceTooLow
	// KindInsufficientFunds indicates the hot wallet cannot cover gas or
	// flash-loan premium — not recoverable without operator action.
	KindInsufficientFunds
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRateLimited:
		return "rate-limited"
	case KindSimulationRevert:
		return "simulation-revert"
	case KindExecutionRevert:
		return "execution-revert"
	case KindSwapFailed:
		return "swap-failed"
	case KindHealthFactorChanged:
		return "health-factor-changed"
	case KindNonceTooLow:
		return "nonce-too-low"
	case KindInsufficientFunds:
		return "insufficient-funds"
	default:
		return "unknown"
	}
}

// ClassifiedError pairs a Kind with the underlying error, so callers can
// `errors.As` into it without losing the original message.
type ClassifiedError struct {
	Kind Kind
	Err  error
}

func (c *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", c.Kind, c.Err)
}

func (c *ClassifiedError) Unwrap() error {
	return c.Err
}

// New wraps err as a ClassifiedError of the given kind.
func New(kind Kind, err error) *ClassifiedError {
	return &ClassifiedError{Kind: kind, Err: err}
}

// ClassifyRevertReason inspects a revert reason string for the documented
// substrings and returns the matching Kind, defaulting to
// KindExecutionRevert for any other revert.
func ClassifyRevertReason(reason string) Kind {
	switch {
	case strings.Contains(reason, "SwapFailed"):
		return KindSwapFailed
	case strings.Contains(reason, "HealthFactor"):
		return KindHealthFactorChanged
	default:
		return KindExecutionRevert
	}
}

// ClassifyTransportError inspects a transport-layer error for rate-limit
// substrings, defaulting to KindTransport.
func ClassifyTransportError(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	msg := err.Error()
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") {
		return KindRateLimited
	}
	if strings.Contains(msg, "nonce too low") {
		return KindNonceTooLow
	}
	if strings.Contains(msg, "insufficient funds") {
		return KindInsufficientFunds
	}
	return KindTransport
}

// KindOf returns the Kind of err if it (or something it wraps) is a
// *ClassifiedError, else KindUnknown.
func KindOf(err error) Kind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}
