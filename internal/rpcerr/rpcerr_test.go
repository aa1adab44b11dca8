package rpcerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRevertReason(t *testing.T) {
	assert.Equal(t, KindSwapFailed, ClassifyRevertReason("execution reverted: SwapFailed"))
	assert.Equal(t, KindHealthFactorChanged, ClassifyRevertReason("execution reverted: HealthFactor too high"))
	assert.Equal(t, KindExecutionRevert, ClassifyRevertReason("execution reverted: out of gas"))
}

func TestClassifyTransportError(t *testing.T) {
	assert.Equal(t, KindRateLimited, ClassifyTransportError(errors.New("429 too many requests")))
	assert.Equal(t, KindNonceTooLow, ClassifyTransportError(errors.New("nonce too low")))
	assert.Equal(t, KindInsufficientFunds, ClassifyTransportError(errors.New("insufficient funds for gas")))
	assert.Equal(t, KindTransport, ClassifyTransportError(errors.New("connection refused")))
}

func TestKindOfRoundTrip(t *testing.T) {
	err := New(KindSwapFailed, errors.New("boom"))
	assert.Equal(t, KindSwapFailed, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))

	wrapped := errors.New("context: " + err.Error())
	assert.Equal(t, KindUnknown, KindOf(wrapped))
}
