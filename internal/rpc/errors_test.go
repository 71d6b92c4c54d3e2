package rpc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/helioslabs/solgate/pkg/ratelimiter"
)

func TestClassifyRPCError(t *testing.T) {
	tests := []struct {
		name string
		code int
		msg  string
		want Kind
	}{
		{"simulation failure", -32002, "Transaction simulation failed", KindSimulation},
		{"block not available", -32004, "Block not available for slot 100", KindMissingBlocks},
		{"node unhealthy", -32005, "Node is unhealthy", KindNodeBehind},
		{"slot skipped", -32007, "Slot 100 was skipped", KindSlotSkipped},
		{"long term skipped", -32009, "Slot 100 was skipped or missing", KindSlotSkipped},
		{"rate limit by message", -32000, "Too many requests for this method", KindRateLimit},
		{"behind by message", -32000, "Node is behind by 150 slots", KindNodeBehind},
		{"unrecognized", -32000, "something else", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyRPCError("getBlock", "http://node", &RPCError{Code: tt.code, Message: tt.msg})
			assert.Equal(t, tt.want, err.Kind)
		})
	}
}

func TestClassifyTransportError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    error
		want   Kind
	}{
		{"http 429", 429, errors.New("HTTP 429"), KindRateLimit},
		{"http 500", 500, errors.New("HTTP 500"), KindTransport},
		{"http 403", 403, errors.New("HTTP 403"), KindTransport},
		{"circuit open", 0, ratelimiter.ErrCircuitOpen, KindRateLimit},
		{"plain network error", 0, errors.New("connection refused"), KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyTransportError("getSlot", "http://node", tt.status, tt.err)
			assert.Equal(t, tt.want, err.Kind)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(E(KindTransport, "op", "", errors.New("x"))))
	assert.True(t, IsRetryable(errors.New("unclassified")))

	for _, k := range []Kind{KindConfig, KindConnection, KindRateLimit, KindNodeBehind,
		KindSlotSkipped, KindMissingBlocks, KindNodeUnhealthy, KindSimulation} {
		assert.False(t, IsRetryable(E(k, "op", "", errors.New("x"))), k.String())
	}
}

func TestKindOfUnwrapsChain(t *testing.T) {
	inner := E(KindSlotSkipped, "getBlock", "http://node", errors.New("skipped"))
	wrapped := fmt.Errorf("slot 100: %w", inner)
	assert.Equal(t, KindSlotSkipped, KindOf(wrapped))
}

func TestIsTLSFailure(t *testing.T) {
	assert.True(t, IsTLSFailure(errors.New("x509: certificate signed by unknown authority")))
	assert.True(t, IsTLSFailure(errors.New("tls: handshake failure")))
	assert.False(t, IsTLSFailure(errors.New("connection refused")))
	assert.False(t, IsTLSFailure(nil))
}
