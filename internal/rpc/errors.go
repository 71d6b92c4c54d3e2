package rpc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/helioslabs/solgate/pkg/ratelimiter"
)

// Kind classifies every error the core surfaces. Nothing leaves this package
// unclassified: callers branch on the kind, never on message text.
type Kind int

const (
	KindUnknown       Kind = iota
	KindConfig             // bad caller input (invalid endpoint URL, bad option)
	KindConnection         // pool-wide exhaustion, no endpoint reachable
	KindTransport          // connection refused, DNS, TLS: retry on another endpoint
	KindRateLimit          // HTTP 429 or throttling RPC code: back off and rotate
	KindNodeBehind         // node reports a slot far below consensus
	KindSlotSkipped        // requested slot was skipped, not a node fault
	KindMissingBlocks      // requested slot has no data available
	KindNodeUnhealthy      // failed the health battery
	KindSimulation         // simulated transaction failed, surfaced not retried
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindConnection:
		return "connection"
	case KindTransport:
		return "transport"
	case KindRateLimit:
		return "rate_limit"
	case KindNodeBehind:
		return "node_behind"
	case KindSlotSkipped:
		return "slot_skipped"
	case KindMissingBlocks:
		return "missing_blocks"
	case KindNodeUnhealthy:
		return "node_unhealthy"
	case KindSimulation:
		return "simulation"
	default:
		return "unknown"
	}
}

// Error carries the kind alongside the operation and endpoint that failed.
type Error struct {
	Kind     Kind
	Op       string // RPC method or logical operation
	Endpoint string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Endpoint != "" {
		fmt.Fprintf(&b, " (%s)", e.Endpoint)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error.
func E(kind Kind, op, endpoint string, err error) *Error {
	return &Error{Kind: kind, Op: op, Endpoint: endpoint, Err: err}
}

// KindOf extracts the kind from any error in the chain.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether the same endpoint is worth another attempt.
// Rotation-worthy kinds (node behind, unhealthy, rate limited) and data
// unavailability are not: the pool handles those by moving on.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransport, KindUnknown:
		return true
	default:
		return false
	}
}

// Solana JSON-RPC server error codes.
const (
	codeSimulationFailed  = -32002
	codeBlockNotAvailable = -32004
	codeNodeUnhealthy     = -32005
	codeSlotSkipped       = -32007
	codeLongTermSkipped   = -32009
	codeMethodNotFound    = -32601
)

// classifyRPCError maps a JSON-RPC error object to the taxonomy.
func classifyRPCError(op, endpoint string, rpcErr *RPCError) *Error {
	switch rpcErr.Code {
	case codeSimulationFailed:
		return E(KindSimulation, op, endpoint, rpcErr)
	case codeBlockNotAvailable:
		return E(KindMissingBlocks, op, endpoint, rpcErr)
	case codeNodeUnhealthy:
		return E(KindNodeBehind, op, endpoint, rpcErr)
	case codeSlotSkipped, codeLongTermSkipped:
		return E(KindSlotSkipped, op, endpoint, rpcErr)
	}

	msg := strings.ToLower(rpcErr.Message)
	switch {
	case strings.Contains(msg, "too many requests") || strings.Contains(msg, "rate limit"):
		return E(KindRateLimit, op, endpoint, rpcErr)
	case strings.Contains(msg, "behind"):
		return E(KindNodeBehind, op, endpoint, rpcErr)
	}
	return E(KindUnknown, op, endpoint, rpcErr)
}

// classifyTransportError maps HTTP/network failures to the taxonomy.
func classifyTransportError(op, endpoint string, status int, err error) *Error {
	if status == 429 {
		return E(KindRateLimit, op, endpoint, err)
	}
	if status >= 500 || (status > 0 && status != 200) {
		return E(KindTransport, op, endpoint, err)
	}

	if errors.Is(err, ratelimiter.ErrCircuitOpen) {
		return E(KindRateLimit, op, endpoint, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return E(KindTransport, op, endpoint, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return E(KindTransport, op, endpoint, err)
	}
	var tlsErr *tls.CertificateVerificationError
	if errors.As(err, &tlsErr) || isTLSMessage(err) {
		return E(KindTransport, op, endpoint, err)
	}
	return E(KindTransport, op, endpoint, err)
}

// IsTLSFailure reports whether the chain looks like a certificate problem.
// The prober records these endpoints as permanently insecure instead of
// retrying them forever.
func IsTLSFailure(err error) bool {
	var tlsErr *tls.CertificateVerificationError
	return errors.As(err, &tlsErr) || isTLSMessage(err)
}

func isTLSMessage(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "tls:") ||
		strings.Contains(msg, "x509:") ||
		strings.Contains(msg, "certificate")
}
