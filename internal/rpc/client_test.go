package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helioslabs/solgate/pkg/ratelimiter"
)

func fastClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:     2 * time.Second,
		MaxRetries:  3,
		RetryDelay:  5 * time.Millisecond,
		BackoffBase: 1.0,
		MaxBackoff:  20 * time.Millisecond,
		RateLimit: ratelimiter.Config{
			InitialRate:             1000,
			MinRate:                 1,
			MaxRate:                 1000,
			IncreaseFactor:          1.1,
			DecreaseFactor:          0.5,
			Burst:                   100,
			CircuitBreakerThreshold: 5,
			CooldownDuration:        time.Minute,
		},
	}
}

func rpcResult(t *testing.T, w http.ResponseWriter, result string) {
	t.Helper()
	fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":%s}`, result)
}

func rpcError(w http.ResponseWriter, code int, msg string) {
	fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"error":{"code":%d,"message":%q}}`, code, msg)
}

func TestCallSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getVersion", req.Method)
		rpcResult(t, w, `{"solana-core":"1.18.22","feature-set":4215500110}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastClientConfig(), nil)
	v, err := c.GetVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.18.22", v.SolanaCore)
}

func TestCallRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		rpcResult(t, w, `123456`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastClientConfig(), nil)
	slot, err := c.GetSlot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(123456), slot)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCallDoesNotRetrySkippedSlot(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		rpcError(w, -32007, "Slot 100 was skipped, or missing due to ledger jump to recent snapshot")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastClientConfig(), nil)
	_, err := c.GetBlock(context.Background(), 100)
	require.Error(t, err)
	assert.Equal(t, KindSlotSkipped, KindOf(err))
	assert.Equal(t, int32(1), calls.Load(), "skipped slot is final, not retried")
}

func TestCallClassifiesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastClientConfig(), nil)
	_, err := c.GetSlot(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindRateLimit, KindOf(err))
	assert.Equal(t, int32(1), calls.Load(), "rate limiting rotates endpoints, not retries")
}

func TestNullBlockIsSkippedSlot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rpcResult(t, w, `null`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastClientConfig(), nil)
	_, err := c.GetBlock(context.Background(), 42)
	require.Error(t, err)
	assert.Equal(t, KindSlotSkipped, KindOf(err))
}

func TestGetHealthUnhealthyNode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rpcResult(t, w, `"behind"`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastClientConfig(), nil)
	err := c.GetHealth(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindNodeUnhealthy, KindOf(err))
}

func TestGetLatestBlockhashLegacyFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.Method {
		case "getLatestBlockhash":
			rpcError(w, -32601, "Method not found")
		case "getRecentBlockhash":
			rpcResult(t, w, `{"context":{"slot":100},"value":{"blockhash":"EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N"}}`)
		default:
			t.Errorf("unexpected method %s", req.Method)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastClientConfig(), nil)
	bh, err := c.GetLatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N", bh.Blockhash)
}

func TestRateAdaptsUpwardOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rpcResult(t, w, `1`)
	}))
	defer srv.Close()

	cfg := fastClientConfig()
	cfg.RateLimit.InitialRate = 10
	cfg.RateLimit.MaxRate = 50
	c := NewClient(srv.URL, cfg, nil)

	prev := c.LimiterStats().Rate
	for i := 0; i < 10; i++ {
		_, err := c.GetSlot(context.Background())
		require.NoError(t, err)

		cur := c.LimiterStats().Rate
		assert.GreaterOrEqual(t, cur, prev, "rate must grow monotonically under sustained success")
		assert.LessOrEqual(t, cur, 50.0)
		prev = cur
	}
	assert.Greater(t, prev, 10.0)
}

func TestCircuitOpensAndFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := fastClientConfig()
	cfg.RateLimit.CircuitBreakerThreshold = 3
	cfg.MaxRetries = 1
	c := NewClient(srv.URL, cfg, nil)

	for i := 0; i < 3; i++ {
		_, err := c.GetSlot(context.Background())
		require.Error(t, err)
	}
	require.True(t, c.InCooldown())

	// Subsequent calls fail fast without touching the wire.
	_, err := c.GetSlot(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindRateLimit, KindOf(err))
}

func TestAuthHeaderSentToMatchingHost(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		rpcResult(t, w, `1`)
	}))
	defer srv.Close()

	auth := &AuthConfig{Type: "bearer", Token: "secret", Host: "127.0.0.1"}
	c := NewClient(srv.URL, fastClientConfig(), auth)
	_, err := c.GetSlot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth.Load())
}

func TestAuthHeaderDroppedForForeignHost(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		rpcResult(t, w, `1`)
	}))
	defer srv.Close()

	auth := &AuthConfig{Type: "bearer", Token: "secret", Host: "rpc.other-provider.com"}
	c := NewClient(srv.URL, fastClientConfig(), auth)
	_, err := c.GetSlot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", gotAuth.Load(), "key must never travel to a foreign host")
}

func TestMalformedJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0", truncated`)
	}))
	defer srv.Close()

	cfg := fastClientConfig()
	cfg.MaxRetries = 1
	c := NewClient(srv.URL, cfg, nil)
	_, err := c.GetSlot(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindTransport, KindOf(err))
}
