package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/helioslabs/solgate/pkg/common/logger"
	"github.com/helioslabs/solgate/pkg/ratelimiter"
	"github.com/helioslabs/solgate/pkg/retry"
)

// ClientConfig controls the single-endpoint transport.
type ClientConfig struct {
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
	BackoffBase float64
	MaxBackoff  time.Duration
	RateLimit   ratelimiter.Config
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:     10 * time.Second,
		MaxRetries:  3,
		RetryDelay:  500 * time.Millisecond,
		BackoffBase: 2.0,
		MaxBackoff:  8 * time.Second,
		RateLimit:   ratelimiter.DefaultConfig(),
	}
}

// Client wraps one endpoint with timeout, retry with exponential backoff, and
// a self-tuning token-bucket rate limiter.
type Client struct {
	endpoint   string
	httpClient *http.Client
	auth       *AuthConfig
	limiter    *ratelimiter.AdaptiveLimiter
	policy     retry.Policy
	rpcID      atomic.Int64
}

func NewClient(endpoint string, cfg ClientConfig, auth *AuthConfig) *Client {
	return NewClientWithLimiter(endpoint, cfg, auth, ratelimiter.NewAdaptiveLimiter(cfg.RateLimit))
}

// NewClientWithLimiter builds a client around an externally owned limiter, so
// rate and circuit state can outlive any one client instance.
func NewClientWithLimiter(endpoint string, cfg ClientConfig, auth *AuthConfig, limiter *ratelimiter.AdaptiveLimiter) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if auth != nil && !auth.AppliesTo(endpoint) {
		// Credentials never travel to a foreign host.
		auth = nil
	}
	c := &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		// Proxy settings are deliberately absent: the transport carries only
		// what this client needs.
		httpClient: &http.Client{Timeout: cfg.Timeout},
		auth:       auth,
		limiter:    limiter,
	}
	c.policy = retry.Policy{
		MaxAttempts:     cfg.MaxRetries,
		InitialInterval: cfg.RetryDelay,
		Multiplier:      cfg.BackoffBase,
		MaxInterval:     cfg.MaxBackoff,
		Retryable:       IsRetryable,
		OnRetry: func(err error, next time.Duration) {
			logger.Debug("retrying RPC call", "endpoint", c.endpoint, "next", next, "err", err)
		},
	}
	return c
}

func (c *Client) Endpoint() string { return c.endpoint }

// InCooldown reports whether the endpoint's circuit breaker is open.
func (c *Client) InCooldown() bool { return c.limiter.InCooldown() }

// LimiterStats exposes the adaptive limiter state for diagnostics.
func (c *Client) LimiterStats() ratelimiter.Stats { return c.limiter.Stats() }

// Call performs one JSON-RPC method call with retry, backoff and rate
// limiting. Every returned error carries a Kind.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	var result json.RawMessage

	err := c.policy.Do(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return classifyTransportError(method, c.endpoint, 0, err)
		}

		res, err := c.doCall(ctx, method, params)
		if err != nil {
			c.limiter.RecordFailure()
			return err
		}

		c.limiter.RecordSuccess()
		result = res
		return nil
	})
	return result, err
}

func (c *Client) doCall(ctx context.Context, method string, params any) (json.RawMessage, error) {
	req := RPCRequest{
		ID:      c.rpcID.Add(1),
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, E(KindConfig, method, c.endpoint, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, E(KindConfig, method, c.endpoint, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(httpReq)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(method, c.endpoint, 0, err)
	}
	defer resp.Body.Close()

	logger.Debug("RPC call completed",
		"endpoint", c.endpoint, "method", method, "status", resp.StatusCode,
		"elapsed", time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(method, c.endpoint, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyTransportError(method, c.endpoint, resp.StatusCode,
			fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	var rpcResp RPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, E(KindTransport, method, c.endpoint, fmt.Errorf("malformed JSON response: %w", err))
	}
	if rpcResp.Error != nil {
		return nil, classifyRPCError(method, c.endpoint, rpcResp.Error)
	}
	return rpcResp.Result, nil
}

func (c *Client) setAuthHeaders(req *http.Request) {
	if c.auth == nil {
		return
	}
	switch c.auth.Type {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+c.auth.Token)
	case "api_key":
		req.Header.Set("X-API-Key", c.auth.Token)
	case "custom":
		for k, v := range c.auth.Headers {
			req.Header.Set(k, v)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
