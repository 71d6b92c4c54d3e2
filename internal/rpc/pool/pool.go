package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/helioslabs/solgate/internal/rpc"
	"github.com/helioslabs/solgate/pkg/common/logger"
	"github.com/helioslabs/solgate/pkg/ratelimiter"
	"github.com/helioslabs/solgate/pkg/retry"
)

const (
	// Soft circuit breaker: an endpoint with more consecutive failures than
	// this is skipped by Acquire until its cooldown elapses.
	maxConsecutiveFailures = 3
	failureCooldown        = 300 * time.Second

	// Endpoints are re-sorted by score every this many releases.
	resortInterval = 10

	initAttempts   = 3
	initRetryDelay = 1 * time.Second

	minURLLength = 10
)

// Config parameterizes a pool and the clients it constructs.
type Config struct {
	Client rpc.ClientConfig
	// AuthFor returns the credential for an endpoint URL, or nil. Keys stay
	// scoped to their own host by rpc.AuthConfig.
	AuthFor func(endpointURL string) *rpc.AuthConfig
}

// Pool owns a bounded set of live clients over scored endpoints. Acquire,
// Release and UpdateEndpoints are the only mutation entry points for
// endpoint statistics.
type Pool struct {
	mu sync.Mutex

	cfg         Config
	endpoints   []*Endpoint
	clients     map[string]*rpc.Client
	limiters    *ratelimiter.PooledLimiter
	current     int
	releases    uint64
	initialized bool
}

func New(cfg Config) *Pool {
	return &Pool{
		cfg:      cfg,
		clients:  make(map[string]*rpc.Client),
		limiters: ratelimiter.NewPooledLimiter(cfg.Client.RateLimit),
	}
}

// ValidateEndpointURL enforces the minimal shape every pool member must have.
func ValidateEndpointURL(raw string) error {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return rpc.E(rpc.KindConfig, "validate", raw, errors.New("endpoint must be http(s)"))
	}
	if len(raw) < minURLLength {
		return rpc.E(rpc.KindConfig, "validate", raw, errors.New("endpoint URL too short"))
	}
	hasLetter := false
	for _, r := range raw {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return rpc.E(rpc.KindConfig, "validate", raw, errors.New("endpoint URL has no alphabetic characters"))
	}
	return nil
}

// Initialize validates every candidate and brings up clients with a version
// probe, up to 3 attempts with 1s between them per endpoint. Individual
// endpoint failures are recorded; the pool comes up as long as at least one
// endpoint answers. Zero working endpoints is a connection error.
func (p *Pool) Initialize(ctx context.Context, urls []string) error {
	for _, u := range urls {
		if err := ValidateEndpointURL(u); err != nil {
			return err
		}
	}
	if len(urls) == 0 {
		return rpc.E(rpc.KindConfig, "initialize", "", errors.New("no endpoints configured"))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	working := 0
	for _, u := range urls {
		u = strings.TrimSuffix(u, "/")
		ep := &Endpoint{URL: u, Name: u}
		client := p.newClientLocked(u)

		probeTimeout := p.cfg.Client.Timeout
		if probeTimeout <= 0 {
			probeTimeout = 10 * time.Second
		}
		err := retry.Constant(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()
			_, verr := client.GetVersion(probeCtx)
			return verr
		}, initRetryDelay, initAttempts)

		if err != nil {
			logger.Warn("endpoint failed initialization probe", "endpoint", u, "err", err)
			ep.recordFailure()
		} else {
			ep.recordSuccess(0)
			working++
		}
		ep.InPool = true
		p.endpoints = append(p.endpoints, ep)
		p.clients[u] = client
	}

	if working == 0 {
		p.endpoints = nil
		p.clients = make(map[string]*rpc.Client)
		return rpc.E(rpc.KindConnection, "initialize", "",
			fmt.Errorf("none of %d endpoints completed the version probe", len(urls)))
	}

	p.resortLocked()
	p.initialized = true
	logger.Info("connection pool initialized", "endpoints", len(p.endpoints), "working", working)
	return nil
}

// newClientLocked draws the endpoint's limiter from the shared pool so rate
// and circuit state survive client reconstruction after UpdateEndpoints.
func (p *Pool) newClientLocked(endpoint string) *rpc.Client {
	var auth *rpc.AuthConfig
	if p.cfg.AuthFor != nil {
		auth = p.cfg.AuthFor(endpoint)
	}
	return rpc.NewClientWithLimiter(endpoint, p.cfg.Client, auth, p.limiters.Get(endpoint))
}

// Acquire returns the first viable client in priority order. Endpoints past
// the consecutive-failure threshold are skipped unless their cooldown has
// elapsed, in which case the counter resets and the endpoint gets another
// chance.
func (p *Pool) Acquire(ctx context.Context) (*rpc.Client, error) {
	return p.acquire(ctx, nil)
}

func (p *Pool) acquire(ctx context.Context, skip map[string]bool) (*rpc.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, rpc.E(rpc.KindConnection, "acquire", "", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, rpc.E(rpc.KindConnection, "acquire", "", errors.New("pool not initialized"))
	}

	for i, ep := range p.endpoints {
		if skip[ep.URL] {
			continue
		}
		if ep.ConsecutiveFailures > maxConsecutiveFailures {
			if time.Since(ep.LastSuccess) <= failureCooldown {
				continue
			}
			// Cooldown elapsed: rehabilitate and retry this endpoint.
			logger.Info("rehabilitating endpoint after cooldown",
				"endpoint", redactEndpointURL(ep.URL),
				"failures", ep.ConsecutiveFailures)
			ep.ConsecutiveFailures = 0
		}

		client, ok := p.clients[ep.URL]
		if !ok {
			// Lazy reconstruction after UpdateEndpoints.
			client = p.newClientLocked(ep.URL)
			p.clients[ep.URL] = client
		}
		if client.InCooldown() {
			continue
		}

		p.current = i
		return client, nil
	}

	return nil, rpc.E(rpc.KindConnection, "acquire", "", errors.New("all endpoints failing"))
}

// Release feeds one call outcome back into the owning endpoint's rolling
// statistics. Every resortInterval releases, endpoints are re-sorted by
// success rate (desc) then average latency (asc). The sort is a simple
// heuristic, preserved as-is; it makes no statistical-confidence claims.
func (p *Pool) Release(client *rpc.Client, success bool, latency time.Duration) {
	if client == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ep := range p.endpoints {
		if ep.URL != client.Endpoint() {
			continue
		}
		if success {
			ep.recordSuccess(latency)
		} else {
			ep.recordFailure()
		}
		break
	}

	p.releases++
	if p.releases%resortInterval == 0 {
		p.resortLocked()
	}
}

// WithClient acquires a client, runs fn, and releases with the observed
// outcome even when fn returns an error or panics, so statistics are never
// lost on exceptional exit. Endpoint-specific failures rotate fn to the next
// viable endpoint; only when every endpoint has been tried does the caller
// see a single connection error.
func (p *Pool) WithClient(ctx context.Context, fn func(*rpc.Client) error) error {
	tried := make(map[string]bool)
	var lastErr error

	for {
		client, err := p.acquire(ctx, tried)
		if err != nil {
			if lastErr != nil {
				return rpc.E(rpc.KindConnection, "pool", "",
					fmt.Errorf("all %d endpoints failed, last: %w", len(tried), lastErr))
			}
			return err
		}
		tried[client.Endpoint()] = true

		err = p.runOnce(client, fn)
		if err == nil {
			return nil
		}
		if !rotatable(err) {
			return err
		}
		logger.Warn("rotating to next endpoint",
			"endpoint", redactEndpointURL(client.Endpoint()), "err", err)
		lastErr = err
	}
}

func (p *Pool) runOnce(client *rpc.Client, fn func(*rpc.Client) error) (err error) {
	start := time.Now()
	success := false
	defer func() {
		p.Release(client, success, time.Since(start))
	}()

	if err = fn(client); err != nil {
		return err
	}
	success = true
	return nil
}

// rotatable reports whether a failure is specific to the node that produced
// it and therefore worth retrying on the next endpoint. Skipped slots and
// simulation outcomes are properties of the chain, not the node, and surface
// to the caller immediately.
func rotatable(err error) bool {
	switch rpc.KindOf(err) {
	case rpc.KindTransport, rpc.KindRateLimit, rpc.KindNodeBehind, rpc.KindNodeUnhealthy:
		return true
	default:
		return false
	}
}

func (p *Pool) resortLocked() {
	sort.SliceStable(p.endpoints, func(i, j int) bool {
		ri, rj := p.endpoints[i].SuccessRate(), p.endpoints[j].SuccessRate()
		if ri != rj {
			return ri > rj
		}
		return p.endpoints[i].AvgLatency < p.endpoints[j].AvgLatency
	})
	p.current = 0
}

// PoolStats summarizes the pool for diagnostic endpoints.
type PoolStats struct {
	Total           int             `json:"total"`
	Available       int             `json:"available"`
	CurrentEndpoint string          `json:"current_endpoint"`
	Endpoints       []EndpointStats `json:"endpoints"`
}

// Stats returns the full per-endpoint detail, including raw URLs.
func (p *Pool) Stats() PoolStats {
	return p.stats(false)
}

// FilteredStats redacts API-keyed URLs; this is the only variant that may
// cross the process boundary.
func (p *Pool) FilteredStats() PoolStats {
	return p.stats(true)
}

func (p *Pool) stats(redact bool) PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := PoolStats{Total: len(p.endpoints)}
	for i, ep := range p.endpoints {
		circuitOpen := false
		if client, ok := p.clients[ep.URL]; ok {
			circuitOpen = client.InCooldown()
		}
		s := ep.snapshot(circuitOpen)
		if redact {
			s.URL = redactEndpointURL(s.URL)
		}
		if ep.ConsecutiveFailures <= maxConsecutiveFailures && !circuitOpen {
			out.Available++
		}
		if i == p.current {
			out.CurrentEndpoint = s.URL
		}
		out.Endpoints = append(out.Endpoints, s)
	}
	return out
}

// UpdateEndpoints atomically replaces the working set, preserving the rolling
// statistics of endpoints that survive the swap. Clients of removed
// endpoints are dropped; new endpoints get clients lazily on first Acquire.
func (p *Pool) UpdateEndpoints(urls []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	existing := make(map[string]*Endpoint, len(p.endpoints))
	for _, ep := range p.endpoints {
		existing[ep.URL] = ep
	}

	next := make([]*Endpoint, 0, len(urls))
	keep := make(map[string]bool, len(urls))
	for _, u := range urls {
		u = strings.TrimSuffix(u, "/")
		if err := ValidateEndpointURL(u); err != nil {
			logger.Warn("skipping invalid endpoint in update", "endpoint", u, "err", err)
			continue
		}
		keep[u] = true
		if ep, ok := existing[u]; ok {
			next = append(next, ep)
			continue
		}
		next = append(next, &Endpoint{URL: u, Name: u, InPool: true})
	}
	if len(next) == 0 {
		logger.Warn("endpoint update produced empty set, keeping current endpoints")
		return
	}

	for u := range p.clients {
		if !keep[u] {
			delete(p.clients, u)
		}
	}

	p.endpoints = next
	p.resortLocked()
	logger.Info("pool endpoints updated", "endpoints", len(next))
}

// Initialized reports whether the pool completed Initialize.
func (p *Pool) Initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}

// Close drops all clients and limiter state. The pool must be re-initialized
// before reuse.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.clients = make(map[string]*rpc.Client)
	p.limiters.Close()
	p.endpoints = nil
	p.initialized = false
}
