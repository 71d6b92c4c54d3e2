package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/helioslabs/solgate/internal/rpc"
	"github.com/helioslabs/solgate/internal/rpc/discovery"
	"github.com/helioslabs/solgate/pkg/common/logger"
	"github.com/helioslabs/solgate/pkg/ratelimiter"
)

const (
	// minPassingChecks: an endpoint is healthy iff at least 2 of the 3
	// battery calls succeed.
	minPassingChecks = 2
	batteryChecks    = 3

	DefaultConcurrency = 10
	DefaultTimeout     = 5 * time.Second
)

// Verdict is the outcome of probing one endpoint.
type Verdict struct {
	Endpoint          string        `json:"endpoint"`
	Name              string        `json:"name"`
	Healthy           bool          `json:"healthy"`
	Latency           time.Duration `json:"latency"`
	Passed            int           `json:"passed"`
	Reason            string        `json:"reason,omitempty"`
	InsecureTransport bool          `json:"insecure_transport,omitempty"`
}

// Probe runs the fixed battery (getHealth, getVersion, getLatestBlockhash
// with its legacy fallback) against one candidate. Failures of any shape map
// to an unhealthy verdict with a reason; Probe never panics and never returns
// an error.
func Probe(ctx context.Context, cand discovery.Candidate, timeout time.Duration) Verdict {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	// Probe clients get one attempt per check and a quiet limiter; retrying
	// inside a probe would hide the very latency we are measuring.
	cfg := rpc.ClientConfig{
		Timeout:    timeout,
		MaxRetries: 1,
		RateLimit:  ratelimiter.Config{InitialRate: 100, MinRate: 1, MaxRate: 100, Burst: batteryChecks + 1},
	}
	client := rpc.NewClient(cand.URL, cfg, cand.Auth)

	v := Verdict{Endpoint: cand.URL, Name: cand.Name}
	start := time.Now()

	checks := []struct {
		name string
		run  func(context.Context) error
	}{
		{"getHealth", func(cctx context.Context) error { return client.GetHealth(cctx) }},
		{"getVersion", func(cctx context.Context) error {
			_, err := client.GetVersion(cctx)
			return err
		}},
		{"getLatestBlockhash", func(cctx context.Context) error {
			_, err := client.GetLatestBlockhash(cctx)
			return err
		}},
	}

	var firstFailure string
	for _, check := range checks {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		err := check.run(cctx)
		cancel()

		if err == nil {
			v.Passed++
			continue
		}
		if rpc.IsTLSFailure(err) {
			v.InsecureTransport = true
		}
		if firstFailure == "" {
			firstFailure = check.name + ": " + err.Error()
		}
	}

	v.Latency = time.Since(start)
	v.Healthy = v.Passed >= minPassingChecks
	if !v.Healthy {
		v.Reason = firstFailure
	}
	return v
}

// ProbeAll probes candidates with bounded concurrency so a large candidate
// list cannot overwhelm the local network stack. Result order matches input
// order.
func ProbeAll(ctx context.Context, candidates []discovery.Candidate, timeout time.Duration, concurrency int) []Verdict {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	verdicts := make([]Verdict, len(candidates))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, cand := range candidates {
		wg.Add(1)
		go func(i int, cand discovery.Candidate) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			verdicts[i] = Probe(ctx, cand, timeout)
		}(i, cand)
	}
	wg.Wait()

	healthy := 0
	for _, v := range verdicts {
		if v.Healthy {
			healthy++
		}
	}
	logger.Info("probe sweep complete", "probed", len(verdicts), "healthy", healthy)
	return verdicts
}

// Rank orders verdicts healthy-first, then by latency ascending. The sort is
// stable so equal endpoints keep their discovery priority.
func Rank(verdicts []Verdict) []Verdict {
	ranked := make([]Verdict, len(verdicts))
	copy(ranked, verdicts)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Healthy != ranked[j].Healthy {
			return ranked[i].Healthy
		}
		return ranked[i].Latency < ranked[j].Latency
	})
	return ranked
}

// SelectTop returns the URLs of the best n healthy endpoints.
func SelectTop(verdicts []Verdict, n int) []string {
	out := make([]string, 0, n)
	for _, v := range Rank(verdicts) {
		if !v.Healthy {
			break
		}
		out = append(out, v.Endpoint)
		if len(out) == n {
			break
		}
	}
	return out
}
