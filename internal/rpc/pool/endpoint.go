package pool

import (
	"net/url"
	"strings"
	"time"
)

// EMA weights for average latency: 30% newest sample, 70% history.
const (
	emaNewWeight = 0.3
	emaOldWeight = 0.7
)

// Endpoint carries the rolling statistics for one node URL. All mutation
// happens under the owning pool's lock; nothing outside the pool touches
// these fields.
type Endpoint struct {
	URL  string
	Name string

	SuccessCount        uint64
	FailureCount        uint64
	ConsecutiveFailures int
	AvgLatency          time.Duration
	LastLatency         time.Duration
	LastSuccess         time.Time
	InPool              bool
}

// SuccessRate is in [0, 1]; an endpoint with no calls yet scores a neutral 1
// so fresh endpoints are tried before proven-bad ones.
func (e *Endpoint) SuccessRate() float64 {
	total := e.SuccessCount + e.FailureCount
	if total == 0 {
		return 1
	}
	return float64(e.SuccessCount) / float64(total)
}

func (e *Endpoint) recordSuccess(latency time.Duration) {
	e.SuccessCount++
	e.ConsecutiveFailures = 0
	e.LastSuccess = time.Now()

	// A zero latency is an outcome without a timing sample, as released by
	// probe and discovery traffic. The average only tracks observed latencies.
	if latency <= 0 {
		return
	}
	e.LastLatency = latency

	if e.AvgLatency == 0 {
		e.AvgLatency = latency
	} else {
		e.AvgLatency = time.Duration(
			emaNewWeight*float64(latency) + emaOldWeight*float64(e.AvgLatency))
	}
}

func (e *Endpoint) recordFailure() {
	e.FailureCount++
	e.ConsecutiveFailures++
}

// EndpointStats is a read-only snapshot for diagnostics.
type EndpointStats struct {
	URL                 string        `json:"url"`
	Name                string        `json:"name"`
	SuccessCount        uint64        `json:"success_count"`
	FailureCount        uint64        `json:"failure_count"`
	SuccessRate         float64       `json:"success_rate"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	AvgLatencyMs        int64         `json:"avg_latency_ms"`
	LastLatencyMs       int64         `json:"last_latency_ms"`
	LastSuccess         time.Time     `json:"last_success"`
	CircuitOpen         bool          `json:"circuit_open"`
	AvgLatency          time.Duration `json:"-"`
}

func (e *Endpoint) snapshot(circuitOpen bool) EndpointStats {
	return EndpointStats{
		URL:                 e.URL,
		Name:                e.Name,
		SuccessCount:        e.SuccessCount,
		FailureCount:        e.FailureCount,
		SuccessRate:         e.SuccessRate(),
		ConsecutiveFailures: e.ConsecutiveFailures,
		AvgLatencyMs:        e.AvgLatency.Milliseconds(),
		LastLatencyMs:       e.LastLatency.Milliseconds(),
		LastSuccess:         e.LastSuccess,
		CircuitOpen:         circuitOpen,
		AvgLatency:          e.AvgLatency,
	}
}

// redactEndpointURL strips credentials from a URL before it leaves the
// process: the query string is dropped entirely and long path segments
// (provider API keys embedded in the path) are masked.
func redactEndpointURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.User = nil

	segments := strings.Split(u.Path, "/")
	for i, seg := range segments {
		if len(seg) > 16 {
			segments[i] = "***"
		}
	}
	u.Path = strings.Join(segments, "/")
	return u.String()
}
