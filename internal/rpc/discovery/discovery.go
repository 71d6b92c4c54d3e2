package discovery

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/helioslabs/solgate/internal/rpc"
	"github.com/helioslabs/solgate/pkg/common/logger"
)

const defaultRPCPort = 8899

// Candidate is a discovered endpoint that has not been probed yet.
type Candidate struct {
	URL  string
	Name string
	Auth *rpc.AuthConfig
}

// Provider is a configured community endpoint. A provider carrying an API key
// is only usable when the key's host matches the endpoint host.
type Provider struct {
	Name   string
	URL    string
	APIKey string
}

// Options parameterizes one discovery pass.
type Options struct {
	// Quick skips the expensive live cluster-node discovery.
	Quick bool
	// Seed is an already-working client used for getClusterNodes. Nil
	// disables cluster discovery.
	Seed *rpc.Client
	// Providers are configured community endpoints, merged after the
	// well-known list.
	Providers []Provider
	// DenyHosts drops endpoints whose host matches; merged with the built-in
	// deny list.
	DenyHosts []string
}

// wellKnownEndpoints are official/public entry points, always first in
// priority order.
var wellKnownEndpoints = []Candidate{
	{URL: "https://api.mainnet-beta.solana.com", Name: "solana-mainnet"},
	{URL: "https://solana-rpc.publicnode.com", Name: "publicnode"},
	{URL: "https://rpc.ankr.com/solana", Name: "ankr"},
}

// defaultDenyHosts are providers known to serve broken or retired RPC.
var defaultDenyHosts = []string{
	"solana-api.projectserum.com",
}

// Discover merges endpoint sources in priority order: well-known, configured
// providers, then live cluster nodes. Any single source failing degrades the
// result instead of failing the pass. The returned list is deduplicated and
// order-preserving.
func Discover(ctx context.Context, opts Options) []Candidate {
	deny := make(map[string]bool)
	for _, h := range defaultDenyHosts {
		deny[h] = true
	}
	for _, h := range opts.DenyHosts {
		deny[h] = true
	}

	var merged []Candidate
	merged = append(merged, wellKnownEndpoints...)
	merged = append(merged, providerCandidates(opts.Providers)...)

	if !opts.Quick && opts.Seed != nil {
		nodes, err := clusterCandidates(ctx, opts.Seed)
		if err != nil {
			// Graceful degradation: cluster discovery is best-effort, but the
			// fallback is never silent.
			logger.Warn("cluster node discovery failed, continuing with static sources",
				"seed", opts.Seed.Endpoint(), "err", err)
		}
		merged = append(merged, nodes...)
	}

	seen := make(map[string]bool, len(merged))
	out := make([]Candidate, 0, len(merged))
	for _, c := range merged {
		u, err := url.Parse(c.URL)
		if err != nil || u.Host == "" {
			logger.Warn("dropping unparsable endpoint", "url", c.URL)
			continue
		}
		if deny[u.Hostname()] {
			logger.Debug("dropping deny-listed endpoint", "url", c.URL)
			continue
		}
		key := strings.TrimSuffix(c.URL, "/")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}

	logger.Info("endpoint discovery complete",
		"candidates", len(out), "quick", opts.Quick, "providers", len(opts.Providers))
	return out
}

// providerCandidates validates configured providers. A keyed provider whose
// URL host cannot be determined is dropped so the key never leaks to a
// foreign host.
func providerCandidates(providers []Provider) []Candidate {
	out := make([]Candidate, 0, len(providers))
	for _, p := range providers {
		u, err := url.Parse(p.URL)
		if err != nil || u.Hostname() == "" {
			logger.Warn("skipping provider with invalid URL", "provider", p.Name, "url", p.URL)
			continue
		}

		var auth *rpc.AuthConfig
		if p.APIKey != "" {
			auth = &rpc.AuthConfig{
				Type:  "bearer",
				Token: p.APIKey,
				Host:  u.Hostname(),
			}
		}
		out = append(out, Candidate{URL: p.URL, Name: p.Name, Auth: auth})
	}
	return out
}

// clusterCandidates queries one reachable node for its peers and derives RPC
// URLs from the gossip table.
func clusterCandidates(ctx context.Context, seed *rpc.Client) ([]Candidate, error) {
	nodes, err := seed.GetClusterNodes(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(nodes))
	for _, n := range nodes {
		addr, ok := rpcAddrFromNode(n)
		if !ok {
			continue
		}
		out = append(out, Candidate{
			URL:  "http://" + addr,
			Name: "cluster-" + shortPubkey(n.Pubkey),
		})
	}
	logger.Debug("cluster discovery derived endpoints", "nodes", len(nodes), "derived", len(out))
	return out, nil
}

// rpcAddrFromNode derives host:port for a node's RPC service. Preference
// order: the explicit rpc field, gossip port + 1, then the default RPC port.
func rpcAddrFromNode(n rpc.ClusterNode) (string, bool) {
	if n.RPC != "" {
		return n.RPC, true
	}
	if n.Gossip == "" {
		return "", false
	}

	host, portStr, err := net.SplitHostPort(n.Gossip)
	if err != nil {
		return net.JoinHostPort(n.Gossip, strconv.Itoa(defaultRPCPort)), true
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port >= 65535 {
		return net.JoinHostPort(host, strconv.Itoa(defaultRPCPort)), true
	}
	// Convention: validators expose RPC one port above gossip.
	return net.JoinHostPort(host, strconv.Itoa(port+1)), true
}

func shortPubkey(pk string) string {
	if len(pk) <= 8 {
		return pk
	}
	return pk[:8]
}
