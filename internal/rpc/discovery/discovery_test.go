package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helioslabs/solgate/internal/rpc"
)

func TestDiscoverQuickReturnsWellKnown(t *testing.T) {
	candidates := Discover(context.Background(), Options{Quick: true})
	require.NotEmpty(t, candidates)
	assert.Equal(t, "https://api.mainnet-beta.solana.com", candidates[0].URL)
}

func TestDiscoverDeduplicates(t *testing.T) {
	candidates := Discover(context.Background(), Options{
		Quick: true,
		Providers: []Provider{
			// Same endpoint as the first well-known entry, trailing slash.
			{Name: "dup", URL: "https://api.mainnet-beta.solana.com/"},
			{Name: "fresh", URL: "https://solana.example.com"},
		},
	})

	seen := map[string]int{}
	for _, c := range candidates {
		seen[c.URL]++
	}
	assert.Equal(t, 1, seen["https://api.mainnet-beta.solana.com"])
	assert.Equal(t, 1, seen["https://solana.example.com"])
}

func TestDiscoverAppliesDenyList(t *testing.T) {
	candidates := Discover(context.Background(), Options{
		Quick:     true,
		DenyHosts: []string{"rpc.ankr.com"},
		Providers: []Provider{
			{Name: "retired", URL: "https://solana-api.projectserum.com"},
		},
	})

	for _, c := range candidates {
		assert.NotContains(t, c.URL, "rpc.ankr.com")
		assert.NotContains(t, c.URL, "projectserum.com", "built-in deny list must apply")
	}
}

func TestProviderKeyScopedToHost(t *testing.T) {
	out := providerCandidates([]Provider{
		{Name: "keyed", URL: "https://rpc.helius.xyz/?api-key=x", APIKey: "secret"},
		{Name: "open", URL: "https://solana.example.com"},
		{Name: "broken", URL: "://not a url"},
	})

	require.Len(t, out, 2)
	require.NotNil(t, out[0].Auth)
	assert.Equal(t, "rpc.helius.xyz", out[0].Auth.Host)
	assert.Equal(t, "secret", out[0].Auth.Token)
	assert.Nil(t, out[1].Auth)
}

func TestRPCAddrFromNode(t *testing.T) {
	tests := []struct {
		name string
		node rpc.ClusterNode
		want string
		ok   bool
	}{
		{"explicit rpc field wins", rpc.ClusterNode{RPC: "1.2.3.4:8899", Gossip: "1.2.3.4:8000"}, "1.2.3.4:8899", true},
		{"gossip port plus one", rpc.ClusterNode{Gossip: "1.2.3.4:8000"}, "1.2.3.4:8001", true},
		{"bare gossip host gets default port", rpc.ClusterNode{Gossip: "1.2.3.4"}, "1.2.3.4:8899", true},
		{"garbage gossip port gets default", rpc.ClusterNode{Gossip: "1.2.3.4:notaport"}, "1.2.3.4:8899", true},
		{"no addresses at all", rpc.ClusterNode{}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := rpcAddrFromNode(tt.node)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDiscoverMergesClusterNodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":[
			{"pubkey":"NodeA1111111111111111111111111111111111111","gossip":"10.0.0.1:8000","rpc":"10.0.0.1:8899"},
			{"pubkey":"NodeB2222222222222222222222222222222222222","gossip":"10.0.0.2:8000"},
			{"pubkey":"NodeC3333333333333333333333333333333333333"}
		]}`)
	}))
	defer srv.Close()

	seed := rpc.NewClient(srv.URL, rpc.DefaultClientConfig(), nil)
	candidates := Discover(context.Background(), Options{Seed: seed})

	urls := make(map[string]bool)
	for _, c := range candidates {
		urls[c.URL] = true
	}
	assert.True(t, urls["http://10.0.0.1:8899"], "explicit rpc address")
	assert.True(t, urls["http://10.0.0.2:8001"], "derived from gossip port")
}

func TestDiscoverSurvivesSeedFailure(t *testing.T) {
	seed := rpc.NewClient("http://127.0.0.1:1", rpc.ClientConfig{MaxRetries: 1}, nil)
	candidates := Discover(context.Background(), Options{Seed: seed})
	assert.NotEmpty(t, candidates, "static sources must survive cluster discovery failure")
}
