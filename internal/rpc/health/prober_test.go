package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helioslabs/solgate/internal/rpc"
	"github.com/helioslabs/solgate/internal/rpc/discovery"
)

// rpcNode simulates a Solana node where individual methods can be broken.
func rpcNode(t *testing.T, broken map[string]bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpc.RPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if broken[req.Method] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		switch req.Method {
		case "getHealth":
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":"ok"}`)
		case "getVersion":
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{"solana-core":"1.18.22"}}`)
		case "getLatestBlockhash":
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":{"blockhash":"hash","lastValidBlockHeight":100}}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestProbeHealthyNode(t *testing.T) {
	srv := rpcNode(t, nil)
	defer srv.Close()

	v := Probe(context.Background(), discovery.Candidate{URL: srv.URL, Name: "test"}, time.Second)
	assert.True(t, v.Healthy)
	assert.Equal(t, 3, v.Passed)
	assert.Empty(t, v.Reason)
	assert.Greater(t, v.Latency, time.Duration(0))
}

func TestProbeTwoOfThreePasses(t *testing.T) {
	srv := rpcNode(t, map[string]bool{"getHealth": true})
	defer srv.Close()

	v := Probe(context.Background(), discovery.Candidate{URL: srv.URL}, time.Second)
	assert.True(t, v.Healthy, "2 of 3 checks passing is healthy")
	assert.Equal(t, 2, v.Passed)
}

func TestProbeOneOfThreeFails(t *testing.T) {
	srv := rpcNode(t, map[string]bool{"getHealth": true, "getVersion": true})
	defer srv.Close()

	v := Probe(context.Background(), discovery.Candidate{URL: srv.URL}, time.Second)
	assert.False(t, v.Healthy)
	assert.Equal(t, 1, v.Passed)
	assert.Contains(t, v.Reason, "getHealth")
}

func TestProbeUnreachableEndpoint(t *testing.T) {
	v := Probe(context.Background(), discovery.Candidate{URL: "http://127.0.0.1:1"}, 500*time.Millisecond)
	assert.False(t, v.Healthy)
	assert.Equal(t, 0, v.Passed)
	assert.NotEmpty(t, v.Reason)
}

func TestProbeMalformedResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json at all`)
	}))
	defer srv.Close()

	v := Probe(context.Background(), discovery.Candidate{URL: srv.URL}, time.Second)
	assert.False(t, v.Healthy)
}

func TestProbeAllPreservesOrder(t *testing.T) {
	good := rpcNode(t, nil)
	defer good.Close()
	bad := rpcNode(t, map[string]bool{"getHealth": true, "getVersion": true, "getLatestBlockhash": true})
	defer bad.Close()

	candidates := []discovery.Candidate{
		{URL: bad.URL, Name: "bad"},
		{URL: good.URL, Name: "good"},
	}
	verdicts := ProbeAll(context.Background(), candidates, time.Second, 2)
	require.Len(t, verdicts, 2)
	assert.Equal(t, "bad", verdicts[0].Name)
	assert.Equal(t, "good", verdicts[1].Name)
	assert.False(t, verdicts[0].Healthy)
	assert.True(t, verdicts[1].Healthy)
}

func TestRankHealthyFirstThenLatency(t *testing.T) {
	verdicts := []Verdict{
		{Endpoint: "a", Healthy: false, Latency: 10 * time.Millisecond},
		{Endpoint: "b", Healthy: true, Latency: 50 * time.Millisecond},
		{Endpoint: "c", Healthy: true, Latency: 20 * time.Millisecond},
	}
	ranked := Rank(verdicts)
	assert.Equal(t, "c", ranked[0].Endpoint)
	assert.Equal(t, "b", ranked[1].Endpoint)
	assert.Equal(t, "a", ranked[2].Endpoint)
}

func TestSelectTopSkipsUnhealthy(t *testing.T) {
	verdicts := []Verdict{
		{Endpoint: "a", Healthy: true, Latency: 30 * time.Millisecond},
		{Endpoint: "b", Healthy: false},
		{Endpoint: "c", Healthy: true, Latency: 10 * time.Millisecond},
	}
	assert.Equal(t, []string{"c", "a"}, SelectTop(verdicts, 5))
	assert.Equal(t, []string{"c"}, SelectTop(verdicts, 1))
}
