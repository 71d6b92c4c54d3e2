package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Typed wrappers over the Solana JSON-RPC surface the core consumes.

// GetHealth returns nil iff the node reports "ok".
func (c *Client) GetHealth(ctx context.Context) error {
	res, err := c.Call(ctx, "getHealth", nil)
	if err != nil {
		return err
	}
	var status string
	if err := json.Unmarshal(res, &status); err != nil {
		return E(KindNodeUnhealthy, "getHealth", c.endpoint, fmt.Errorf("decode health: %w", err))
	}
	if status != "ok" {
		return E(KindNodeUnhealthy, "getHealth", c.endpoint, fmt.Errorf("node reports %q", status))
	}
	return nil
}

func (c *Client) GetVersion(ctx context.Context) (*VersionInfo, error) {
	res, err := c.Call(ctx, "getVersion", nil)
	if err != nil {
		return nil, err
	}
	var v VersionInfo
	if err := json.Unmarshal(res, &v); err != nil {
		return nil, E(KindTransport, "getVersion", c.endpoint, fmt.Errorf("decode version: %w", err))
	}
	return &v, nil
}

func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	res, err := c.Call(ctx, "getSlot", []any{map[string]string{"commitment": CommitmentConfirmed}})
	if err != nil {
		return 0, err
	}
	var slot uint64
	if err := json.Unmarshal(res, &slot); err != nil {
		return 0, E(KindTransport, "getSlot", c.endpoint, fmt.Errorf("decode slot: %w", err))
	}
	return slot, nil
}

func (c *Client) GetBlockHeight(ctx context.Context) (uint64, error) {
	res, err := c.Call(ctx, "getBlockHeight", nil)
	if err != nil {
		return 0, err
	}
	var height uint64
	if err := json.Unmarshal(res, &height); err != nil {
		return 0, E(KindTransport, "getBlockHeight", c.endpoint, fmt.Errorf("decode height: %w", err))
	}
	return height, nil
}

// GetLatestBlockhash falls back to the deprecated getRecentBlockhash for
// nodes that predate the rename.
func (c *Client) GetLatestBlockhash(ctx context.Context) (*LatestBlockhash, error) {
	res, err := c.Call(ctx, "getLatestBlockhash", nil)
	if err == nil {
		var out struct {
			Value LatestBlockhash `json:"value"`
		}
		if uerr := json.Unmarshal(res, &out); uerr != nil {
			return nil, E(KindTransport, "getLatestBlockhash", c.endpoint, uerr)
		}
		return &out.Value, nil
	}

	if !isMethodNotFound(err) {
		return nil, err
	}

	res, rerr := c.Call(ctx, "getRecentBlockhash", nil)
	if rerr != nil {
		return nil, rerr
	}
	var legacy struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if uerr := json.Unmarshal(res, &legacy); uerr != nil {
		return nil, E(KindTransport, "getRecentBlockhash", c.endpoint, uerr)
	}
	return &LatestBlockhash{Blockhash: legacy.Value.Blockhash}, nil
}

func isMethodNotFound(err error) bool {
	var inner *RPCError
	return errors.As(err, &inner) && inner.Code == codeMethodNotFound
}

// GetBlock fetches one block with jsonParsed encoding. A null result (skipped
// slot) surfaces as KindSlotSkipped so callers report "data unavailable"
// instead of retrying.
func (c *Client) GetBlock(ctx context.Context, slot uint64) (*Block, error) {
	cfg := GetBlockConfig{
		Encoding:                       "jsonParsed",
		TransactionDetails:             "full",
		Rewards:                        false,
		MaxSupportedTransactionVersion: 0,
		Commitment:                     CommitmentConfirmed,
	}
	res, err := c.Call(ctx, "getBlock", []any{slot, cfg})
	if err != nil {
		return nil, err
	}
	if len(res) == 0 || string(res) == "null" {
		return nil, E(KindSlotSkipped, "getBlock", c.endpoint, fmt.Errorf("slot %d has no block", slot))
	}
	var block Block
	if err := json.Unmarshal(res, &block); err != nil {
		return nil, E(KindTransport, "getBlock", c.endpoint, fmt.Errorf("decode block: %w", err))
	}
	block.Slot = slot
	return &block, nil
}

func (c *Client) GetClusterNodes(ctx context.Context) ([]ClusterNode, error) {
	res, err := c.Call(ctx, "getClusterNodes", nil)
	if err != nil {
		return nil, err
	}
	var nodes []ClusterNode
	if err := json.Unmarshal(res, &nodes); err != nil {
		return nil, E(KindTransport, "getClusterNodes", c.endpoint, fmt.Errorf("decode nodes: %w", err))
	}
	return nodes, nil
}

func (c *Client) GetVoteAccounts(ctx context.Context) (*VoteAccounts, error) {
	res, err := c.Call(ctx, "getVoteAccounts", nil)
	if err != nil {
		return nil, err
	}
	var va VoteAccounts
	if err := json.Unmarshal(res, &va); err != nil {
		return nil, E(KindTransport, "getVoteAccounts", c.endpoint, fmt.Errorf("decode vote accounts: %w", err))
	}
	return &va, nil
}

func (c *Client) GetRecentPerformanceSamples(ctx context.Context, limit int) ([]PerformanceSample, error) {
	var params []any
	if limit > 0 {
		params = []any{limit}
	}
	res, err := c.Call(ctx, "getRecentPerformanceSamples", params)
	if err != nil {
		return nil, err
	}
	var samples []PerformanceSample
	if err := json.Unmarshal(res, &samples); err != nil {
		return nil, E(KindTransport, "getRecentPerformanceSamples", c.endpoint, fmt.Errorf("decode samples: %w", err))
	}
	return samples, nil
}

func (c *Client) GetEpochInfo(ctx context.Context) (*EpochInfo, error) {
	res, err := c.Call(ctx, "getEpochInfo", nil)
	if err != nil {
		return nil, err
	}
	var info EpochInfo
	if err := json.Unmarshal(res, &info); err != nil {
		return nil, E(KindTransport, "getEpochInfo", c.endpoint, fmt.Errorf("decode epoch info: %w", err))
	}
	return &info, nil
}

func (c *Client) GetBalance(ctx context.Context, address string) (uint64, error) {
	res, err := c.Call(ctx, "getBalance", []any{address})
	if err != nil {
		return 0, err
	}
	var br BalanceResponse
	if err := json.Unmarshal(res, &br); err != nil {
		return 0, E(KindTransport, "getBalance", c.endpoint, fmt.Errorf("decode balance: %w", err))
	}
	return br.Value, nil
}
