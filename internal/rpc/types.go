package rpc

import (
	"encoding/json"
	"fmt"
)

// Commitment levels for read requests.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// RPCRequest represents a JSON-RPC 2.0 request.
type RPCRequest struct {
	ID      int64  `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// RPCResponse represents a JSON-RPC 2.0 response.
type RPCResponse struct {
	ID      any             `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// VersionInfo is the result of getVersion.
type VersionInfo struct {
	SolanaCore string `json:"solana-core"`
	FeatureSet uint64 `json:"feature-set"`
}

// LatestBlockhash is the value of getLatestBlockhash (and the legacy
// getRecentBlockhash, which nests it differently).
type LatestBlockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// ClusterNode is one entry of getClusterNodes.
type ClusterNode struct {
	Pubkey  string `json:"pubkey"`
	Gossip  string `json:"gossip"`
	RPC     string `json:"rpc"`
	TPU     string `json:"tpu"`
	Version string `json:"version"`
}

// VoteAccount is one entry of getVoteAccounts.
type VoteAccount struct {
	VotePubkey       string `json:"votePubkey"`
	NodePubkey       string `json:"nodePubkey"`
	ActivatedStake   uint64 `json:"activatedStake"`
	Commission       int    `json:"commission"`
	EpochVoteAccount bool   `json:"epochVoteAccount"`
	LastVote         uint64 `json:"lastVote"`
	RootSlot         uint64 `json:"rootSlot"`
}

// VoteAccounts is the result of getVoteAccounts.
type VoteAccounts struct {
	Current    []VoteAccount `json:"current"`
	Delinquent []VoteAccount `json:"delinquent"`
}

// PerformanceSample is one entry of getRecentPerformanceSamples.
type PerformanceSample struct {
	Slot             uint64 `json:"slot"`
	NumSlots         uint64 `json:"numSlots"`
	NumTransactions  uint64 `json:"numTransactions"`
	SamplePeriodSecs int64  `json:"samplePeriodSecs"`
}

// EpochInfo is the result of getEpochInfo.
type EpochInfo struct {
	AbsoluteSlot     uint64 `json:"absoluteSlot"`
	BlockHeight      uint64 `json:"blockHeight"`
	Epoch            uint64 `json:"epoch"`
	SlotIndex        uint64 `json:"slotIndex"`
	SlotsInEpoch     uint64 `json:"slotsInEpoch"`
	TransactionCount uint64 `json:"transactionCount"`
}

// BalanceResponse is the contextual result of getBalance.
type BalanceResponse struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value uint64 `json:"value"`
}

// GetBlockConfig parameterizes getBlock.
type GetBlockConfig struct {
	Encoding                       string `json:"encoding"`
	TransactionDetails             string `json:"transactionDetails"`
	Rewards                        bool   `json:"rewards"`
	MaxSupportedTransactionVersion int    `json:"maxSupportedTransactionVersion"`
	Commitment                     string `json:"commitment,omitempty"`
}

// Block is a decoded getBlock result. Transactions stay raw: the extraction
// pipeline treats them as untrusted trees and normalizes each one defensively.
type Block struct {
	Slot              uint64            `json:"-"`
	Blockhash         string            `json:"blockhash"`
	PreviousBlockhash string            `json:"previousBlockhash"`
	ParentSlot        uint64            `json:"parentSlot"`
	BlockTime         *int64            `json:"blockTime"`
	BlockHeight       *uint64           `json:"blockHeight"`
	Transactions      []json.RawMessage `json:"transactions"`
}
