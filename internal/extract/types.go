package extract

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// maxHandlerErrors caps each handler's rolling error list so a pathological
// block cannot grow it without bound.
const maxHandlerErrors = 50

// OperationRecord is one extracted domain fact. The struct is shared across
// handler types; fields beyond the common set are populated where they apply.
type OperationRecord struct {
	Index     int             `json:"index"` // transaction index within the block
	Type      string          `json:"type"`
	Accounts  []string        `json:"accounts,omitempty"`
	ProgramID string          `json:"program_id,omitempty"`
	Mint      string          `json:"mint,omitempty"`
	Owner     string          `json:"owner,omitempty"`
	Amount    decimal.Decimal `json:"amount,omitempty"`
	Signature string          `json:"signature,omitempty"`
	Raw       json.RawMessage `json:"-"`
}

// ExtractionResult is one handler's output for a block.
type ExtractionResult struct {
	Operations []OperationRecord `json:"operations"`
	Statistics map[string]any    `json:"statistics"`
	Errors     []string          `json:"errors,omitempty"`
}

// InstructionKind tags the normalized instruction variants. Unrecognized
// shapes normalize to KindUnknown rather than disappearing.
type InstructionKind int

const (
	KindUnknown InstructionKind = iota
	KindRaw                     // base58 data blob, program resolved by index
	KindParsed                  // node-side jsonParsed object
)

// ParsedInstruction is the node's jsonParsed payload.
type ParsedInstruction struct {
	Type string
	Info map[string]any
}

// Instruction is the canonical internal shape every wire variant maps to.
type Instruction struct {
	Kind      InstructionKind
	ProgramID string // "unknown" when unresolvable
	Accounts  []string
	Data      string // base58, raw variant only
	Parsed    *ParsedInstruction
	Inner     bool
	Raw       json.RawMessage
}

// TokenBalance is one pre/post token balance entry.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       decimal.Decimal
	Decimals     int32
}

// Transaction is the canonical transaction shape recovered by normalization.
// Any field may be empty when the wire form was missing or mangled.
type Transaction struct {
	Index             int
	Signature         string
	Failed            bool
	AccountKeys       []string
	Instructions      []Instruction
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
	Raw               json.RawMessage
}

// Block pairs a slot with its raw transactions for processing.
type Block struct {
	Slot         uint64
	Blockhash    string
	BlockTime    *int64
	Transactions []json.RawMessage
}
