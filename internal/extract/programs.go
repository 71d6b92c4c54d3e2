package extract

import (
	"encoding/binary"
	"strings"

	"github.com/mr-tron/base58"
)

// Well-known program IDs.
const (
	TokenProgramID           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID       = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	AssociatedTokenProgramID = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	MetadataProgramID        = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"
	SystemProgramID          = "11111111111111111111111111111111"
	ComputeBudgetProgramID   = "ComputeBudget111111111111111111111111111111"
	VoteProgramID            = "Vote111111111111111111111111111111111111111"
	StakeProgramID           = "Stake11111111111111111111111111111111111111"
	MemoProgramID            = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"
	GovernanceProgramID      = "GovER5Lthms3bLBqWub97yVrMmEogzX7xNjdXpPPCVZw"
	CandyMachineProgramID    = "cndy3Z4yapfJBmL3ShUp5exZKqR3z33thTzeNMm2gRZ"
	UnknownProgramID         = "unknown"
)

// ProgramCategory maps known program IDs to a semantic category.
var ProgramCategory = map[string]string{
	TokenProgramID:           "token",
	Token2022ProgramID:       "token",
	AssociatedTokenProgramID: "token",
	MetadataProgramID:        "nft",
	CandyMachineProgramID:    "nft",
	SystemProgramID:          "system",
	ComputeBudgetProgramID:   "compute_budget",
	VoteProgramID:            "vote",
	StakeProgramID:           "stake",
	MemoProgramID:            "memo",
	GovernanceProgramID:      "governance",
}

// CategoryOf returns the semantic category for a program id, or "unknown".
func CategoryOf(programID string) string {
	if cat, ok := ProgramCategory[programID]; ok {
		return cat
	}
	return "unknown"
}

// tokenInstructionNames maps the SPL Token single-byte discriminator to an
// operation name. Token-2022 shares the base layout.
var tokenInstructionNames = map[byte]string{
	0:  "initialize_mint",
	1:  "initialize_account",
	3:  "transfer",
	4:  "approve",
	5:  "revoke",
	6:  "set_authority",
	7:  "mint_to",
	8:  "burn",
	9:  "close_account",
	10: "freeze_account",
	11: "thaw_account",
	12: "transfer_checked",
	13: "approve_checked",
	14: "mint_to_checked",
	15: "burn_checked",
	16: "initialize_account2",
	18: "initialize_account3",
	20: "initialize_mint2",
}

// systemInstructionNames maps the System program u32 LE discriminator.
var systemInstructionNames = map[uint32]string{
	0:  "create_account",
	1:  "assign",
	2:  "transfer",
	3:  "create_account_with_seed",
	4:  "advance_nonce_account",
	5:  "withdraw_nonce_account",
	6:  "initialize_nonce_account",
	8:  "allocate",
	9:  "allocate_with_seed",
	10: "assign_with_seed",
	11: "transfer_with_seed",
}

// voteInstructionNames maps the Vote program u32 LE discriminator.
var voteInstructionNames = map[uint32]string{
	0:  "initialize_account",
	1:  "authorize",
	2:  "vote",
	3:  "withdraw",
	8:  "update_vote_state",
	12: "compact_update_vote_state",
}

// stakeInstructionNames maps the Stake program u32 LE discriminator.
var stakeInstructionNames = map[uint32]string{
	0: "initialize",
	1: "authorize",
	2: "delegate_stake",
	3: "split",
	4: "withdraw",
	5: "deactivate",
	7: "merge",
}

// computeBudgetInstructionNames maps the Compute Budget single-byte
// discriminator.
var computeBudgetInstructionNames = map[byte]string{
	1: "request_heap_frame",
	2: "set_compute_unit_limit",
	3: "set_compute_unit_price",
}

// metadataInstructionNames covers the Token Metadata discriminators that
// matter for NFT extraction; everything else falls back to a generic name.
var metadataInstructionNames = map[byte]string{
	0:  "create_metadata_account",
	1:  "update_metadata_account",
	17: "create_master_edition_v3",
	18: "verify_collection",
	33: "create_metadata_account_v3",
}

// governanceInstructionNames covers the SPL Governance discriminators that
// matter for extraction.
var governanceInstructionNames = map[byte]string{
	0:  "create_realm",
	1:  "deposit_governing_tokens",
	2:  "withdraw_governing_tokens",
	4:  "create_governance",
	6:  "create_proposal",
	13: "cast_vote",
	14: "finalize_vote",
	15: "relinquish_vote",
}

// instructionData decodes the base58 data blob, or nil when absent/mangled.
func instructionData(ins Instruction) []byte {
	if ins.Data == "" {
		return nil
	}
	data, err := base58.Decode(ins.Data)
	if err != nil {
		return nil
	}
	return data
}

func byteDiscriminator(ins Instruction, names map[byte]string) (string, bool) {
	data := instructionData(ins)
	if len(data) == 0 {
		return "", false
	}
	name, ok := names[data[0]]
	return name, ok
}

func u32Discriminator(ins Instruction, names map[uint32]string) (string, bool) {
	data := instructionData(ins)
	if len(data) < 4 {
		return "", false
	}
	name, ok := names[binary.LittleEndian.Uint32(data[:4])]
	return name, ok
}

// parsedOpName converts a jsonParsed instruction type (camelCase) to the
// snake_case operation vocabulary.
func parsedOpName(parsedType string) string {
	if parsedType == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range parsedType {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
