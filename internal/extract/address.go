package extract

import "github.com/mr-tron/base58"

const (
	minMintAddressLen = 32
	maxMintAddressLen = 44
)

// deniedMintAddresses are known program/system addresses that must never be
// classified as a mint; a program invoking itself is not a new token.
var deniedMintAddresses = map[string]bool{
	TokenProgramID:           true,
	Token2022ProgramID:       true,
	AssociatedTokenProgramID: true,
	MetadataProgramID:        true,
	SystemProgramID:          true,
	ComputeBudgetProgramID:   true,
	VoteProgramID:            true,
	StakeProgramID:           true,
	MemoProgramID:            true,
	GovernanceProgramID:      true,
	CandyMachineProgramID:    true,
	// Sysvars show up in account lists constantly.
	"SysvarRent111111111111111111111111111111111": true,
	"SysvarC1ock11111111111111111111111111111111": true,
}

// IsValidMintAddress reports whether addr is plausible as a mint: correct
// base58 length, valid base58 alphabet, and not a known program address.
func IsValidMintAddress(addr string) bool {
	if len(addr) < minMintAddressLen || len(addr) > maxMintAddressLen {
		return false
	}
	if deniedMintAddresses[addr] {
		return false
	}
	decoded, err := base58.Decode(addr)
	if err != nil {
		return false
	}
	return len(decoded) == 32
}
