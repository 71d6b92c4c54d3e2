package extract

// tokenOps are the movement/authority operations the token handler records.
var tokenOps = map[string]bool{
	"transfer":            true,
	"transfer_checked":    true,
	"approve":             true,
	"approve_checked":     true,
	"revoke":              true,
	"set_authority":       true,
	"initialize_account":  true,
	"initialize_account2": true,
	"initialize_account3": true,
	"close_account":       true,
	"freeze_account":      true,
	"thaw_account":        true,
}

// TokenHandler extracts token movements and per-owner balance changes.
type TokenHandler struct {
	baseHandler
}

func NewTokenHandler() *TokenHandler {
	return &TokenHandler{baseHandler: newBaseHandler("token")}
}

func (h *TokenHandler) Process(tx *Transaction) error {
	if tx.Failed {
		return nil
	}

	for _, ins := range tx.Instructions {
		if ins.ProgramID != AssociatedTokenProgramID && !isTokenProgram(ins.ProgramID) {
			continue
		}

		if ins.ProgramID == AssociatedTokenProgramID {
			h.record(OperationRecord{
				Index:     tx.Index,
				Type:      "create_associated_account",
				Accounts:  ins.Accounts,
				ProgramID: ins.ProgramID,
				Mint:      infoString(ins, "mint"),
				Signature: tx.Signature,
				Raw:       ins.Raw,
			})
			continue
		}

		op := tokenOpName(ins)
		if !tokenOps[op] {
			continue
		}

		record := OperationRecord{
			Index:     tx.Index,
			Type:      op,
			Accounts:  ins.Accounts,
			ProgramID: ins.ProgramID,
			Mint:      infoString(ins, "mint"),
			Owner:     infoString(ins, "authority"),
			Signature: tx.Signature,
			Raw:       ins.Raw,
		}
		if amount := infoAmount(ins); !amount.IsZero() {
			record.Amount = amount
			h.addVolume(amount)
		}
		h.record(record)
	}

	// Per-owner balance deltas from the pre/post diff. Signed, non-zero
	// deltas only.
	for key, delta := range ownerBalanceDeltas(tx) {
		owner, mint := key[0], key[1]
		h.record(OperationRecord{
			Index:     tx.Index,
			Type:      "balance_change",
			Owner:     owner,
			Mint:      mint,
			Amount:    delta,
			Signature: tx.Signature,
		})
	}
	return nil
}
