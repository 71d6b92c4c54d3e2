package extract

import "fmt"

// mintOps are the token-program operations the mint handler cares about:
// everything that creates a mint or moves its supply.
var mintOps = map[string]bool{
	"initialize_mint":  true,
	"initialize_mint2": true,
	"mint_to":          true,
	"mint_to_checked":  true,
	"burn":             true,
	"burn_checked":     true,
}

// MintHandler extracts new-mint creation and supply changes.
type MintHandler struct {
	baseHandler
}

func NewMintHandler() *MintHandler {
	return &MintHandler{baseHandler: newBaseHandler("mint")}
}

func (h *MintHandler) Process(tx *Transaction) error {
	if tx.Failed {
		return nil
	}

	for _, ins := range tx.Instructions {
		if !isTokenProgram(ins.ProgramID) {
			continue
		}
		op := tokenOpName(ins)
		if !mintOps[op] {
			continue
		}

		mint := infoString(ins, "mint")
		if mint == "" && len(ins.Accounts) > 0 {
			// Token instruction layouts put the mint first.
			mint = ins.Accounts[0]
		}
		if mint != "" && !IsValidMintAddress(mint) {
			h.addError(fmt.Sprintf("tx %d: %s with invalid mint address %q", tx.Index, op, mint))
			continue
		}

		record := OperationRecord{
			Index:     tx.Index,
			Type:      op,
			Accounts:  ins.Accounts,
			ProgramID: ins.ProgramID,
			Mint:      mint,
			Signature: tx.Signature,
			Raw:       ins.Raw,
		}
		if amount := infoAmount(ins); !amount.IsZero() {
			record.Amount = amount
			h.addVolume(amount)
		}
		h.record(record)
	}

	// Supply deltas per mint from the balance diff; only non-zero,
	// well-formed deltas become operations.
	for mint, delta := range mintBalanceDeltas(tx) {
		if !IsValidMintAddress(mint) {
			continue
		}
		h.record(OperationRecord{
			Index:     tx.Index,
			Type:      "supply_change",
			Mint:      mint,
			Amount:    delta,
			Signature: tx.Signature,
		})
	}
	return nil
}
