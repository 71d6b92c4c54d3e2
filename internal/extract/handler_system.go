package extract

import "github.com/shopspring/decimal"

// SystemHandler covers the System, Compute Budget and Vote programs:
// lamport transfers, account creation and the fee-market instructions.
type SystemHandler struct {
	baseHandler
	lamportsMoved decimal.Decimal
}

func NewSystemHandler() *SystemHandler {
	return &SystemHandler{baseHandler: newBaseHandler("system")}
}

func (h *SystemHandler) Process(tx *Transaction) error {
	if tx.Failed {
		return nil
	}

	for _, ins := range tx.Instructions {
		var op string
		switch ins.ProgramID {
		case SystemProgramID:
			op = h.systemOpName(ins)
		case ComputeBudgetProgramID:
			op = computeBudgetOpName(ins)
		case VoteProgramID:
			op = voteOpName(ins)
		default:
			continue
		}
		if op == "" {
			op = "unknown_instruction"
		}

		record := OperationRecord{
			Index:     tx.Index,
			Type:      op,
			Accounts:  ins.Accounts,
			ProgramID: ins.ProgramID,
			Signature: tx.Signature,
			Raw:       ins.Raw,
		}
		if ins.ProgramID == SystemProgramID {
			if amount := infoAmount(ins); !amount.IsZero() {
				record.Amount = amount
				h.addVolume(amount)
				h.lamportsMoved = h.lamportsMoved.Add(amount.Abs())
			}
		}
		h.record(record)
	}
	return nil
}

func (h *SystemHandler) Result() ExtractionResult {
	result := h.baseHandler.Result()
	result.Statistics["lamports_moved"] = h.lamportsMoved.String()
	return result
}

func (h *SystemHandler) systemOpName(ins Instruction) string {
	if ins.Kind == KindParsed && ins.Parsed != nil {
		return parsedOpName(ins.Parsed.Type)
	}
	if name, ok := u32Discriminator(ins, systemInstructionNames); ok {
		return name
	}
	return ""
}

func computeBudgetOpName(ins Instruction) string {
	if ins.Kind == KindParsed && ins.Parsed != nil {
		return parsedOpName(ins.Parsed.Type)
	}
	if name, ok := byteDiscriminator(ins, computeBudgetInstructionNames); ok {
		return name
	}
	return ""
}

func voteOpName(ins Instruction) string {
	if ins.Kind == KindParsed && ins.Parsed != nil {
		return parsedOpName(ins.Parsed.Type)
	}
	if name, ok := u32Discriminator(ins, voteInstructionNames); ok {
		return name
	}
	return "vote_instruction"
}
