package extract

// ValidatorHandler extracts vote and stake program activity: vote
// submissions, delegations and withdrawals.
type ValidatorHandler struct {
	baseHandler
	voteAccounts map[string]struct{}
}

func NewValidatorHandler() *ValidatorHandler {
	return &ValidatorHandler{
		baseHandler:  newBaseHandler("validator"),
		voteAccounts: make(map[string]struct{}),
	}
}

func (h *ValidatorHandler) Process(tx *Transaction) error {
	for _, ins := range tx.Instructions {
		var op string
		switch ins.ProgramID {
		case VoteProgramID:
			op = voteOpName(ins)
			if len(ins.Accounts) > 0 {
				h.voteAccounts[ins.Accounts[0]] = struct{}{}
			}
		case StakeProgramID:
			op = stakeOpName(ins)
		default:
			continue
		}

		rec := OperationRecord{
			Index:     tx.Index,
			Type:      op,
			Accounts:  ins.Accounts,
			ProgramID: ins.ProgramID,
			Signature: tx.Signature,
			Raw:       ins.Raw,
		}
		if amt := infoAmount(ins); !amt.IsZero() {
			rec.Amount = amt
			h.addVolume(amt)
		}
		h.record(rec)
	}
	return nil
}

func stakeOpName(ins Instruction) string {
	if ins.Kind == KindParsed && ins.Parsed != nil {
		return parsedOpName(ins.Parsed.Type)
	}
	if name, ok := u32Discriminator(ins, stakeInstructionNames); ok {
		return name
	}
	return "stake_instruction"
}

func (h *ValidatorHandler) Result() ExtractionResult {
	res := h.baseHandler.Result()
	res.Statistics["unique_vote_accounts"] = len(h.voteAccounts)
	return res
}
