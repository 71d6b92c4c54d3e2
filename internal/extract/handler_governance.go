package extract

// GovernanceHandler extracts SPL governance activity: proposals, votes and
// realm management.
type GovernanceHandler struct {
	baseHandler
	proposals map[string]struct{}
}

func NewGovernanceHandler() *GovernanceHandler {
	return &GovernanceHandler{
		baseHandler: newBaseHandler("governance"),
		proposals:   make(map[string]struct{}),
	}
}

func (h *GovernanceHandler) Process(tx *Transaction) error {
	if tx.Failed {
		return nil
	}

	for _, ins := range tx.Instructions {
		if ins.ProgramID != GovernanceProgramID {
			continue
		}

		var op string
		if ins.Kind == KindParsed && ins.Parsed != nil {
			op = parsedOpName(ins.Parsed.Type)
		} else if name, ok := byteDiscriminator(ins, governanceInstructionNames); ok {
			op = name
		} else {
			op = "governance_instruction"
		}

		switch op {
		case "create_proposal", "cast_vote", "finalize_vote", "cancel_proposal":
			// Governance layouts put the realm first and the proposal
			// account second.
			if len(ins.Accounts) > 1 {
				h.proposals[ins.Accounts[1]] = struct{}{}
			}
		}

		h.record(OperationRecord{
			Index:     tx.Index,
			Type:      op,
			Accounts:  ins.Accounts,
			ProgramID: ins.ProgramID,
			Signature: tx.Signature,
			Raw:       ins.Raw,
		})
	}
	return nil
}

func (h *GovernanceHandler) Result() ExtractionResult {
	res := h.baseHandler.Result()
	res.Statistics["unique_proposals"] = len(h.proposals)
	return res
}
