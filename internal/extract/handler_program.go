package extract

// ProgramHandler records every program invocation with its semantic
// category, giving a coarse activity profile of the block.
type ProgramHandler struct {
	baseHandler
	programCounts map[string]int64
}

func NewProgramHandler() *ProgramHandler {
	return &ProgramHandler{
		baseHandler:   newBaseHandler("program"),
		programCounts: make(map[string]int64),
	}
}

func (h *ProgramHandler) Process(tx *Transaction) error {
	for _, ins := range tx.Instructions {
		category := CategoryOf(ins.ProgramID)
		h.programCounts[ins.ProgramID]++
		h.record(OperationRecord{
			Index:     tx.Index,
			Type:      "invoke_" + category,
			ProgramID: ins.ProgramID,
			Accounts:  ins.Accounts,
			Signature: tx.Signature,
		})
	}
	return nil
}

func (h *ProgramHandler) Result() ExtractionResult {
	result := h.baseHandler.Result()

	counts := make(map[string]int64, len(h.programCounts))
	for k, v := range h.programCounts {
		counts[k] = v
	}
	result.Statistics["invocations_by_program"] = counts
	result.Statistics["unique_programs"] = len(counts)
	return result
}
