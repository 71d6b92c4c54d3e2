package extract

// NFTHandler extracts metadata-program and candy-machine activity: metadata
// account creation, master editions and collection verification.
type NFTHandler struct {
	baseHandler
}

func NewNFTHandler() *NFTHandler {
	return &NFTHandler{baseHandler: newBaseHandler("nft")}
}

func (h *NFTHandler) Process(tx *Transaction) error {
	if tx.Failed {
		return nil
	}

	for _, ins := range tx.Instructions {
		var op string
		switch ins.ProgramID {
		case MetadataProgramID:
			if ins.Kind == KindParsed && ins.Parsed != nil {
				op = parsedOpName(ins.Parsed.Type)
			} else if name, ok := byteDiscriminator(ins, metadataInstructionNames); ok {
				op = name
			} else {
				op = "metadata_instruction"
			}
		case CandyMachineProgramID:
			op = "candy_machine_instruction"
		default:
			continue
		}

		// Metadata layouts put the metadata account first and the mint
		// second.
		mint := infoString(ins, "mint")
		if mint == "" && len(ins.Accounts) > 1 {
			mint = ins.Accounts[1]
		}
		if !IsValidMintAddress(mint) {
			mint = ""
		}

		h.record(OperationRecord{
			Index:     tx.Index,
			Type:      op,
			Accounts:  ins.Accounts,
			ProgramID: ins.ProgramID,
			Mint:      mint,
			Signature: tx.Signature,
			Raw:       ins.Raw,
		})
	}
	return nil
}
