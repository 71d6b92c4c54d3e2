package extract

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// NormalizeTransaction recovers the canonical Transaction shape from an
// untrusted wire payload. Node versions disagree on layout: a transaction may
// arrive as a (transaction, meta) pair, as an embedded object, with a
// string-encoded message, or with fields missing outright. Recovery is
// best-effort; when a piece cannot be recovered its slot in the result is
// simply empty. This function never returns an error and never panics.
func NormalizeTransaction(raw json.RawMessage) *Transaction {
	tx := &Transaction{Raw: raw}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return tx
	}

	txObj, meta := splitEnvelope(decoded)
	if txObj == nil {
		return tx
	}

	if sigs := asSlice(txObj["signatures"]); len(sigs) > 0 {
		tx.Signature, _ = sigs[0].(string)
	}

	message := asMap(txObj["message"])
	// A string-encoded message (base64/base58 binary) cannot be walked;
	// normalize to empty structures instead of failing.
	if message != nil {
		tx.AccountKeys = normalizeAccountKeys(message["accountKeys"])
		for _, rawIns := range asSlice(message["instructions"]) {
			tx.Instructions = append(tx.Instructions,
				normalizeInstruction(rawIns, tx.AccountKeys, false))
		}
	}

	if meta != nil {
		tx.Failed = meta["err"] != nil
		if status := asMap(meta["status"]); status != nil {
			if _, hasErr := status["Err"]; hasErr {
				tx.Failed = true
			}
		}

		for _, rawInner := range asSlice(meta["innerInstructions"]) {
			inner := asMap(rawInner)
			if inner == nil {
				continue
			}
			for _, rawIns := range asSlice(inner["instructions"]) {
				tx.Instructions = append(tx.Instructions,
					normalizeInstruction(rawIns, tx.AccountKeys, true))
			}
		}

		tx.PreTokenBalances = normalizeTokenBalances(meta["preTokenBalances"])
		tx.PostTokenBalances = normalizeTokenBalances(meta["postTokenBalances"])
	}

	return tx
}

// splitEnvelope handles the two observed envelopes: a two-element
// [transaction, meta] array and an object with embedded transaction/meta
// fields. An object without an embedded transaction is treated as the
// transaction itself.
func splitEnvelope(decoded any) (txObj, meta map[string]any) {
	switch v := decoded.(type) {
	case []any:
		if len(v) == 0 {
			return nil, nil
		}
		txObj = asMap(v[0])
		if len(v) > 1 {
			meta = asMap(v[1])
		}
		return txObj, meta

	case map[string]any:
		meta = asMap(v["meta"])
		if embedded := asMap(v["transaction"]); embedded != nil {
			return embedded, meta
		}
		return v, meta

	default:
		return nil, nil
	}
}

func normalizeAccountKeys(raw any) []string {
	items := asSlice(raw)
	keys := make([]string, 0, len(items))
	for _, item := range items {
		switch k := item.(type) {
		case string:
			keys = append(keys, k)
		case map[string]any:
			if pk, ok := k["pubkey"].(string); ok {
				keys = append(keys, pk)
			}
		}
	}
	return keys
}

// normalizeInstruction maps any wire instruction shape into the tagged
// variant. Program-id resolution order: explicit programId field, programId
// index into the account keys, last account in the instruction's list, then
// the explicit "unknown" marker.
func normalizeInstruction(raw any, accountKeys []string, inner bool) Instruction {
	ins := Instruction{Kind: KindUnknown, ProgramID: UnknownProgramID, Inner: inner}
	if b, err := json.Marshal(raw); err == nil {
		ins.Raw = b
	}

	m := asMap(raw)
	if m == nil {
		return ins
	}

	ins.Accounts = normalizeInstructionAccounts(m["accounts"], accountKeys)
	if data, ok := m["data"].(string); ok {
		ins.Data = data
	}

	if parsed := normalizeParsed(m["parsed"]); parsed != nil {
		ins.Kind = KindParsed
		ins.Parsed = parsed
	} else if ins.Data != "" {
		ins.Kind = KindRaw
	}

	if pid := asString(m["programId"]); pid != "" {
		ins.ProgramID = pid
		return ins
	}
	if hasIndex(m, "programIdIndex") {
		if idx := asInt(m["programIdIndex"]); idx >= 0 && idx < len(accountKeys) {
			ins.ProgramID = accountKeys[idx]
			return ins
		}
	}
	if len(ins.Accounts) > 0 {
		// Common encoding shortcut: the program id rides as the last account.
		ins.ProgramID = ins.Accounts[len(ins.Accounts)-1]
	}
	return ins
}

func normalizeInstructionAccounts(raw any, accountKeys []string) []string {
	items := asSlice(raw)
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch a := item.(type) {
		case string:
			out = append(out, a)
		case float64:
			idx := int(a)
			// Out-of-range indices are dropped, not faulted.
			if idx >= 0 && idx < len(accountKeys) {
				out = append(out, accountKeys[idx])
			}
		case json.Number:
			if idx, err := a.Int64(); err == nil && idx >= 0 && int(idx) < len(accountKeys) {
				out = append(out, accountKeys[idx])
			}
		}
	}
	return out
}

func normalizeParsed(raw any) *ParsedInstruction {
	switch v := raw.(type) {
	case map[string]any:
		p := &ParsedInstruction{Info: asMap(v["info"])}
		p.Type = asString(v["type"])
		if p.Info == nil {
			p.Info = map[string]any{}
		}
		return p
	case string:
		// Some nodes flatten parsed to a bare type string.
		if v == "" {
			return nil
		}
		return &ParsedInstruction{Type: v, Info: map[string]any{}}
	default:
		return nil
	}
}

func normalizeTokenBalances(raw any) []TokenBalance {
	items := asSlice(raw)
	out := make([]TokenBalance, 0, len(items))
	for _, item := range items {
		m := asMap(item)
		if m == nil {
			continue
		}
		tb := TokenBalance{
			AccountIndex: asInt(m["accountIndex"]),
			Mint:         asString(m["mint"]),
			Owner:        asString(m["owner"]),
		}
		if tb.Mint == "" {
			continue
		}
		amount := asMap(m["uiTokenAmount"])
		if amount == nil {
			continue
		}
		amt, err := decimal.NewFromString(asString(amount["amount"]))
		if err != nil {
			// Malformed amounts are skipped, not faulted.
			continue
		}
		tb.Amount = amt
		tb.Decimals = int32(asInt(amount["decimals"]))
		out = append(out, tb)
	}
	return out
}

// --- permissive accessors ---

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0
		}
		return int(i)
	default:
		return 0
	}
}

func hasIndex(m map[string]any, key string) bool {
	switch m[key].(type) {
	case float64, int, json.Number:
		return true
	default:
		return false
	}
}
