package extract

import (
	"github.com/shopspring/decimal"
)

// baseHandler supplies the shared accumulation machinery: operation list,
// per-type counts, touched accounts/mints, cumulative volume and a capped
// error list.
type baseHandler struct {
	name     string
	ops      []OperationRecord
	opCounts map[string]int64
	accounts map[string]struct{}
	mints    map[string]struct{}
	volume   decimal.Decimal
	errs     []string
}

func newBaseHandler(name string) baseHandler {
	return baseHandler{
		name:     name,
		opCounts: make(map[string]int64),
		accounts: make(map[string]struct{}),
		mints:    make(map[string]struct{}),
	}
}

func (b *baseHandler) Name() string { return b.name }

func (b *baseHandler) record(op OperationRecord) {
	b.ops = append(b.ops, op)
	b.opCounts[op.Type]++
	for _, acc := range op.Accounts {
		if acc != "" {
			b.accounts[acc] = struct{}{}
		}
	}
	if op.Owner != "" {
		b.accounts[op.Owner] = struct{}{}
	}
	if op.Mint != "" {
		b.mints[op.Mint] = struct{}{}
	}
}

func (b *baseHandler) addVolume(amount decimal.Decimal) {
	b.volume = b.volume.Add(amount.Abs())
}

func (b *baseHandler) addError(msg string) {
	if len(b.errs) < maxHandlerErrors {
		b.errs = append(b.errs, msg)
	}
}

func (b *baseHandler) Result() ExtractionResult {
	counts := make(map[string]int64, len(b.opCounts))
	for k, v := range b.opCounts {
		counts[k] = v
	}
	return ExtractionResult{
		Operations: b.ops,
		Statistics: map[string]any{
			"operation_counts": counts,
			"unique_accounts":  len(b.accounts),
			"unique_mints":     len(b.mints),
			"total_operations": int64(len(b.ops)),
			"volume":           b.volume.String(),
		},
		Errors: append([]string(nil), b.errs...),
	}
}

// opName resolves the operation name for a token-program instruction from
// either the parsed payload or the raw discriminator byte.
func tokenOpName(ins Instruction) string {
	if ins.Kind == KindParsed && ins.Parsed != nil {
		return parsedOpName(ins.Parsed.Type)
	}
	if name, ok := byteDiscriminator(ins, tokenInstructionNames); ok {
		return name
	}
	return ""
}

// infoString pulls a string field out of a parsed instruction's info map.
func infoString(ins Instruction, key string) string {
	if ins.Parsed == nil {
		return ""
	}
	return asString(ins.Parsed.Info[key])
}

// infoAmount extracts an amount from parsed info, handling both the flat
// "amount"/"lamports" form and the nested tokenAmount object.
func infoAmount(ins Instruction) decimal.Decimal {
	if ins.Parsed == nil {
		return decimal.Zero
	}
	for _, key := range []string{"amount", "lamports"} {
		if s := asString(ins.Parsed.Info[key]); s != "" {
			if d, err := decimal.NewFromString(s); err == nil {
				return d
			}
		}
		if f, ok := ins.Parsed.Info[key].(float64); ok {
			return decimal.NewFromFloat(f)
		}
	}
	if ta := asMap(ins.Parsed.Info["tokenAmount"]); ta != nil {
		if d, err := decimal.NewFromString(asString(ta["amount"])); err == nil {
			return d
		}
	}
	return decimal.Zero
}

// mintBalanceDeltas sums the pre/post token balances per mint and returns the
// signed difference for every mint whose aggregate changed. Only well-formed
// entries contribute; a mint with a zero net delta is omitted.
func mintBalanceDeltas(tx *Transaction) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, tb := range tx.PreTokenBalances {
		totals[tb.Mint] = totals[tb.Mint].Sub(tb.Amount)
	}
	for _, tb := range tx.PostTokenBalances {
		totals[tb.Mint] = totals[tb.Mint].Add(tb.Amount)
	}
	for mint, delta := range totals {
		if delta.IsZero() {
			delete(totals, mint)
		}
	}
	return totals
}

// ownerBalanceDeltas diffs pre/post token balances per (owner, mint) pair.
func ownerBalanceDeltas(tx *Transaction) map[[2]string]decimal.Decimal {
	totals := make(map[[2]string]decimal.Decimal)
	for _, tb := range tx.PreTokenBalances {
		if tb.Owner == "" {
			continue
		}
		key := [2]string{tb.Owner, tb.Mint}
		totals[key] = totals[key].Sub(tb.Amount)
	}
	for _, tb := range tx.PostTokenBalances {
		if tb.Owner == "" {
			continue
		}
		key := [2]string{tb.Owner, tb.Mint}
		totals[key] = totals[key].Add(tb.Amount)
	}
	for key, delta := range totals {
		if delta.IsZero() {
			delete(totals, key)
		}
	}
	return totals
}

func isTokenProgram(programID string) bool {
	return programID == TokenProgramID || programID == Token2022ProgramID
}
