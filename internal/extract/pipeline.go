package extract

import (
	"fmt"

	"github.com/helioslabs/solgate/pkg/common/logger"
)

// Handler is a stateless reducer over a stream of transactions, accumulating
// operations and statistics. One handler instance covers one accumulation
// scope (one block, typically); instances are not shared across concurrent
// blocks.
type Handler interface {
	Name() string
	Process(tx *Transaction) error
	Result() ExtractionResult
}

// Pipeline fans each transaction of a block out to every registered handler.
type Pipeline struct {
	handlers []Handler
}

func NewPipeline(handlers ...Handler) *Pipeline {
	return &Pipeline{handlers: handlers}
}

// DefaultPipeline registers the full handler family with fresh accumulators.
func DefaultPipeline() *Pipeline {
	return NewPipeline(
		NewMintHandler(),
		NewTokenHandler(),
		NewProgramHandler(),
		NewSystemHandler(),
		NewNFTHandler(),
		NewGovernanceHandler(),
		NewValidatorHandler(),
	)
}

// ProcessBlock walks every transaction through every handler. A handler
// failing on one transaction is recorded in that handler's error list and
// processing continues: one bad transaction never aborts the block.
func (p *Pipeline) ProcessBlock(block *Block) map[string]ExtractionResult {
	overflow := make(map[string]int, len(p.handlers))
	extraErrs := make(map[string][]string, len(p.handlers))

	for txIdx, raw := range block.Transactions {
		tx := NormalizeTransaction(raw)
		tx.Index = txIdx

		for _, h := range p.handlers {
			err := runHandler(h, tx)
			if err == nil {
				continue
			}
			name := h.Name()
			if len(extraErrs[name]) < maxHandlerErrors {
				extraErrs[name] = append(extraErrs[name], fmt.Sprintf("tx %d: %v", txIdx, err))
			} else {
				overflow[name]++
			}
		}
	}

	out := make(map[string]ExtractionResult, len(p.handlers))
	for _, h := range p.handlers {
		name := h.Name()
		result := h.Result()
		result.Errors = append(result.Errors, extraErrs[name]...)
		if len(result.Errors) > maxHandlerErrors {
			result.Errors = result.Errors[:maxHandlerErrors]
		}
		if n := overflow[name]; n > 0 {
			logger.Debug("handler error list capped", "handler", name, "dropped", n, "slot", block.Slot)
		}
		out[name] = result
	}
	return out
}

// ProcessBlockWith runs a single handler over a block with the same
// per-transaction isolation as the full pipeline.
func ProcessBlockWith(h Handler, block *Block) ExtractionResult {
	return NewPipeline(h).ProcessBlock(block)[h.Name()]
}

// runHandler isolates one handler invocation: a panic inside a handler is
// converted to that handler's error, never a crashed block.
func runHandler(h Handler, tx *Transaction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Process(tx)
}
