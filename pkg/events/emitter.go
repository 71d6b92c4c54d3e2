package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// GatewayEvent is the envelope for everything published on the event bus.
type GatewayEvent struct {
	Type      string `json:"type"`
	Network   string `json:"network"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// BlockSummary carries the per-handler extraction totals for one block.
type BlockSummary struct {
	Slot       uint64                    `json:"slot"`
	Blockhash  string                    `json:"blockhash"`
	BlockTime  int64                     `json:"block_time,omitempty"`
	Operations map[string]int64          `json:"operations"`
	Handlers   map[string]map[string]any `json:"handlers"`
}

type Emitter struct {
	conn          *nats.Conn
	subjectPrefix string
	network       string
}

func NewEmitter(natsURL, subjectPrefix, network string) (*Emitter, error) {
	conn, err := nats.Connect(natsURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Emitter{
		conn:          conn,
		subjectPrefix: subjectPrefix,
		network:       network,
	}, nil
}

func (e *Emitter) EmitBlockSummary(summary *BlockSummary) error {
	return e.emit(GatewayEvent{
		Type:      "block_summary",
		Network:   e.network,
		Data:      summary,
		Timestamp: time.Now().UTC().Unix(),
	})
}

func (e *Emitter) EmitError(slot uint64, err error) error {
	payload := map[string]any{"slot": slot}
	if err != nil {
		payload["message"] = err.Error()
	}
	return e.emit(GatewayEvent{
		Type:      "error",
		Network:   e.network,
		Data:      payload,
		Timestamp: time.Now().UTC().Unix(),
	})
}

func (e *Emitter) emit(event GatewayEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// All event types share one subject, consumers filter on type
	return e.conn.Publish(e.subjectPrefix, data)
}

func (e *Emitter) Close() {
	if e.conn != nil {
		e.conn.Close()
	}
}
