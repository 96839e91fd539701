// Package recording persists orchestration sessions as append-only JSONL
// logs (cassettes) and replays them through the live parsing pipeline.
package recording

import (
	"encoding/json"
	"time"
)

// Topics written by the engine. External consumers tailing the log key
// off these values, so they are part of the on-disk contract.
const (
	TopicTerminalWrite  = "terminal.write"
	TopicLoopStart      = "loop.start"
	TopicIterationStart = "iteration.start"
	TopicIterationEnd   = "iteration.end"
	TopicLoopTerminate  = "loop.terminate"
	TopicMeta           = "meta"
)

// MetaPTY marks a cassette whose terminal bytes came from a
// pseudo-terminal and still carry escape sequences.
const MetaPTY = "pty"

// Record is the atomic unit of both live telemetry and stored cassettes.
// Ordering by TS is significant; records with equal TS keep append order.
type Record struct {
	TS    int64           `json:"ts"` // unix milliseconds
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TerminalWrite is the payload of a TopicTerminalWrite record. Bytes are
// base64-encoded on the wire by encoding/json.
type TerminalWrite struct {
	Bytes    []byte `json:"bytes"`
	Stdout   bool   `json:"stdout"`
	OffsetMS int64  `json:"offset_ms"`
}

// IterationMark is the payload of iteration boundary records.
type IterationMark struct {
	Number  int     `json:"number"`
	Hat     string  `json:"hat,omitempty"`
	Outcome string  `json:"outcome,omitempty"`
	CostUSD float64 `json:"cost_usd,omitempty"`
	Tokens  int     `json:"tokens,omitempty"`
}

// Termination is the payload of a TopicLoopTerminate record.
type Termination struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func newRecord(event string, data any) (Record, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return Record{}, err
		}
		raw = b
	}
	return Record{
		TS:    time.Now().UnixMilli(),
		Event: event,
		Data:  raw,
	}, nil
}
