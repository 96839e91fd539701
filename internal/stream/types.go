// Package stream normalizes the heterogeneous NDJSON wire formats of agent
// CLIs into a single canonical event set, and dispatches those events to an
// observer Handler while accumulating per-session state.
package stream

import "encoding/json"

// Kind discriminates the canonical event variants. The set is closed:
// adding a backend means mapping its wire format onto these kinds, never
// extending the dispatcher.
type Kind int

const (
	// KindUnrecognized marks a well-formed line whose tag this layer does
	// not know. It dispatches to nothing; newer backend versions routinely
	// emit event types we have never heard of.
	KindUnrecognized Kind = iota
	KindTextDelta
	KindThinkingDelta
	KindToolCallStart
	KindToolCallEnd
	KindTurnEnd
	KindSessionError
)

// String returns the kind name used in logs and recordings.
func (k Kind) String() string {
	switch k {
	case KindTextDelta:
		return "text_delta"
	case KindThinkingDelta:
		return "thinking_delta"
	case KindToolCallStart:
		return "tool_call_start"
	case KindToolCallEnd:
		return "tool_call_end"
	case KindTurnEnd:
		return "turn_end"
	case KindSessionError:
		return "session_error"
	default:
		return "unrecognized"
	}
}

// Event is one canonical stream event produced from a single line of agent
// output. Only the fields relevant to its Kind are populated.
type Event struct {
	Kind Kind

	// Text carries the delta for KindTextDelta and KindThinkingDelta.
	Text string

	// Tool fields for KindToolCallStart / KindToolCallEnd.
	ToolID     string
	ToolName   string
	ToolArgs   json.RawMessage
	ToolResult string
	IsError    bool

	// Usage for KindTurnEnd.
	Usage Usage

	// Message for KindSessionError.
	Message string
}

// Usage holds per-turn token and cost accounting.
type Usage struct {
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// TotalTokens returns input plus output tokens.
func (u Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}
