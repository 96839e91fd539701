package stream

import (
	"encoding/json"
	"strings"
	"time"
)

// Handler is the observer capability set invoked synchronously from the
// line-processing loop. Implementations render output, forward events, or
// record them; the runner owns the read loop and calls the handler
// directly, which keeps replay substitutable for live execution.
type Handler interface {
	OnText(text string)
	OnToolCall(id, name string, args json.RawMessage)
	OnToolResult(id, result string)
	OnError(message string)
	OnComplete(res Result)
}

// Result is the synthesized terminal callback payload for one invocation.
type Result struct {
	Duration      time.Duration
	TotalCostUSD  float64
	TotalTokens   int
	TurnCount     int
	ExtractedText string
}

// SessionState accumulates cost, turn count, and extracted assistant text
// across one invocation's event sequence. It is owned by exactly one
// dispatch pass and never shared; two passes over the same events from
// fresh state produce identical results.
type SessionState struct {
	TotalCostUSD float64
	TotalTokens  int
	TurnCount    int

	extracted strings.Builder
}

// ExtractedText returns the assistant text accumulated so far. Thinking
// deltas are never part of it.
func (s *SessionState) ExtractedText() string {
	return s.extracted.String()
}

// Finalize builds the terminal Result for this session.
func (s *SessionState) Finalize(elapsed time.Duration) Result {
	return Result{
		Duration:      elapsed,
		TotalCostUSD:  s.TotalCostUSD,
		TotalTokens:   s.TotalTokens,
		TurnCount:     s.TurnCount,
		ExtractedText: s.extracted.String(),
	}
}

// Dispatch routes one canonical event to the handler and updates state.
//
// The mapping is exhaustive over Kind:
//
//	TextDelta      -> OnText, append to extracted text
//	ThinkingDelta  -> OnText only when verbose
//	ToolCallStart  -> OnToolCall
//	ToolCallEnd    -> OnToolResult, or OnError when is_error
//	TurnEnd        -> accumulate cost, tokens, and turn count, no callback
//	SessionError   -> OnError
//	Unrecognized   -> nothing
func Dispatch(ev Event, h Handler, st *SessionState, verbose bool) {
	switch ev.Kind {
	case KindTextDelta:
		h.OnText(ev.Text)
		st.extracted.WriteString(ev.Text)

	case KindThinkingDelta:
		if verbose {
			h.OnText(ev.Text)
		}

	case KindToolCallStart:
		h.OnToolCall(ev.ToolID, ev.ToolName, ev.ToolArgs)

	case KindToolCallEnd:
		if ev.IsError {
			h.OnError(ev.ToolResult)
		} else {
			h.OnToolResult(ev.ToolID, ev.ToolResult)
		}

	case KindTurnEnd:
		st.TotalCostUSD += ev.Usage.CostUSD
		st.TotalTokens += ev.Usage.TotalTokens()
		st.TurnCount++

	case KindSessionError:
		h.OnError(ev.Message)

	case KindUnrecognized:
		// Forward-compatibility: unknown events are dropped on purpose.
	}
}
