package stream

import (
	"encoding/json"
	"strings"
)

// piEvent is the top-level structure of pi's --mode json NDJSON output.
// Only the events the orchestrator acts on are modeled; everything else
// (session, agent_start, turn_start, message_start, message_end,
// tool_execution_update, ...) maps to KindUnrecognized.
type piEvent struct {
	Type string `json:"type"`

	// message_update
	AssistantMessageEvent *piAssistantEvent `json:"assistantMessageEvent,omitempty"`

	// tool_execution_start / tool_execution_end
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
	Result     *piToolResult   `json:"result,omitempty"`
	IsError    bool            `json:"isError,omitempty"`

	// turn_end
	Message *piTurnMessage `json:"message,omitempty"`
}

type piAssistantEvent struct {
	Type   string `json:"type"`
	Delta  string `json:"delta,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type piToolResult struct {
	Content []piContentBlock `json:"content"`
}

type piContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type piTurnMessage struct {
	StopReason string   `json:"stopReason,omitempty"`
	Usage      *piUsage `json:"usage,omitempty"`
}

type piUsage struct {
	Input  int     `json:"input"`
	Output int     `json:"output"`
	Cost   *piCost `json:"cost,omitempty"`
}

type piCost struct {
	Total float64 `json:"total"`
}

type piParser struct{}

func (piParser) Name() string { return string(BackendPi) }

// ParseLine maps one pi NDJSON line to a canonical event. Pi's deltas are
// already line-granular, so the mapping is one-to-one.
func (piParser) ParseLine(line string, _ bool) (Event, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Event{}, false
	}

	var ev piEvent
	if err := json.Unmarshal([]byte(trimmed), &ev); err != nil {
		return Event{}, false
	}

	switch ev.Type {
	case "message_update":
		ame := ev.AssistantMessageEvent
		if ame == nil {
			return Event{Kind: KindUnrecognized}, true
		}
		switch ame.Type {
		case "text_delta":
			return Event{Kind: KindTextDelta, Text: ame.Delta}, true
		case "thinking_delta":
			return Event{Kind: KindThinkingDelta, Text: ame.Delta}, true
		case "error":
			return Event{Kind: KindSessionError, Message: ame.Reason}, true
		default:
			// text_start, text_end, thinking_start, toolcall_delta, done, ...
			return Event{Kind: KindUnrecognized}, true
		}

	case "tool_execution_start":
		return Event{
			Kind:     KindToolCallStart,
			ToolID:   ev.ToolCallID,
			ToolName: ev.ToolName,
			ToolArgs: ev.Args,
		}, true

	case "tool_execution_end":
		return Event{
			Kind:       KindToolCallEnd,
			ToolID:     ev.ToolCallID,
			ToolName:   ev.ToolName,
			ToolResult: joinPiContent(ev.Result),
			IsError:    ev.IsError,
		}, true

	case "turn_end":
		var usage Usage
		if ev.Message != nil && ev.Message.Usage != nil {
			usage.InputTokens = ev.Message.Usage.Input
			usage.OutputTokens = ev.Message.Usage.Output
			if ev.Message.Usage.Cost != nil {
				usage.CostUSD = ev.Message.Usage.Cost.Total
			}
		}
		return Event{Kind: KindTurnEnd, Usage: usage}, true

	default:
		return Event{Kind: KindUnrecognized}, true
	}
}

func joinPiContent(res *piToolResult) string {
	if res == nil {
		return ""
	}
	parts := make([]string, 0, len(res.Content))
	for _, block := range res.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}
