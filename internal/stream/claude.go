package stream

import (
	"encoding/json"
	"strings"
)

// claudeEvent is the top-level structure of Claude's
// --output-format stream-json NDJSON output.
type claudeEvent struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`

	// assistant / user events carry a full message payload.
	Message *claudeMessage `json:"message,omitempty"`

	// result event fields.
	TotalCostUSD float64 `json:"total_cost_usd,omitempty"`
	IsError      bool    `json:"is_error,omitempty"`
	NumTurns     int     `json:"num_turns,omitempty"`
	ResultText   string  `json:"result,omitempty"`
	Usage        *claudeUsage `json:"usage,omitempty"`
}

type claudeMessage struct {
	Role    string               `json:"role,omitempty"`
	Content []claudeContentBlock `json:"content,omitempty"`
	Usage   *claudeUsage         `json:"usage,omitempty"`
}

type claudeContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

type claudeParser struct{}

func (claudeParser) Name() string { return string(BackendClaude) }

// ParseLine maps one Claude stream-json line to a canonical event.
//
// Claude's events are message-granular rather than delta-granular, and an
// assistant message may in principle carry several content blocks. The
// canonical contract is zero-or-one event per line, so the mapping picks
// the actionable block: a tool_use block wins over text, and text blocks
// are concatenated into a single delta. In practice the CLI emits one
// block per assistant event in stream mode.
func (claudeParser) ParseLine(line string, verbose bool) (Event, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Event{}, false
	}

	var ev claudeEvent
	if err := json.Unmarshal([]byte(trimmed), &ev); err != nil {
		return Event{}, false
	}

	switch ev.Type {
	case "assistant":
		if ev.Message == nil {
			return Event{Kind: KindUnrecognized}, true
		}
		var text strings.Builder
		var thinking strings.Builder
		for _, block := range ev.Message.Content {
			switch block.Type {
			case "tool_use":
				return Event{
					Kind:     KindToolCallStart,
					ToolID:   block.ID,
					ToolName: block.Name,
					ToolArgs: block.Input,
				}, true
			case "text":
				text.WriteString(block.Text)
			case "thinking":
				thinking.WriteString(block.Thinking)
			}
		}
		if text.Len() > 0 {
			return Event{Kind: KindTextDelta, Text: text.String()}, true
		}
		if thinking.Len() > 0 {
			return Event{Kind: KindThinkingDelta, Text: thinking.String()}, true
		}
		return Event{Kind: KindUnrecognized}, true

	case "user":
		// Tool results come back on the user turn.
		if ev.Message == nil {
			return Event{Kind: KindUnrecognized}, true
		}
		for _, block := range ev.Message.Content {
			if block.Type == "tool_result" {
				return Event{
					Kind:       KindToolCallEnd,
					ToolID:     block.ToolUseID,
					ToolResult: claudeToolContent(block.Content),
					IsError:    block.IsError,
				}, true
			}
		}
		return Event{Kind: KindUnrecognized}, true

	case "result":
		if ev.IsError {
			msg := ev.ResultText
			if msg == "" {
				msg = "session ended with error"
			}
			return Event{Kind: KindSessionError, Message: msg}, true
		}
		usage := Usage{CostUSD: ev.TotalCostUSD}
		if ev.Usage != nil {
			usage.InputTokens = ev.Usage.InputTokens
			usage.OutputTokens = ev.Usage.OutputTokens
		}
		return Event{Kind: KindTurnEnd, Usage: usage}, true

	default:
		// system/init, content_block_*, hook events, ...
		return Event{Kind: KindUnrecognized}, true
	}
}

// claudeToolContent flattens a tool_result content field, which may be a
// plain string or an array of typed blocks.
func claudeToolContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var blocks []claudeContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == "text" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}
