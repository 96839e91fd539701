package stream

import (
	"encoding/json"
	"strings"
)

// codexEvent is the top-level structure of Codex's --json JSONL output.
type codexEvent struct {
	Type  string      `json:"type"`
	Usage *codexUsage `json:"usage,omitempty"`
	Error *codexError `json:"error,omitempty"`
	Item  *codexItem  `json:"item,omitempty"`
}

type codexUsage struct {
	InputTokens       int `json:"input_tokens"`
	CachedInputTokens int `json:"cached_input_tokens"`
	OutputTokens      int `json:"output_tokens"`
}

type codexError struct {
	Message string `json:"message"`
}

type codexItem struct {
	ID               string          `json:"id,omitempty"`
	Type             string          `json:"type,omitempty"`
	Text             string          `json:"text,omitempty"`
	Command          string          `json:"command,omitempty"`
	AggregatedOutput string          `json:"aggregated_output,omitempty"`
	ExitCode         *int            `json:"exit_code,omitempty"`
	Status           string          `json:"status,omitempty"`
	Server           string          `json:"server,omitempty"`
	Tool             string          `json:"tool,omitempty"`
	Arguments        json.RawMessage `json:"arguments,omitempty"`
	Result           json.RawMessage `json:"result,omitempty"`
	Error            *codexError     `json:"error,omitempty"`
}

type codexParser struct{}

func (codexParser) Name() string { return string(BackendCodex) }

// ParseLine maps one Codex JSONL line to a canonical event. Codex reports
// no cost, so TurnEnd carries tokens only.
func (codexParser) ParseLine(line string, _ bool) (Event, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Event{}, false
	}

	var ev codexEvent
	if err := json.Unmarshal([]byte(trimmed), &ev); err != nil {
		return Event{}, false
	}

	switch ev.Type {
	case "turn.completed":
		var usage Usage
		if ev.Usage != nil {
			usage.InputTokens = ev.Usage.InputTokens
			usage.OutputTokens = ev.Usage.OutputTokens
		}
		return Event{Kind: KindTurnEnd, Usage: usage}, true

	case "turn.failed", "error":
		msg := "unknown error"
		if ev.Error != nil && ev.Error.Message != "" {
			msg = ev.Error.Message
		}
		return Event{Kind: KindSessionError, Message: msg}, true

	case "item.started":
		return codexItemStarted(ev.Item)

	case "item.completed":
		return codexItemCompleted(ev.Item)

	default:
		// thread.started, item.updated, ...
		return Event{Kind: KindUnrecognized}, true
	}
}

func codexItemStarted(item *codexItem) (Event, bool) {
	if item == nil {
		return Event{Kind: KindUnrecognized}, true
	}
	switch item.Type {
	case "command_execution":
		args, _ := json.Marshal(map[string]string{"command": item.Command})
		return Event{
			Kind:     KindToolCallStart,
			ToolID:   item.ID,
			ToolName: "shell",
			ToolArgs: args,
		}, true
	case "mcp_tool_call":
		name := item.Tool
		if item.Server != "" {
			name = item.Server + "." + item.Tool
		}
		return Event{
			Kind:     KindToolCallStart,
			ToolID:   item.ID,
			ToolName: name,
			ToolArgs: item.Arguments,
		}, true
	default:
		return Event{Kind: KindUnrecognized}, true
	}
}

func codexItemCompleted(item *codexItem) (Event, bool) {
	if item == nil {
		return Event{Kind: KindUnrecognized}, true
	}
	switch item.Type {
	case "agent_message":
		if item.Text == "" {
			return Event{Kind: KindUnrecognized}, true
		}
		return Event{Kind: KindTextDelta, Text: item.Text}, true

	case "reasoning":
		if item.Text == "" {
			return Event{Kind: KindUnrecognized}, true
		}
		return Event{Kind: KindThinkingDelta, Text: item.Text}, true

	case "command_execution":
		isErr := item.ExitCode != nil && *item.ExitCode != 0
		return Event{
			Kind:       KindToolCallEnd,
			ToolID:     item.ID,
			ToolName:   "shell",
			ToolResult: item.AggregatedOutput,
			IsError:    isErr,
		}, true

	case "mcp_tool_call":
		result := string(item.Result)
		isErr := item.Status == "failed"
		if item.Error != nil && item.Error.Message != "" {
			result = item.Error.Message
			isErr = true
		}
		return Event{
			Kind:       KindToolCallEnd,
			ToolID:     item.ID,
			ToolName:   item.Tool,
			ToolResult: result,
			IsError:    isErr,
		}, true

	default:
		return Event{Kind: KindUnrecognized}, true
	}
}
