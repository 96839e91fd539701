package looprun

import (
	"fmt"
	"strings"

	"github.com/agusx1211/hatloop/internal/hat"
)

// BuildPrompt assembles the full prompt for one hat invocation: the hat's
// instructions, the triggering event, any queued operator guidance, and a
// footer telling the agent how to publish follow-up events.
func BuildPrompt(h *hat.Config, ev hat.Event, guidance []string) string {
	var b strings.Builder

	b.WriteString(strings.TrimSpace(h.Instructions))
	b.WriteString("\n\n## Triggering event\n\n")
	fmt.Fprintf(&b, "Topic: %s\n", ev.Topic)
	if ev.Payload != "" {
		b.WriteString("\n")
		b.WriteString(ev.Payload)
		b.WriteString("\n")
	}

	if len(guidance) > 0 {
		b.WriteString("\n## Operator guidance\n\n")
		for _, g := range guidance {
			b.WriteString("- ")
			b.WriteString(g)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n## Publishing events\n\n")
	b.WriteString("To hand work to another role, emit an event tag in your final message:\n\n")
	b.WriteString("    <event topic=\"some.topic\">payload for the next role</event>\n")
	if len(h.Publishes) > 0 {
		b.WriteString("\nYou may publish to these topics:\n\n")
		for _, t := range h.Publishes {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	}
	b.WriteString("\nTo ask the operator a question and wait for the answer, publish to human.ask.\n")

	return b.String()
}

// trailingLines keeps the last n lines of text, for handing a summary of
// a hat's output to the next event without carrying the whole transcript.
func trailingLines(text string, n int) string {
	text = strings.TrimSpace(text)
	lines := strings.Split(text, "\n")
	if len(lines) <= n {
		return text
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
