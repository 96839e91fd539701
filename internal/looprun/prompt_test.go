package looprun

import (
	"strings"
	"testing"

	"github.com/agusx1211/hatloop/internal/hat"
)

func TestBuildPromptSections(t *testing.T) {
	h := &hat.Config{
		Name:         "builder",
		Instructions: "You implement features.",
		Publishes:    []hat.Topic{"review.ready", "human.ask"},
	}
	ev := hat.Event{Topic: "impl.todo", Payload: "add retry logic", Source: "planner"}

	p := BuildPrompt(h, ev, []string{"keep changes small"})

	for _, want := range []string{
		"You implement features.",
		"## Triggering event",
		"Topic: impl.todo",
		"add retry logic",
		"## Operator guidance",
		"- keep changes small",
		"## Publishing events",
		`<event topic="some.topic">`,
		"- review.ready",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}

	if idx := strings.Index(p, "## Triggering event"); idx < strings.Index(p, "You implement features.") {
		t.Error("instructions must precede the triggering event")
	}
}

func TestBuildPromptOmitsEmptySections(t *testing.T) {
	h := &hat.Config{Name: "builder", Instructions: "Do work."}
	p := BuildPrompt(h, hat.Event{Topic: "task.start"}, nil)

	if strings.Contains(p, "## Operator guidance") {
		t.Error("guidance section present with no guidance")
	}
	if strings.Contains(p, "You may publish to these topics") {
		t.Error("publish list present for an unrestricted hat")
	}
}

func TestTrailingLines(t *testing.T) {
	text := "a\nb\nc\nd"
	if got := trailingLines(text, 2); got != "c\nd" {
		t.Errorf("trailingLines = %q, want %q", got, "c\nd")
	}
	if got := trailingLines(text, 10); got != text {
		t.Errorf("trailingLines = %q, want full text", got)
	}
	if got := trailingLines("  x  \n", 1); got != "x" {
		t.Errorf("trailingLines = %q, want %q", got, "x")
	}
}
