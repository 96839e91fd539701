package hat

import "testing"

func TestParseEvents(t *testing.T) {
	out := `I finished the parser.
<event topic="review.ready">parser in internal/parse, please review</event>
Also filed a follow-up:
<event topic="docs.todo">
document the new flags
</event>`

	events := ParseEvents(out, "builder")
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].Topic != "review.ready" {
		t.Errorf("events[0].Topic = %q", events[0].Topic)
	}
	if events[0].Payload != "parser in internal/parse, please review" {
		t.Errorf("events[0].Payload = %q", events[0].Payload)
	}
	if events[1].Topic != "docs.todo" || events[1].Payload != "document the new flags" {
		t.Errorf("events[1] = %+v", events[1])
	}
	if events[0].Source != "builder" {
		t.Errorf("events[0].Source = %q", events[0].Source)
	}
}

func TestParseEventsNoTags(t *testing.T) {
	if events := ParseEvents("just plain text", "x"); events != nil {
		t.Fatalf("events = %v, want nil", events)
	}
}

func TestParseEventsAdjacentTagsStaySeparate(t *testing.T) {
	out := `<event topic="a.b">one</event><event topic="c.d">two</event>`
	events := ParseEvents(out, "x")
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].Payload != "one" || events[1].Payload != "two" {
		t.Errorf("payloads = %q, %q", events[0].Payload, events[1].Payload)
	}
}

func TestParseEventsSkipsEmptyTopic(t *testing.T) {
	out := `<event topic="  ">lost</event><event topic="kept.topic">ok</event>`
	events := ParseEvents(out, "x")
	if len(events) != 1 || events[0].Topic != "kept.topic" {
		t.Fatalf("events = %+v, want only kept.topic", events)
	}
}

func TestContainsPromise(t *testing.T) {
	if !ContainsPromise("work is done LOOP_DONE bye", "LOOP_DONE") {
		t.Error("promise not found")
	}
	if ContainsPromise("work is done", "LOOP_DONE") {
		t.Error("promise found in text without marker")
	}
	if ContainsPromise("anything at all", "") {
		t.Error("empty marker must never match")
	}
}
