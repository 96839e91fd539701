package hat

import (
	"regexp"
	"strings"
)

// Event is one routed message on the orchestration bus.
type Event struct {
	Topic   string
	Payload string
	Source  string
}

// eventTag matches the inline event markup agents embed in their text
// output: <event topic="impl.done">payload</event>. Payloads may span
// lines; matching is non-greedy so adjacent tags stay separate.
var eventTag = regexp.MustCompile(`(?s)<event\s+topic="([^"]+)"\s*>(.*?)</event>`)

// ParseEvents extracts every event tag from an agent's extracted text,
// in order of appearance. source labels the emitting hat.
func ParseEvents(output, source string) []Event {
	matches := eventTag.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return nil
	}
	events := make([]Event, 0, len(matches))
	for _, m := range matches {
		topic := strings.TrimSpace(m[1])
		if topic == "" {
			continue
		}
		events = append(events, Event{
			Topic:   topic,
			Payload: strings.TrimSpace(m[2]),
			Source:  source,
		})
	}
	return events
}

// ContainsPromise reports whether output carries the completion promise
// marker. An empty marker never matches.
func ContainsPromise(output, marker string) bool {
	if marker == "" {
		return false
	}
	return strings.Contains(output, marker)
}
