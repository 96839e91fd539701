package stream

import "fmt"

// Backend identifies one supported agent wire format. The set is a closed
// enumeration: supporting a new CLI means adding a constant and a parser
// here, not registering a plugin at runtime.
type Backend string

const (
	BackendClaude Backend = "claude"
	BackendCodex  Backend = "codex"
	BackendPi     Backend = "pi"
)

// Backends lists every supported backend, in display order.
func Backends() []Backend {
	return []Backend{BackendClaude, BackendCodex, BackendPi}
}

// Parser converts one newline-stripped line of agent output into zero or
// one canonical Event.
//
// Implementations must be pure functions of the line and the verbose flag:
// no side effects, no retained state. A malformed line returns ok=false
// and is silently skipped; a well-formed line with an unknown tag returns
// an Event with KindUnrecognized. Parsers never return errors; a session
// must survive output this layer does not understand.
type Parser interface {
	// Name returns the backend name for logs and recordings.
	Name() string

	// ParseLine parses a single line. ok=false means the line produced no
	// event (empty, malformed, or filtered).
	ParseLine(line string, verbose bool) (Event, bool)
}

// ParserFor returns the parser for a backend. Unknown backends are a
// configuration error; they must be rejected before any process spawns.
func ParserFor(b Backend) (Parser, error) {
	switch b {
	case BackendClaude:
		return claudeParser{}, nil
	case BackendCodex:
		return codexParser{}, nil
	case BackendPi:
		return piParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported backend %q (supported: %v)", b, Backends())
	}
}

// Known reports whether b names a supported backend.
func Known(b Backend) bool {
	_, err := ParserFor(b)
	return err == nil
}
