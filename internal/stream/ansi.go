package stream

import "regexp"

// ansiSeq matches CSI and OSC escape sequences emitted by TUI-leaning
// CLIs. PTY output is stripped before line parsing, both live and on
// replay, so the backend parsers only ever see plain text.
var ansiSeq = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07\x1b]*(\x07|\x1b\\)|\x1b[@-_]`)

// StripANSI removes terminal escape sequences from s.
func StripANSI(s string) string {
	return ansiSeq.ReplaceAllString(s, "")
}
