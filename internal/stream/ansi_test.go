package stream

import "testing"

func TestStripANSI(t *testing.T) {
	in := "\x1b[1;32mgreen\x1b[0m plain \x1b]0;title\x07tail"
	if got := StripANSI(in); got != "green plain tail" {
		t.Fatalf("StripANSI = %q", got)
	}
}
