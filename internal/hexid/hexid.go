// Package hexid produces the short random identifiers stamped on loop
// runs, cassettes, and debug log files.
package hexid

import (
	"crypto/rand"
	"encoding/hex"
)

const idBytes = 4

// New returns a fresh 8-character lowercase hex identifier. It panics
// when the OS entropy source is unusable, which makes every other
// identifier in the process equally untrustworthy.
func New() string {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		panic("hexid: entropy source unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}
