package recording

import (
	"context"
	"strings"
	"time"

	"github.com/agusx1211/hatloop/internal/stream"
)

// Replayer feeds a cassette's terminal output back through the same
// line-buffering, parsing and dispatch pipeline used in live execution.
type Replayer struct {
	// Speed is the playback speed multiplier relative to the recorded
	// timing. 0 replays as fast as possible.
	Speed float64
}

// Replay dispatches every stdout byte of the cassette through p and h,
// folding canonical events into st. It honors recorded inter-record
// timing scaled by Speed, and stops early when ctx is cancelled.
func (rp *Replayer) Replay(ctx context.Context, cas Cassette, p stream.Parser, h stream.Handler, st *stream.SessionState, verbose bool) error {
	writes := cas.TerminalWrites()

	// PTY cassettes hold the raw escape-laden bytes; strip them per
	// line exactly as the live read loop does.
	strip, _ := cas.Meta(MetaPTY)
	isPTY := strip == "true"

	var pending strings.Builder
	var prevOffset int64
	for i, tw := range writes {
		if rp.Speed > 0 && i > 0 {
			wait := time.Duration(float64(tw.OffsetMS-prevOffset)/rp.Speed) * time.Millisecond
			if wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		prevOffset = tw.OffsetMS

		if err := ctx.Err(); err != nil {
			return err
		}
		if !tw.Stdout {
			continue
		}

		// Re-assemble lines exactly as the live scanner would.
		pending.Write(tw.Bytes)
		buf := pending.String()
		pending.Reset()
		for {
			idx := strings.IndexByte(buf, '\n')
			if idx < 0 {
				pending.WriteString(buf)
				break
			}
			line := strings.TrimSuffix(buf[:idx], "\r")
			buf = buf[idx+1:]
			if isPTY {
				line = stream.StripANSI(line)
			}
			if ev, ok := p.ParseLine(line, verbose); ok {
				stream.Dispatch(ev, h, st, verbose)
			}
		}
	}

	// A final unterminated line still counts as a line.
	if rest := strings.TrimSuffix(pending.String(), "\r"); rest != "" {
		if isPTY {
			rest = stream.StripANSI(rest)
		}
		if ev, ok := p.ParseLine(rest, verbose); ok {
			stream.Dispatch(ev, h, st, verbose)
		}
	}
	return nil
}
