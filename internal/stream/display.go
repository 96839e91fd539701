package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const timeRound = 100 * time.Millisecond

// Display renders canonical events for a human watching the terminal.
// It implements Handler.
type Display struct {
	w     io.Writer
	color bool
	mu    sync.Mutex

	midLine bool
}

// NewDisplay creates a Display writing to w. Color is enabled when w is
// os.Stdout/os.Stderr attached to a terminal.
func NewDisplay(w io.Writer) *Display {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd())
	}
	return &Display{w: w, color: color}
}

func (d *Display) style(code, s string) string {
	if !d.color {
		return s
	}
	return code + s + "\033[0m"
}

// OnText streams a text delta without forcing a newline, so incremental
// deltas concatenate naturally.
func (d *Display) OnText(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprint(d.w, text)
	d.midLine = !strings.HasSuffix(text, "\n")
}

// OnToolCall prints the tool invocation on its own line.
func (d *Display) OnToolCall(id, name string, args json.RawMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finishLine()
	argStr := compactWhitespace(string(args))
	if len(argStr) > 100 {
		argStr = argStr[:100] + "..."
	}
	fmt.Fprintf(d.w, "%s %s\n", d.style("\033[1;33m", "[tool:"+name+"]"), argStr)
}

// OnToolResult prints a dim one-line summary of the result.
func (d *Display) OnToolResult(id, result string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finishLine()
	summary := compactWhitespace(result)
	if len(summary) > 120 {
		summary = summary[:120] + "..."
	}
	fmt.Fprintf(d.w, "%s %s\n", d.style("\033[2m", "[result]"), summary)
}

// OnError prints the error in bold red.
func (d *Display) OnError(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finishLine()
	fmt.Fprintf(d.w, "%s %s\n", d.style("\033[1;31m", "[error]"), compactWhitespace(message))
}

// OnComplete prints the session summary line.
func (d *Display) OnComplete(res Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finishLine()
	fmt.Fprintf(d.w, "%s %d turns, %d tokens, $%.4f, %s\n",
		d.style("\033[2m", "[done]"),
		res.TurnCount,
		res.TotalTokens,
		res.TotalCostUSD,
		res.Duration.Round(timeRound),
	)
}

func (d *Display) finishLine() {
	if d.midLine {
		fmt.Fprintln(d.w)
		d.midLine = false
	}
}

func compactWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
