package runner

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/agusx1211/hatloop/internal/recording"
	"github.com/agusx1211/hatloop/internal/stream"
)

type testObserver struct {
	texts     []string
	errors    []string
	completes []stream.Result
}

func (o *testObserver) OnText(text string)                            { o.texts = append(o.texts, text) }
func (o *testObserver) OnToolCall(id, name string, _ json.RawMessage) {}
func (o *testObserver) OnToolResult(id, result string)                {}
func (o *testObserver) OnError(message string)                        { o.errors = append(o.errors, message) }
func (o *testObserver) OnComplete(res stream.Result)                  { o.completes = append(o.completes, res) }

// writeScript writes an executable shell script emitting fake pi output.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script helper not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "fake-agent.sh")
	if err := os.WriteFile(path, []byte("#!/usr/bin/env sh\n"+body), 0755); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestRunnerCompletesOnCleanExit(t *testing.T) {
	script := writeScript(t, `
echo '{"type":"message_update","assistantMessageEvent":{"type":"text_delta","delta":"working"}}'
echo '{"type":"turn_end","message":{"usage":{"input":3,"output":4,"cost":{"total":0.25}}}}'
`)

	obs := &testObserver{}
	rec := recording.New(nil)
	r := New(Options{
		Backend: stream.BackendPi,
		Prompt:  "do the thing",
		Command: "/bin/sh",
		Args:    []string{script},
	})

	inv, err := r.Run(context.Background(), obs, rec)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if inv.State != StateCompleted {
		t.Fatalf("state = %s, want completed", inv.State)
	}
	if r.State() != StateCompleted {
		t.Fatalf("runner state = %s, want completed", r.State())
	}
	if len(obs.texts) != 1 || obs.texts[0] != "working" {
		t.Fatalf("texts = %v, want [working]", obs.texts)
	}
	if len(obs.completes) != 1 {
		t.Fatalf("completes = %d, want exactly 1", len(obs.completes))
	}
	if inv.Result.TurnCount != 1 || inv.Result.TotalCostUSD != 0.25 {
		t.Fatalf("result = %+v", inv.Result)
	}

	// The raw stdout bytes must land on the cassette.
	if len(rec.Cassette().TerminalWrites()) == 0 {
		t.Fatal("no terminal writes recorded")
	}
}

func TestRunnerFailsOnNonZeroExit(t *testing.T) {
	script := writeScript(t, `
echo '{"type":"message_update","assistantMessageEvent":{"type":"text_delta","delta":"partial"}}'
exit 3
`)

	obs := &testObserver{}
	r := New(Options{
		Backend: stream.BackendPi,
		Command: "/bin/sh",
		Args:    []string{script},
	})

	inv, err := r.Run(context.Background(), obs, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if inv.State != StateFailed {
		t.Fatalf("state = %s, want failed", inv.State)
	}
	if inv.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", inv.ExitCode)
	}
	if len(obs.completes) != 1 {
		t.Fatalf("completes = %d, want exactly 1", len(obs.completes))
	}
}

func TestRunnerFailsOnSessionError(t *testing.T) {
	script := writeScript(t, `
echo '{"type":"message_update","assistantMessageEvent":{"type":"error","reason":"backend exploded"}}'
exit 0
`)

	obs := &testObserver{}
	r := New(Options{
		Backend: stream.BackendPi,
		Command: "/bin/sh",
		Args:    []string{script},
	})

	inv, err := r.Run(context.Background(), obs, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if inv.State != StateFailed {
		t.Fatalf("state = %s, want failed despite exit 0", inv.State)
	}
	if len(obs.errors) != 1 || obs.errors[0] != "backend exploded" {
		t.Fatalf("errors = %v", obs.errors)
	}
}

func TestRunnerTimesOut(t *testing.T) {
	script := writeScript(t, `
echo '{"type":"message_update","assistantMessageEvent":{"type":"text_delta","delta":"spinning"}}'
sleep 30
`)

	obs := &testObserver{}
	r := New(Options{
		Backend:    stream.BackendPi,
		Command:    "/bin/sh",
		Args:       []string{script},
		MaxRuntime: 200 * time.Millisecond,
	})

	start := time.Now()
	inv, err := r.Run(context.Background(), obs, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if inv.State != StateTimedOut {
		t.Fatalf("state = %s, want timed_out", inv.State)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("runner hung for %s after timeout", elapsed)
	}
	if len(obs.completes) != 1 {
		t.Fatalf("completes = %d, want exactly 1", len(obs.completes))
	}
}

func TestRunnerCancellation(t *testing.T) {
	script := writeScript(t, `
echo '{"type":"message_update","assistantMessageEvent":{"type":"text_delta","delta":"spinning"}}'
sleep 30
`)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	obs := &testObserver{}
	r := New(Options{
		Backend: stream.BackendPi,
		Command: "/bin/sh",
		Args:    []string{script},
	})

	inv, err := r.Run(ctx, obs, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if inv.State != StateCancelled {
		t.Fatalf("state = %s, want cancelled", inv.State)
	}
	if len(obs.completes) != 1 {
		t.Fatalf("completes = %d, want exactly 1", len(obs.completes))
	}
}

func TestRunnerSpawnFailure(t *testing.T) {
	obs := &testObserver{}
	r := New(Options{
		Backend: stream.BackendPi,
		Command: "/nonexistent/agent-binary",
	})

	if _, err := r.Run(context.Background(), obs, nil); err == nil {
		t.Fatal("Run() with missing binary should fail")
	}
	if r.State() != StateFailed {
		t.Fatalf("state = %s, want failed", r.State())
	}
	// Spawn failure still ends with exactly one terminal callback.
	if len(obs.completes) != 1 {
		t.Fatalf("completes = %d, want exactly 1", len(obs.completes))
	}
	if len(obs.errors) != 1 {
		t.Fatalf("errors = %v, want one spawn error", obs.errors)
	}
}

func TestFailOnTerminalRunnerEmitsNothing(t *testing.T) {
	obs := &testObserver{}
	r := New(Options{
		Backend: stream.BackendPi,
		Command: "/nonexistent/agent-binary",
	})

	if _, err := r.Run(context.Background(), obs, nil); err == nil {
		t.Fatal("Run() with missing binary should fail")
	}
	if len(obs.completes) != 1 || len(obs.errors) != 1 {
		t.Fatalf("completes = %d, errors = %d", len(obs.completes), len(obs.errors))
	}

	// A second failure against an already-terminal runner must not
	// repeat the terminal callback pair.
	r.fail(obs, nil, errors.New("late failure"))
	if len(obs.completes) != 1 || len(obs.errors) != 1 {
		t.Fatalf("terminal callbacks repeated: completes = %d, errors = %d",
			len(obs.completes), len(obs.errors))
	}
	if r.State() != StateFailed {
		t.Fatalf("state = %s, want failed", r.State())
	}
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateIdle, StateStarting, true},
		{StateIdle, StateRunning, false},
		{StateStarting, StateRunning, true},
		{StateStarting, StateCancelled, true},
		{StateStarting, StateFailed, true},
		{StateStarting, StateTimedOut, true},
		{StateStarting, StateCompleted, false},
		{StateRunning, StateCompleted, true},
		{StateRunning, StateFailed, true},
		{StateRunning, StateTimedOut, true},
		{StateCompleted, StateRunning, false},
		{StateFailed, StateCompleted, false},
		{StateCancelled, StateStarting, false},
	}
	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.ok {
			t.Errorf("canTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestBuildCommand(t *testing.T) {
	spec, err := BuildCommand(stream.BackendClaude, "fix the bug")
	if err != nil {
		t.Fatalf("BuildCommand: %v", err)
	}
	if spec.Exe != "claude" || spec.Stdin != "fix the bug" {
		t.Fatalf("claude spec = %+v", spec)
	}
	found := false
	for i, a := range spec.Args {
		if a == "--output-format" && i+1 < len(spec.Args) && spec.Args[i+1] == "stream-json" {
			found = true
		}
	}
	if !found {
		t.Fatalf("claude args missing stream-json: %v", spec.Args)
	}

	spec, err = BuildCommand(stream.BackendCodex, "p")
	if err != nil {
		t.Fatalf("BuildCommand: %v", err)
	}
	if spec.Exe != "codex" || spec.Args[0] != "exec" {
		t.Fatalf("codex spec = %+v", spec)
	}

	if _, err := BuildCommand(stream.Backend("mystery"), "p"); err == nil {
		t.Fatal("unknown backend should fail")
	}
}
