package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/agusx1211/hatloop/internal/debug"
	"github.com/agusx1211/hatloop/internal/recording"
	"github.com/agusx1211/hatloop/internal/stream"
)

// Options configures one agent invocation.
type Options struct {
	Backend stream.Backend
	Prompt  string
	WorkDir string
	Env     map[string]string

	// Command overrides the backend's canonical executable, and Args
	// replaces the constructed argument list when non-nil. Used for
	// custom install paths and wrapper scripts.
	Command string
	Args    []string

	// Verbose forwards thinking deltas to the observer.
	Verbose bool

	// MaxRuntime bounds the invocation; 0 means unlimited. Exceeding it
	// ends the Runner in StateTimedOut.
	MaxRuntime time.Duration

	// UsePTY launches the process under a pseudo-terminal and strips
	// ANSI sequences before parsing. Needed for backends that refuse to
	// stream when stdout is a pipe.
	UsePTY bool

	// Stderr receives the process's stderr in pipe mode. nil means
	// os.Stderr.
	Stderr io.Writer
}

// Invocation is the outcome of one Run.
type Invocation struct {
	State    State
	ExitCode int
	Result   stream.Result
	Stderr   string
}

// Runner drives a single agent process from construction to a terminal
// state. A Runner is single-use; create a new one per invocation.
type Runner struct {
	opts Options

	mu    sync.Mutex
	state State
}

func New(opts Options) *Runner {
	return &Runner{opts: opts}
}

// State returns the current lifecycle state. Safe for concurrent use.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) transition(to State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !canTransition(r.state, to) {
		return fmt.Errorf("runner: invalid transition %s -> %s", r.state, to)
	}
	r.state = to
	return nil
}

// Run spawns the backend process and streams its output through the
// backend parser into h, folding canonical events into a fresh
// SessionState. Every invocation observes exactly one OnComplete,
// including cancellation and spawn failure.
//
// Raw terminal bytes are recorded to rec as they arrive; rec may be nil.
func (r *Runner) Run(ctx context.Context, h stream.Handler, rec *recording.Recorder) (*Invocation, error) {
	if err := r.transition(StateStarting); err != nil {
		return nil, err
	}

	parser, err := stream.ParserFor(r.opts.Backend)
	if err != nil {
		r.fail(h, nil, err)
		return nil, err
	}
	spec, err := BuildCommand(r.opts.Backend, r.opts.Prompt)
	if err != nil {
		r.fail(h, nil, err)
		return nil, err
	}
	if r.opts.Command != "" {
		spec.Exe = r.opts.Command
	}
	if r.opts.Args != nil {
		spec.Args = r.opts.Args
	}

	runCtx := ctx
	var cancelTimeout context.CancelFunc
	if r.opts.MaxRuntime > 0 {
		runCtx, cancelTimeout = context.WithTimeout(ctx, r.opts.MaxRuntime)
		defer cancelTimeout()
	}

	cmd := exec.CommandContext(runCtx, spec.Exe, spec.Args...)
	cmd.Dir = r.opts.WorkDir
	setupEnv(cmd, spec.Env, r.opts.Env)

	if spec.Stdin != "" {
		cmd.Stdin = strings.NewReader(spec.Stdin)
	}

	if rec != nil {
		rec.RecordMeta("backend", string(r.opts.Backend))
		rec.RecordMeta("command", spec.Exe+" "+strings.Join(spec.Args, " "))
		if r.opts.WorkDir != "" {
			rec.RecordMeta("workdir", r.opts.WorkDir)
		}
	}

	var st stream.SessionState
	var stderrBuf strings.Builder
	var sawSessionError bool
	start := time.Now()

	observe := func(ev stream.Event) {
		if ev.Kind == stream.KindSessionError {
			sawSessionError = true
		}
		stream.Dispatch(ev, h, &st, r.opts.Verbose)
	}

	var waitErr error
	if r.opts.UsePTY {
		waitErr = r.runPTY(runCtx, cmd, parser, rec, observe)
	} else {
		waitErr = r.runPipes(runCtx, cmd, parser, rec, &stderrBuf, observe)
	}
	if r.State() == StateStarting {
		// Spawn failed before the read loop started.
		r.fail(h, &st, waitErr)
		return nil, waitErr
	}

	duration := time.Since(start)
	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			r.fail(h, &st, waitErr)
			return nil, waitErr
		}
	}

	final := StateCompleted
	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		final = StateTimedOut
	case ctx.Err() != nil:
		final = StateCancelled
	case exitCode != 0 || sawSessionError:
		final = StateFailed
	}
	if err := r.transition(final); err != nil {
		return nil, err
	}

	res := st.Finalize(duration)
	h.OnComplete(res)

	debug.LogKV("runner", "invocation finished",
		"backend", r.opts.Backend,
		"state", final,
		"exit_code", exitCode,
		"turns", res.TurnCount,
		"cost_usd", res.TotalCostUSD,
		"duration", duration.Round(time.Millisecond),
	)

	return &Invocation{
		State:    final,
		ExitCode: exitCode,
		Result:   res,
		Stderr:   stderrBuf.String(),
	}, nil
}

// runPipes launches cmd with a stdout pipe and feeds each line through
// observe. It returns the Wait error once the process exits.
func (r *Runner) runPipes(ctx context.Context, cmd *exec.Cmd, parser stream.Parser, rec *recording.Recorder, stderrBuf *strings.Builder, observe func(stream.Event)) error {
	setupProcessGroup(cmd)
	cmd.WaitDelay = 5 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("runner: stdout pipe: %w", err)
	}

	stderrW := r.opts.Stderr
	if stderrW == nil {
		stderrW = os.Stderr
	}
	stderrOut := io.MultiWriter(stderrBuf, stderrW)
	if rec != nil {
		cmd.Stderr = rec.WrapWriter(stderrOut, false)
	} else {
		cmd.Stderr = stderrOut
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("runner: start %s: %w", cmd.Path, err)
	}
	if err := r.transition(StateRunning); err != nil {
		return err
	}

	var src io.Reader = stdout
	if rec != nil {
		src = io.TeeReader(stdout, rec.WrapWriter(nil, true))
	}
	r.readLines(ctx, src, parser, observe, false)

	return cmd.Wait()
}

// readLines scans src line by line, parsing each into at most one
// canonical event. Reading stops when src is exhausted or ctx is done;
// after cancellation no further events reach the observer. stripANSI is
// set for PTY sources, whose lines carry escape sequences.
func (r *Runner) readLines(ctx context.Context, src io.Reader, parser stream.Parser, observe func(stream.Event), stripANSI bool) {
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := sc.Text()
		if stripANSI {
			line = stream.StripANSI(line)
		}
		if ev, ok := parser.ParseLine(line, r.opts.Verbose); ok {
			observe(ev)
		}
	}
}

// fail moves the Runner to StateFailed and emits the mandatory terminal
// callback pair for an invocation that never produced output. The move
// goes through the same transition guard as every other state change;
// a Runner already in a terminal state stays where it is and emits
// nothing, keeping the callback pair exactly-once.
func (r *Runner) fail(h stream.Handler, st *stream.SessionState, cause error) {
	if err := r.transition(StateFailed); err != nil {
		return
	}

	if cause != nil {
		h.OnError(cause.Error())
	}
	if st == nil {
		st = &stream.SessionState{}
	}
	h.OnComplete(st.Finalize(0))
}

// setupProcessGroup starts the command in its own process group so that
// context cancellation kills the entire tree. Agent CLIs spawn child
// processes; orphans would hold pipes open and hang the parent.
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process != nil {
			return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		return nil
	}
}

// setupEnv inherits the current environment and overlays spec env then
// caller env, in that order.
func setupEnv(cmd *exec.Cmd, layers ...map[string]string) {
	cmd.Env = os.Environ()
	for _, layer := range layers {
		for k, v := range layer {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}
}
