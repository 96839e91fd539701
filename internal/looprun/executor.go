package looprun

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/agusx1211/hatloop/internal/hat"
	"github.com/agusx1211/hatloop/internal/recording"
	"github.com/agusx1211/hatloop/internal/runner"
	"github.com/agusx1211/hatloop/internal/stream"
)

// Executor runs one agent invocation for a hat. The live implementation
// spawns a process; the replay implementation feeds a recorded cassette
// through the same pipeline. The engine cannot tell them apart.
type Executor interface {
	Execute(ctx context.Context, h *hat.Config, prompt string, obs stream.Handler) (*runner.Invocation, error)
}

// LiveExecutor runs hats as real backend processes.
type LiveExecutor struct {
	WorkDir          string
	Verbose          bool
	UsePTY           bool
	IterationTimeout time.Duration
	Recorder         *recording.Recorder
	Stderr           io.Writer

	// Command and Args override the backend launch for tests and
	// custom installs; see runner.Options.
	Command string
	Args    []string
}

func (e *LiveExecutor) Execute(ctx context.Context, h *hat.Config, prompt string, obs stream.Handler) (*runner.Invocation, error) {
	r := runner.New(runner.Options{
		Backend:    h.Backend,
		Prompt:     prompt,
		WorkDir:    e.WorkDir,
		Verbose:    e.Verbose,
		UsePTY:     e.UsePTY,
		MaxRuntime: e.IterationTimeout,
		Stderr:     e.Stderr,
		Command:    e.Command,
		Args:       e.Args,
	})
	return r.Run(ctx, obs, e.Recorder)
}

// Player replays recorded cassettes instead of spawning processes, one
// cassette per iteration in order. From the engine's perspective a
// replayed run is indistinguishable from a live one, except that it
// spawns nothing and costs nothing new.
type Player struct {
	cassettes []recording.Cassette
	next      int
	replayer  recording.Replayer
	verbose   bool
}

// NewPlayer loads every cassette up front so a missing file surfaces as
// a configuration error before any replay starts. speed scales recorded
// timing; 0 replays as fast as possible.
func NewPlayer(paths []string, speed float64, verbose bool) (*Player, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("replay: no cassettes given")
	}
	cassettes := make([]recording.Cassette, 0, len(paths))
	for _, p := range paths {
		cas, err := recording.Load(p)
		if err != nil {
			return nil, err
		}
		cassettes = append(cassettes, cas)
	}
	return &Player{
		cassettes: cassettes,
		replayer:  recording.Replayer{Speed: speed},
		verbose:   verbose,
	}, nil
}

func (p *Player) Execute(ctx context.Context, h *hat.Config, _ string, obs stream.Handler) (*runner.Invocation, error) {
	if p.next >= len(p.cassettes) {
		return nil, fmt.Errorf("replay: no cassette for iteration %d", p.next+1)
	}
	cas := p.cassettes[p.next]
	p.next++

	parser, err := stream.ParserFor(h.Backend)
	if err != nil {
		return nil, err
	}

	var st stream.SessionState
	start := time.Now()
	if err := p.replayer.Replay(ctx, cas, parser, obs, &st, p.verbose); err != nil {
		return nil, err
	}
	res := st.Finalize(time.Since(start))
	obs.OnComplete(res)

	// A recorded failure outcome is honored on replay.
	state := runner.StateCompleted
	if term, ok := cas.Termination(); ok && term.Reason == "failed" {
		state = runner.StateFailed
	}
	return &runner.Invocation{State: state, Result: res}, nil
}
