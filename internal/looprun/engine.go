package looprun

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agusx1211/hatloop/internal/debug"
	"github.com/agusx1211/hatloop/internal/hat"
	"github.com/agusx1211/hatloop/internal/interact"
	"github.com/agusx1211/hatloop/internal/recording"
	"github.com/agusx1211/hatloop/internal/runner"
	"github.com/agusx1211/hatloop/internal/stream"
)

// Reserved topics for the operator interaction round-trip. A hat
// publishes to TopicHumanAsk; the operator's answer comes back to the
// loop as a TopicHumanReply event.
const (
	TopicHumanAsk   = "human.ask"
	TopicHumanReply = "human.reply"
)

const defaultAskTimeout = 5 * time.Minute

// Limits are the safety bounds checked before each iteration. Zero
// values mean unbounded.
type Limits struct {
	MaxIterations   int
	MaxRuntime      time.Duration
	MaxCostUSD      float64
	NoProgressLimit int
}

// Options configures one orchestration loop.
type Options struct {
	Registry *hat.Registry
	Limits   Limits

	StartTopic        string
	StartPayload      string
	CompletionPromise string

	LoopID     string
	Recorder   *recording.Recorder
	Executor   Executor
	Interact   *interact.Channel
	AskTimeout time.Duration

	// Handler observes the stream of every invocation, for live
	// display. nil means output is discarded.
	Handler stream.Handler
}

// Iteration summarizes one hat invocation inside a loop.
type Iteration struct {
	Number    int
	Hat       string
	Topic     string
	StartedAt time.Time
	EndedAt   time.Time
	CostUSD   float64
	Tokens    int
	Outcome   runner.State
}

// Outcome is the terminal result of a loop run.
type Outcome struct {
	Reason       Reason
	Detail       string
	Iterations   []Iteration
	TotalCostUSD float64
	TotalTokens  int
}

// Engine drives the orchestration loop: a FIFO queue of pending events,
// routed to hats, each invocation bounded by the configured limits.
// Single-use; create a new Engine per run.
type Engine struct {
	opts Options

	queue       []hat.Event
	iterations  []Iteration
	totalCost   float64
	totalTokens int

	lastText   string
	sameStreak int
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("looprun: no hat registry")
	}
	if opts.Executor == nil {
		return nil, fmt.Errorf("looprun: no executor")
	}
	if opts.StartTopic == "" {
		return nil, fmt.Errorf("looprun: no start topic")
	}
	if opts.AskTimeout <= 0 {
		opts.AskTimeout = defaultAskTimeout
	}
	return &Engine{opts: opts}, nil
}

// Run executes the loop until a terminal condition. It always returns a
// non-nil Outcome describing why the loop stopped; the error is reserved
// for recording failures and other plumbing, never for agent failures.
func (e *Engine) Run(ctx context.Context) (*Outcome, error) {
	e.record(recording.TopicLoopStart, map[string]string{
		"loop_id":     e.opts.LoopID,
		"start_topic": e.opts.StartTopic,
	})

	e.queue = append(e.queue, hat.Event{
		Topic:   e.opts.StartTopic,
		Payload: e.opts.StartPayload,
		Source:  "operator",
	})

	started := time.Now()
	for {
		if ctx.Err() != nil {
			return e.terminate(ReasonCancelled, "context cancelled"), nil
		}
		if stop, out := e.checkLimits(started); stop {
			return out, nil
		}

		ev, ok := e.pop()
		if !ok {
			return e.terminate(ReasonFailed, "no pending events and no completion"), nil
		}

		// The completion promise doubles as a topic: publishing an event
		// on it ends the loop like any other event being processed.
		if e.opts.CompletionPromise != "" && ev.Topic == e.opts.CompletionPromise {
			return e.terminate(ReasonCompleted, ""), nil
		}

		h, ok := e.opts.Registry.ForTopic(ev.Topic)
		if !ok {
			debug.LogKV("looprun", "inert event", "topic", ev.Topic, "source", ev.Source)
			continue
		}

		out, done := e.runIteration(ctx, h, ev)
		if done {
			return out, nil
		}
	}
}

// checkLimits is evaluated before each iteration, so the loop stops
// before spawning an invocation that a prior iteration already put over
// budget.
func (e *Engine) checkLimits(started time.Time) (bool, *Outcome) {
	l := e.opts.Limits
	if l.MaxIterations > 0 && len(e.iterations) >= l.MaxIterations {
		return true, e.terminate(ReasonMaxIterations,
			fmt.Sprintf("reached %d iterations", l.MaxIterations))
	}
	if l.MaxRuntime > 0 && time.Since(started) >= l.MaxRuntime {
		return true, e.terminate(ReasonMaxRuntime,
			fmt.Sprintf("exceeded %s runtime", l.MaxRuntime))
	}
	if l.MaxCostUSD > 0 && e.totalCost >= l.MaxCostUSD {
		return true, e.terminate(ReasonMaxCost,
			fmt.Sprintf("spent $%.2f of $%.2f budget", e.totalCost, l.MaxCostUSD))
	}
	return false, nil
}

func (e *Engine) runIteration(ctx context.Context, h *hat.Config, ev hat.Event) (*Outcome, bool) {
	num := len(e.iterations) + 1

	var guidance []string
	if e.opts.Interact != nil {
		guidance = e.opts.Interact.DrainGuidance(e.opts.LoopID)
	}
	prompt := BuildPrompt(h, ev, guidance)

	e.record(recording.TopicIterationStart, recording.IterationMark{
		Number: num,
		Hat:    h.Name,
	})

	obs := e.opts.Handler
	if obs == nil {
		obs = discardHandler{}
	}

	it := Iteration{Number: num, Hat: h.Name, Topic: ev.Topic, StartedAt: time.Now()}
	inv, err := e.opts.Executor.Execute(ctx, h, prompt, obs)
	it.EndedAt = time.Now()

	if err != nil {
		e.iterations = append(e.iterations, it)
		if ctx.Err() != nil {
			return e.terminate(ReasonCancelled, "context cancelled"), true
		}
		return e.terminate(ReasonFailed, fmt.Sprintf("hat %s: %v", h.Name, err)), true
	}

	it.CostUSD = inv.Result.TotalCostUSD
	it.Tokens = inv.Result.TotalTokens
	it.Outcome = inv.State
	e.iterations = append(e.iterations, it)
	e.totalCost += inv.Result.TotalCostUSD
	e.totalTokens += inv.Result.TotalTokens

	e.record(recording.TopicIterationEnd, recording.IterationMark{
		Number:  num,
		Hat:     h.Name,
		Outcome: inv.State.String(),
		CostUSD: inv.Result.TotalCostUSD,
		Tokens:  inv.Result.TotalTokens,
	})

	switch inv.State {
	case runner.StateCancelled:
		return e.terminate(ReasonCancelled, "invocation cancelled"), true

	case runner.StateTimedOut:
		debug.LogKV("looprun", "iteration timed out", "hat", h.Name, "iteration", num)
		e.enqueueFailure(h, "iteration timed out")
		return nil, false

	case runner.StateFailed:
		if h.OnFailure != "" {
			e.enqueueFailure(h, trailingLines(inv.Result.ExtractedText, 20))
			return nil, false
		}
		return e.terminate(ReasonFailed, fmt.Sprintf("hat %s failed", h.Name)), true

	case runner.StateCompleted:
		text := inv.Result.ExtractedText
		if hat.ContainsPromise(text, e.opts.CompletionPromise) {
			return e.terminate(ReasonCompleted, ""), true
		}
		if e.noProgress(text) {
			return e.terminate(ReasonNoProgress,
				fmt.Sprintf("%d identical iterations", e.sameStreak)), true
		}
		e.publish(ctx, h, text)
		return nil, false

	default:
		return e.terminate(ReasonFailed,
			fmt.Sprintf("hat %s ended in unexpected state %s", h.Name, inv.State)), true
	}
}

// publish extracts the event tags from the hat's output, answers
// human.ask through the interaction channel, drops topics the hat may
// not publish, and enqueues the rest. When nothing was published the
// hat's default topic keeps the loop moving. human.ask is reserved and
// bypasses the publish filter: every hat is offered it in the prompt.
func (e *Engine) publish(ctx context.Context, h *hat.Config, text string) {
	published := 0
	for _, ev := range hat.ParseEvents(text, h.Name) {
		if ev.Topic == TopicHumanAsk {
			published++
			e.askOperator(ctx, ev)
			continue
		}
		if !h.PublishAllowed(ev.Topic) {
			debug.LogKV("looprun", "publish denied", "hat", h.Name, "topic", ev.Topic)
			continue
		}
		e.queue = append(e.queue, ev)
		published++
	}

	if published == 0 && h.DefaultPublish != "" {
		e.queue = append(e.queue, hat.Event{
			Topic:   string(h.DefaultPublish),
			Payload: trailingLines(text, 20),
			Source:  h.Name,
		})
	}
}

// askOperator relays a hat's question to the operator and enqueues the
// reply. A timed-out or undeliverable question is logged and dropped so
// the loop can carry on without the answer.
func (e *Engine) askOperator(ctx context.Context, ev hat.Event) {
	if e.opts.Interact == nil {
		debug.LogKV("looprun", "human.ask with no interaction channel", "source", ev.Source)
		return
	}
	reply, ok, err := e.opts.Interact.Ask(ctx, e.opts.LoopID, ev.Payload, e.opts.AskTimeout)
	if err != nil {
		debug.LogKV("looprun", "ask failed", "err", err.Error())
		return
	}
	if !ok {
		debug.LogKV("looprun", "ask timed out", "source", ev.Source)
		return
	}
	e.queue = append(e.queue, hat.Event{
		Topic:   TopicHumanReply,
		Payload: reply.Text,
		Source:  "operator",
	})
}

func (e *Engine) enqueueFailure(h *hat.Config, detail string) {
	if h.OnFailure == "" {
		return
	}
	e.queue = append(e.queue, hat.Event{
		Topic:   string(h.OnFailure),
		Payload: detail,
		Source:  h.Name,
	})
}

// noProgress tracks consecutive iterations whose extracted text is
// byte-identical. Hitting the configured streak means the loop is
// thrashing.
func (e *Engine) noProgress(text string) bool {
	if text == e.lastText {
		e.sameStreak++
	} else {
		e.lastText = text
		e.sameStreak = 1
	}
	limit := e.opts.Limits.NoProgressLimit
	return limit > 0 && e.sameStreak >= limit
}

func (e *Engine) pop() (hat.Event, bool) {
	if len(e.queue) == 0 {
		return hat.Event{}, false
	}
	ev := e.queue[0]
	e.queue = e.queue[1:]
	return ev, true
}

func (e *Engine) terminate(reason Reason, detail string) *Outcome {
	e.record(recording.TopicLoopTerminate, recording.Termination{
		Reason: reason.String(),
		Detail: detail,
	})
	debug.LogKV("looprun", "terminated",
		"reason", reason.String(),
		"iterations", len(e.iterations),
		"cost", e.totalCost)
	return &Outcome{
		Reason:       reason,
		Detail:       detail,
		Iterations:   e.iterations,
		TotalCostUSD: e.totalCost,
		TotalTokens:  e.totalTokens,
	}
}

func (e *Engine) record(topic string, data any) {
	if e.opts.Recorder == nil {
		return
	}
	e.opts.Recorder.Append(topic, data)
}

// discardHandler satisfies stream.Handler for runs with no display.
type discardHandler struct{}

func (discardHandler) OnText(string)                              {}
func (discardHandler) OnToolCall(string, string, json.RawMessage) {}
func (discardHandler) OnToolResult(string, string)                {}
func (discardHandler) OnError(string)                             {}
func (discardHandler) OnComplete(stream.Result)                   {}
