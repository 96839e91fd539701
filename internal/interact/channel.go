// Package interact implements the blocking human interaction channel:
// a loop can ask a question and wait up to a timeout for an external
// reply, with retried outbound delivery.
package interact

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agusx1211/hatloop/internal/debug"
	"github.com/agusx1211/hatloop/internal/eventq"
)

// Transport delivers outbound messages to the human. Implementations
// must be safe for concurrent use from multiple loops.
type Transport interface {
	Send(ctx context.Context, loopID, text string) error
}

// Reply is an inbound human response routed to a waiting loop.
type Reply struct {
	Text        string
	RespondedAt time.Time
}

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
)

// Channel mediates questions and replies between orchestration loops
// and one shared Transport. Replies are routed by explicit loop ID; at
// most one question may be pending per loop.
type Channel struct {
	transport   Transport
	maxAttempts int
	baseDelay   time.Duration

	mu       sync.Mutex
	pending  map[string]chan Reply
	guidance map[string][]string
}

func NewChannel(t Transport) *Channel {
	return &Channel{
		transport:   t,
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		pending:     make(map[string]chan Reply),
		guidance:    make(map[string][]string),
	}
}

// Ask sends question to the human and blocks until a reply arrives for
// loopID or timeout elapses. The second return is false on timeout.
// Exhausted delivery retries are treated as a timeout, not an error.
// A second Ask while one is pending for the same loop is a caller error.
func (c *Channel) Ask(ctx context.Context, loopID, question string, timeout time.Duration) (Reply, bool, error) {
	ch := make(chan Reply, 1)

	c.mu.Lock()
	if _, exists := c.pending[loopID]; exists {
		c.mu.Unlock()
		return Reply{}, false, fmt.Errorf("interact: question already pending for loop %s", loopID)
	}
	c.pending[loopID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, loopID)
		c.mu.Unlock()
	}()

	if err := c.sendWithRetry(ctx, loopID, question); err != nil {
		debug.LogKV("interact", "outbound delivery exhausted, treating as timeout",
			"loop", loopID, "err", err)
		return Reply{}, false, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		return reply, true, nil
	case <-timer.C:
		return Reply{}, false, nil
	case <-ctx.Done():
		return Reply{}, false, ctx.Err()
	}
}

// Notify sends a one-way message with the same retry policy as Ask.
func (c *Channel) Notify(ctx context.Context, loopID, text string) error {
	return c.sendWithRetry(ctx, loopID, text)
}

// Deliver routes an inbound reply to the loop waiting on it. A reply
// with no pending question (late arrival after timeout, or unsolicited)
// is queued as guidance for the loop's next iteration when it starts
// with "guidance:", otherwise discarded with a log entry.
func (c *Channel) Deliver(loopID, text string) {
	c.mu.Lock()
	ch, waiting := c.pending[loopID]
	c.mu.Unlock()

	if waiting {
		if !eventq.Offer(ch, Reply{Text: text, RespondedAt: time.Now()}) {
			// Duplicate reply for the same question.
			debug.LogKV("interact", "discarding duplicate reply", "loop", loopID)
		}
		return
	}

	if rest, ok := strings.CutPrefix(text, "guidance:"); ok {
		c.QueueGuidance(loopID, strings.TrimSpace(rest))
		return
	}
	debug.LogKV("interact", "discarding reply with no pending question", "loop", loopID)
}

// QueueGuidance stores unsolicited operator input for injection into the
// loop's next prompt.
func (c *Channel) QueueGuidance(loopID, text string) {
	c.mu.Lock()
	c.guidance[loopID] = append(c.guidance[loopID], text)
	c.mu.Unlock()
}

// DrainGuidance returns and clears the queued guidance for a loop.
func (c *Channel) DrainGuidance(loopID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.guidance[loopID]
	delete(c.guidance, loopID)
	return out
}

// sendWithRetry attempts delivery with exponential backoff between
// attempts. Sleeps are cut short by ctx cancellation.
func (c *Channel) sendWithRetry(ctx context.Context, loopID, text string) error {
	var lastErr error
	delay := c.baseDelay
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		lastErr = c.transport.Send(ctx, loopID, text)
		if lastErr == nil {
			return nil
		}
		if attempt == c.maxAttempts {
			break
		}
		debug.LogKV("interact", "send failed, backing off",
			"loop", loopID, "attempt", attempt, "delay", delay, "err", lastErr)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return fmt.Errorf("interact: delivery failed after %d attempts: %w", c.maxAttempts, lastErr)
}
