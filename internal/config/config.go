// Package config loads and validates the hatloop.yml configuration:
// backend selection, event-loop safety limits, the hat table and the
// human interaction settings.
package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/agusx1211/hatloop/internal/hat"
	"github.com/agusx1211/hatloop/internal/stream"
)

// Config is the full validated configuration for one orchestration run.
type Config struct {
	CLI         CLIConfig            `koanf:"cli"`
	EventLoop   EventLoopConfig      `koanf:"event_loop"`
	Hats        map[string]HatConfig `koanf:"hats"`
	Interaction InteractionConfig    `koanf:"interaction"`
}

// CLIConfig selects the default backend and output mode.
type CLIConfig struct {
	Backend string `koanf:"backend"`
	Verbose bool   `koanf:"verbose"`
	UsePTY  bool   `koanf:"use_pty"`
}

// EventLoopConfig holds the loop start topic and the global safety
// limits. Zero limits mean unlimited, except MaxIterations which
// defaults to a finite value so a misconfigured loop cannot run away.
type EventLoopConfig struct {
	StartTopic        string  `koanf:"start_topic"`
	MaxIterations     int     `koanf:"max_iterations"`
	MaxRuntimeSeconds int     `koanf:"max_runtime_seconds"`
	MaxCostUSD        float64 `koanf:"max_cost_usd"`
	CompletionPromise string  `koanf:"completion_promise"`

	// NoProgressLimit terminates the loop after this many consecutive
	// iterations with identical extracted text.
	NoProgressLimit int `koanf:"no_progress_limit"`

	IterationTimeoutSeconds int `koanf:"iteration_timeout_seconds"`
}

// HatConfig is the on-disk form of one hat table entry. The map key in
// Config.Hats is the hat's identifier; Name is its display name.
type HatConfig struct {
	Name           string   `koanf:"name"`
	Triggers       []string `koanf:"triggers"`
	Publishes      []string `koanf:"publishes"`
	DefaultPublish string   `koanf:"default_publish"`
	OnFailure      string   `koanf:"on_failure"`
	Backend        string   `koanf:"backend"`
	Instructions   string   `koanf:"instructions"`
}

// InteractionConfig configures the human interaction channel. Telegram
// supports the full ask/reply round-trip; pushover is notification-only.
type InteractionConfig struct {
	Enabled        bool   `koanf:"enabled"`
	Transport      string `koanf:"transport"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`

	TelegramToken  string `koanf:"telegram_token"`
	TelegramChatID string `koanf:"telegram_chat_id"`

	PushoverUserKey  string `koanf:"pushover_user_key"`
	PushoverAppToken string `koanf:"pushover_app_token"`
}

const (
	defaultStartTopic      = "task.start"
	defaultMaxIterations   = 50
	defaultNoProgressLimit = 3
	defaultAskTimeout      = 300
)

func applyDefaults(cfg *Config) {
	if cfg.CLI.Backend == "" {
		cfg.CLI.Backend = string(stream.BackendPi)
	}
	if cfg.EventLoop.StartTopic == "" {
		cfg.EventLoop.StartTopic = defaultStartTopic
	}
	if cfg.EventLoop.MaxIterations == 0 {
		cfg.EventLoop.MaxIterations = defaultMaxIterations
	}
	if cfg.EventLoop.NoProgressLimit == 0 {
		cfg.EventLoop.NoProgressLimit = defaultNoProgressLimit
	}
	if cfg.Interaction.TimeoutSeconds == 0 {
		cfg.Interaction.TimeoutSeconds = defaultAskTimeout
	}
	if cfg.Interaction.Transport == "" {
		cfg.Interaction.Transport = "telegram"
	}
}

// Validate checks everything that must hold before any process spawns.
func (c *Config) Validate() error {
	if !stream.Known(stream.Backend(c.CLI.Backend)) {
		return fmt.Errorf("cli.backend: unknown backend %q", c.CLI.Backend)
	}
	if c.EventLoop.MaxIterations < 0 {
		return fmt.Errorf("event_loop.max_iterations: must be >= 0")
	}
	if c.EventLoop.MaxCostUSD < 0 {
		return fmt.Errorf("event_loop.max_cost_usd: must be >= 0")
	}
	if c.EventLoop.MaxRuntimeSeconds < 0 {
		return fmt.Errorf("event_loop.max_runtime_seconds: must be >= 0")
	}
	switch c.Interaction.Transport {
	case "telegram", "pushover":
	default:
		return fmt.Errorf("interaction.transport: unknown transport %q", c.Interaction.Transport)
	}
	// The hat table itself is validated by Registry().
	_, err := c.Registry()
	return err
}

// Registry builds the validated routing registry from the hat table.
// Hats inherit the CLI backend when they do not name their own.
func (c *Config) Registry() (*hat.Registry, error) {
	if len(c.Hats) == 0 {
		return nil, fmt.Errorf("hats: no hats configured")
	}

	ids := make([]string, 0, len(c.Hats))
	for id := range c.Hats {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	hats := make([]hat.Config, 0, len(ids))
	for _, id := range ids {
		hc := c.Hats[id]
		backend := hc.Backend
		if backend == "" {
			backend = c.CLI.Backend
		}
		hats = append(hats, hat.Config{
			Name:           id,
			Triggers:       toTopics(hc.Triggers),
			Publishes:      toTopics(hc.Publishes),
			DefaultPublish: hat.Topic(hc.DefaultPublish),
			OnFailure:      hat.Topic(hc.OnFailure),
			Backend:        stream.Backend(backend),
			Instructions:   hc.Instructions,
		})
	}
	return hat.NewRegistry(hats)
}

// MaxRuntime returns the loop runtime limit as a Duration, 0 = unlimited.
func (c *Config) MaxRuntime() time.Duration {
	return time.Duration(c.EventLoop.MaxRuntimeSeconds) * time.Second
}

// IterationTimeout returns the per-iteration limit, 0 = unlimited.
func (c *Config) IterationTimeout() time.Duration {
	return time.Duration(c.EventLoop.IterationTimeoutSeconds) * time.Second
}

// AskTimeout returns the human interaction timeout.
func (c *Config) AskTimeout() time.Duration {
	return time.Duration(c.Interaction.TimeoutSeconds) * time.Second
}

func toTopics(in []string) []hat.Topic {
	if len(in) == 0 {
		return nil
	}
	out := make([]hat.Topic, len(in))
	for i, s := range in {
		out[i] = hat.Topic(s)
	}
	return out
}
