package hat

import (
	"fmt"

	"github.com/agusx1211/hatloop/internal/stream"
)

// Config describes one hat: the topics that trigger it, the topics it
// may publish, the backend it runs on, and its prompt instructions.
// Immutable once loaded.
type Config struct {
	Name           string
	Triggers       []Topic
	Publishes      []Topic
	DefaultPublish Topic
	OnFailure      Topic
	Backend        stream.Backend
	Instructions   string
}

// PublishAllowed reports whether the hat may publish to topic. A hat
// with no declared publishes may publish anything.
func (c *Config) PublishAllowed(topic string) bool {
	if len(c.Publishes) == 0 {
		return true
	}
	for _, p := range c.Publishes {
		if p.Matches(topic) {
			return true
		}
	}
	return false
}

// Registry holds the validated hat table for one orchestration session.
type Registry struct {
	hats []Config
}

// NewRegistry validates the hat table and builds the routing registry.
// All configuration errors are reported here, before any process
// spawns: duplicate names, trigger-less hats, unknown backends, and
// ambiguous trigger overlap between distinct hats.
func NewRegistry(hats []Config) (*Registry, error) {
	if len(hats) == 0 {
		return nil, fmt.Errorf("hat registry: no hats configured")
	}

	seen := make(map[string]bool, len(hats))
	for i := range hats {
		h := &hats[i]
		if h.Name == "" {
			return nil, fmt.Errorf("hat registry: hat %d has no name", i)
		}
		if seen[h.Name] {
			return nil, fmt.Errorf("hat registry: duplicate hat name %q", h.Name)
		}
		seen[h.Name] = true
		if len(h.Triggers) == 0 {
			return nil, fmt.Errorf("hat %q: no trigger topics", h.Name)
		}
		if !stream.Known(h.Backend) {
			return nil, fmt.Errorf("hat %q: unknown backend %q", h.Name, h.Backend)
		}
		if h.DefaultPublish != "" && !h.PublishAllowed(string(h.DefaultPublish)) {
			return nil, fmt.Errorf("hat %q: default_publish %q not in publishes", h.Name, h.DefaultPublish)
		}
	}

	// Overlapping triggers across hats make routing ambiguous.
	for i := range hats {
		for j := i + 1; j < len(hats); j++ {
			for _, a := range hats[i].Triggers {
				for _, b := range hats[j].Triggers {
					if a.Overlaps(b) {
						return nil, fmt.Errorf(
							"hats %q and %q have overlapping triggers %q and %q",
							hats[i].Name, hats[j].Name, a, b)
					}
				}
			}
		}
	}

	cp := make([]Config, len(hats))
	copy(cp, hats)
	return &Registry{hats: cp}, nil
}

// ForTopic returns the hat triggered by a concrete topic. Specific
// triggers win over global wildcards; a global-wildcard hat is the
// fallback when no specific trigger matches.
func (r *Registry) ForTopic(topic string) (*Config, bool) {
	var fallback *Config
	for i := range r.hats {
		h := &r.hats[i]
		for _, trig := range h.Triggers {
			if trig.IsGlobalWildcard() {
				if fallback == nil {
					fallback = h
				}
				continue
			}
			if trig.Matches(topic) {
				return h, true
			}
		}
	}
	if fallback != nil {
		return fallback, true
	}
	return nil, false
}

// Hats returns the registered hats in configuration order.
func (r *Registry) Hats() []Config {
	cp := make([]Config, len(r.hats))
	copy(cp, r.hats)
	return cp
}

// Get returns the hat with the given name.
func (r *Registry) Get(name string) (*Config, bool) {
	for i := range r.hats {
		if r.hats[i].Name == name {
			return &r.hats[i], true
		}
	}
	return nil, false
}
