package hat

import (
	"strings"
	"testing"

	"github.com/agusx1211/hatloop/internal/stream"
)

func validHats() []Config {
	return []Config{
		{
			Name:      "builder",
			Triggers:  []Topic{"build.task"},
			Publishes: []Topic{"build.done", "build.blocked"},
			Backend:   stream.BackendPi,
		},
		{
			Name:           "reviewer",
			Triggers:       []Topic{"build.done"},
			Publishes:      []Topic{"review.*"},
			DefaultPublish: "review.done",
			Backend:        stream.BackendClaude,
		},
	}
}

func TestNewRegistryValid(t *testing.T) {
	reg, err := NewRegistry(validHats())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	h, ok := reg.ForTopic("build.task")
	if !ok || h.Name != "builder" {
		t.Fatalf("ForTopic(build.task) = %+v, %v", h, ok)
	}
	h, ok = reg.ForTopic("build.done")
	if !ok || h.Name != "reviewer" {
		t.Fatalf("ForTopic(build.done) = %+v, %v", h, ok)
	}
	if _, ok := reg.ForTopic("unrelated.topic"); ok {
		t.Fatal("unrelated topic should have no handler")
	}
	if _, ok := reg.Get("builder"); !ok {
		t.Fatal("Get(builder) not found")
	}
}

func TestNewRegistryRejectsOverlap(t *testing.T) {
	hats := validHats()
	hats = append(hats, Config{
		Name:     "second-builder",
		Triggers: []Topic{"build.*"},
		Backend:  stream.BackendPi,
	})
	_, err := NewRegistry(hats)
	if err == nil {
		t.Fatal("overlapping triggers should be rejected at load time")
	}
	if !strings.Contains(err.Error(), "overlapping") {
		t.Fatalf("error = %v, want overlap mention", err)
	}
}

func TestNewRegistryGlobalWildcardIsFallback(t *testing.T) {
	hats := validHats()
	hats = append(hats, Config{
		Name:     "catch-all",
		Triggers: []Topic{"*"},
		Backend:  stream.BackendPi,
	})
	reg, err := NewRegistry(hats)
	if err != nil {
		t.Fatalf("NewRegistry with global wildcard: %v", err)
	}

	// Specific trigger wins over the wildcard.
	h, ok := reg.ForTopic("build.task")
	if !ok || h.Name != "builder" {
		t.Fatalf("ForTopic(build.task) = %+v", h)
	}
	// Unmatched topics fall through to the wildcard hat.
	h, ok = reg.ForTopic("totally.new")
	if !ok || h.Name != "catch-all" {
		t.Fatalf("ForTopic(totally.new) = %+v", h)
	}
}

func TestNewRegistryValidation(t *testing.T) {
	tests := []struct {
		name string
		hats []Config
	}{
		{"empty table", nil},
		{"missing name", []Config{{Triggers: []Topic{"a.b"}, Backend: stream.BackendPi}}},
		{"duplicate names", []Config{
			{Name: "x", Triggers: []Topic{"a.b"}, Backend: stream.BackendPi},
			{Name: "x", Triggers: []Topic{"c.d"}, Backend: stream.BackendPi},
		}},
		{"no triggers", []Config{{Name: "x", Backend: stream.BackendPi}}},
		{"unknown backend", []Config{{Name: "x", Triggers: []Topic{"a.b"}, Backend: "mystery"}}},
		{"default publish outside publishes", []Config{{
			Name:           "x",
			Triggers:       []Topic{"a.b"},
			Publishes:      []Topic{"c.*"},
			DefaultPublish: "d.done",
			Backend:        stream.BackendPi,
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.hats); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestPublishAllowed(t *testing.T) {
	h := Config{Name: "x", Publishes: []Topic{"impl.*", "status.update"}}
	if !h.PublishAllowed("impl.done") {
		t.Fatal("impl.done should be allowed")
	}
	if !h.PublishAllowed("status.update") {
		t.Fatal("status.update should be allowed")
	}
	if h.PublishAllowed("review.done") {
		t.Fatal("review.done should be filtered")
	}

	open := Config{Name: "y"}
	if !open.PublishAllowed("anything.at.all") {
		t.Fatal("hat without declared publishes may publish anything")
	}
}
