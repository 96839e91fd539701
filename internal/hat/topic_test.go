package hat

import "testing"

func TestTopicMatches(t *testing.T) {
	tests := []struct {
		pattern Topic
		target  string
		want    bool
	}{
		{"impl.done", "impl.done", true},
		{"impl.done", "review.done", false},
		{"impl.*", "impl.done", true},
		{"impl.*", "impl.started", true},
		{"impl.*", "review.done", false},
		{"*.done", "impl.done", true},
		{"*.done", "review.done", true},
		{"*.done", "impl.started", false},
		{"*", "impl.done", true},
		{"*", "anything", true},
		// Segment counts must agree.
		{"impl.*", "impl.sub.done", false},
		{"impl.done", "impl", false},
	}
	for _, tt := range tests {
		if got := tt.pattern.Matches(tt.target); got != tt.want {
			t.Errorf("Topic(%q).Matches(%q) = %v, want %v", tt.pattern, tt.target, got, tt.want)
		}
	}
}

func TestTopicOverlaps(t *testing.T) {
	tests := []struct {
		a, b Topic
		want bool
	}{
		{"impl.done", "impl.done", true},
		{"impl.done", "review.done", false},
		{"impl.*", "impl.done", true},
		{"impl.*", "*.done", true},
		{"impl.*", "review.*", false},
		{"impl.*", "impl.sub.done", false},
		// Global wildcard is intentional fallback, never an overlap.
		{"*", "impl.done", false},
		{"impl.*", "*", false},
	}
	for _, tt := range tests {
		if got := tt.a.Overlaps(tt.b); got != tt.want {
			t.Errorf("Topic(%q).Overlaps(%q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
		if got := tt.b.Overlaps(tt.a); got != tt.want {
			t.Errorf("Topic(%q).Overlaps(%q) = %v, want %v (symmetry)", tt.b, tt.a, got, tt.want)
		}
	}
}
