// Package hat implements event topics, hat configuration and the
// registry that routes pending events to the hat handling them.
package hat

import "strings"

// Topic is a routing key. Topics are either concrete ("impl.done") or
// patterns with per-segment wildcards ("impl.*"). A lone "*" is the
// global wildcard used for fallback routing.
type Topic string

// IsGlobalWildcard reports whether t matches everything. Global
// wildcards have lower routing priority than specific triggers.
func (t Topic) IsGlobalWildcard() bool {
	return t == "*"
}

// Matches reports whether the pattern t matches the concrete topic.
// "*" matches any single segment; segment counts must agree, so
// "impl.*" does not match "impl.sub.done".
func (t Topic) Matches(target string) bool {
	pattern := string(t)
	if pattern == "*" {
		return true
	}
	if pattern == target {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return false
	}

	pp := strings.Split(pattern, ".")
	tp := strings.Split(target, ".")
	if len(pp) != len(tp) {
		return false
	}
	for i := range pp {
		if pp[i] != "*" && pp[i] != tp[i] {
			return false
		}
	}
	return true
}

// Overlaps reports whether some concrete topic matches both t and other.
// Two patterns overlap when their segment counts agree and every
// segment pair is equal or contains a wildcard. Global wildcards are
// excluded; they are an intentional fallback, not an ambiguity.
func (t Topic) Overlaps(other Topic) bool {
	if t.IsGlobalWildcard() || other.IsGlobalWildcard() {
		return false
	}
	a := strings.Split(string(t), ".")
	b := strings.Split(string(other), ".")
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != "*" && b[i] != "*" && a[i] != b[i] {
			return false
		}
	}
	return true
}
