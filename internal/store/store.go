// Package store persists completed loop sessions under ~/.hatloop/sessions
// so past runs can be listed and replayed.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const sessionsDir = "sessions"

// Session is the stored summary of one finished loop.
type Session struct {
	LoopID     string    `json:"loop_id"`
	StartTopic string    `json:"start_topic"`
	Reason     string    `json:"reason"`
	Detail     string    `json:"detail,omitempty"`
	Iterations int       `json:"iterations"`
	CostUSD    float64   `json:"cost_usd"`
	Tokens     int       `json:"tokens,omitempty"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
}

// Store manages the on-disk session archive.
type Store struct {
	root string
}

// Open returns the store rooted at dir, creating it if needed. An empty
// dir means ~/.hatloop.
func Open(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".hatloop")
	}
	root := filepath.Join(dir, sessionsDir)
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

func (s *Store) Root() string {
	return s.root
}

// CassettePath returns where a session's recording lives or will live.
func (s *Store) CassettePath(loopID string) string {
	return filepath.Join(s.root, loopID+".jsonl")
}

// Save writes the session summary next to its cassette.
func (s *Store) Save(sess Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.root, sess.LoopID+".json"), data, 0644)
}

// List returns all stored sessions, most recent first.
func (s *Store) List() ([]Session, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var out []Session
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.root, e.Name()))
		if err != nil {
			continue
		}
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			continue
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Started.After(out[j].Started) })
	return out, nil
}

// Get returns one stored session by loop ID.
func (s *Store) Get(loopID string) (*Session, error) {
	data, err := os.ReadFile(filepath.Join(s.root, loopID+".json"))
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}
