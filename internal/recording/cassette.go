package recording

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// Cassette is an ordered sequence of Records from one recorded session.
// One cassette corresponds to exactly one process lifetime.
type Cassette []Record

// Load reads a cassette from a JSONL file. A missing file is a
// configuration error and must be surfaced before any replay starts.
func Load(path string) (Cassette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cassette %s: %w", path, err)
	}
	defer f.Close()

	var cas Cassette
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("cassette %s: line %d: %w", path, lineNo, err)
		}
		cas = append(cas, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("cassette %s: %w", path, err)
	}
	return cas, nil
}

// Save writes the cassette to path as JSONL, replacing any existing file.
func (c Cassette) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, rec := range c {
		line, err := json.Marshal(rec)
		if err != nil {
			f.Close()
			return err
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// TerminalWrites decodes the cassette's terminal output records in order.
func (c Cassette) TerminalWrites() []TerminalWrite {
	var out []TerminalWrite
	for _, rec := range c {
		if rec.Event != TopicTerminalWrite {
			continue
		}
		var tw TerminalWrite
		if err := json.Unmarshal(rec.Data, &tw); err != nil {
			continue
		}
		out = append(out, tw)
	}
	return out
}

// Meta returns the value of the named metadata key, if recorded.
func (c Cassette) Meta(key string) (string, bool) {
	for _, rec := range c {
		if rec.Event != TopicMeta {
			continue
		}
		var kv map[string]string
		if err := json.Unmarshal(rec.Data, &kv); err != nil {
			continue
		}
		if v, ok := kv[key]; ok {
			return v, true
		}
	}
	return "", false
}

// Termination returns the recorded termination reason, if any.
func (c Cassette) Termination() (Termination, bool) {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].Event != TopicLoopTerminate {
			continue
		}
		var t Termination
		if err := json.Unmarshal(c[i].Data, &t); err != nil {
			return Termination{}, false
		}
		return t, true
	}
	return Termination{}, false
}
