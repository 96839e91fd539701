package recording

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Recorder captures a session's records in memory and streams them to an
// optional sink as JSONL. One Recorder serves one orchestration loop; its
// sink is single-writer.
type Recorder struct {
	started time.Time

	mu      sync.Mutex
	records []Record
	sink    io.Writer
}

// New creates a Recorder. sink may be nil for in-memory recording only.
func New(sink io.Writer) *Recorder {
	return &Recorder{
		started: time.Now(),
		sink:    sink,
	}
}

// RecordTerminal records a chunk of raw process output. stdout is false
// for stderr chunks.
func (r *Recorder) RecordTerminal(data []byte, stdout bool) {
	cp := make([]byte, len(data))
	copy(cp, data)
	r.Append(TopicTerminalWrite, TerminalWrite{
		Bytes:    cp,
		Stdout:   stdout,
		OffsetMS: time.Since(r.started).Milliseconds(),
	})
}

// RecordMeta records a metadata key-value pair.
func (r *Recorder) RecordMeta(key, value string) {
	r.Append(TopicMeta, map[string]string{key: value})
}

// Append records an arbitrary payload under the given topic. Marshal
// failures drop the record; sink write failures are non-fatal so a full
// disk never interrupts a running agent.
func (r *Recorder) Append(event string, data any) {
	rec, err := newRecord(event, data)
	if err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	if r.sink != nil {
		if line, err := json.Marshal(rec); err == nil {
			_, _ = r.sink.Write(append(line, '\n'))
		}
	}
}

// Records returns a snapshot of all records appended so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]Record, len(r.records))
	copy(cp, r.records)
	return cp
}

// Cassette returns the session recorded so far as a Cassette.
func (r *Recorder) Cassette() Cassette {
	return Cassette(r.Records())
}

// WrapWriter returns an io.Writer that writes to w and simultaneously
// records every chunk as a terminal write. This lets process output reach
// both the display and the cassette.
func (r *Recorder) WrapWriter(w io.Writer, stdout bool) io.Writer {
	return &recordingWriter{recorder: r, inner: w, stdout: stdout}
}

type recordingWriter struct {
	recorder *Recorder
	inner    io.Writer
	stdout   bool
}

func (rw *recordingWriter) Write(p []byte) (int, error) {
	rw.recorder.RecordTerminal(p, rw.stdout)
	if rw.inner != nil {
		return rw.inner.Write(p)
	}
	return len(p), nil
}
