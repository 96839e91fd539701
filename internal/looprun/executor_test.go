package looprun

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agusx1211/hatloop/internal/recording"
)

// saveCassette writes a cassette of stdout chunks to a temp file and
// returns its path.
func saveCassette(t *testing.T, lines ...string) string {
	t.Helper()
	rec := recording.New(nil)
	for _, l := range lines {
		rec.RecordTerminal([]byte(l+"\n"), true)
	}
	path := filepath.Join(t.TempDir(), "run.jsonl")
	if err := rec.Cassette().Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return path
}

func TestNewPlayerRejectsMissingCassette(t *testing.T) {
	_, err := NewPlayer([]string{filepath.Join(t.TempDir(), "absent.jsonl")}, 0, false)
	if err == nil {
		t.Fatal("expected error for missing cassette")
	}
	if !strings.Contains(err.Error(), "absent.jsonl") {
		t.Errorf("error %q does not name the missing file", err)
	}
}

func TestNewPlayerRejectsEmptyList(t *testing.T) {
	if _, err := NewPlayer(nil, 0, false); err == nil {
		t.Fatal("expected error for empty cassette list")
	}
}

func TestPlayerDrivesEngineToCompletion(t *testing.T) {
	path := saveCassette(t,
		`{"type":"message_update","assistantMessageEvent":{"type":"text_delta","delta":"replayed run `+testPromise+`"}}`,
		`{"type":"turn_end","message":{"usage":{"input":100,"output":40,"cost":{"total":0.05}}}}`,
	)
	player, err := NewPlayer([]string{path}, 0, false)
	if err != nil {
		t.Fatalf("NewPlayer: %v", err)
	}

	out := runEngine(t, Options{
		Registry:          mustRegistry(t, workerHat("worker", "task.start")),
		StartTopic:        "task.start",
		CompletionPromise: testPromise,
		Executor:          player,
	})

	if out.Reason != ReasonCompleted {
		t.Fatalf("reason = %s, want completed", out.Reason)
	}
	if out.TotalCostUSD != 0.05 {
		t.Errorf("total cost = %v, want 0.05", out.TotalCostUSD)
	}
}

func TestPlayerReportsTokenUsage(t *testing.T) {
	path := saveCassette(t,
		`{"type":"message_update","assistantMessageEvent":{"type":"text_delta","delta":"replayed run `+testPromise+`"}}`,
		`{"type":"turn_end","message":{"usage":{"input":100,"output":40,"cost":{"total":0.05}}}}`,
	)
	player, err := NewPlayer([]string{path}, 0, false)
	if err != nil {
		t.Fatalf("NewPlayer: %v", err)
	}

	rec := recording.New(nil)
	out := runEngine(t, Options{
		Registry:          mustRegistry(t, workerHat("worker", "task.start")),
		StartTopic:        "task.start",
		CompletionPromise: testPromise,
		Executor:          player,
		Recorder:          rec,
	})

	if len(out.Iterations) != 1 || out.Iterations[0].Tokens != 140 {
		t.Fatalf("iterations = %+v, want one with 140 tokens", out.Iterations)
	}

	var mark recording.IterationMark
	found := false
	for _, r := range rec.Records() {
		if r.Event != recording.TopicIterationEnd {
			continue
		}
		if err := json.Unmarshal(r.Data, &mark); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		found = true
	}
	if !found {
		t.Fatal("no iteration end record")
	}
	if mark.Tokens != 140 || mark.CostUSD != 0.05 {
		t.Fatalf("mark = %+v, want 140 tokens at 0.05", mark)
	}
}

func TestPlayerRunsOutOfCassettes(t *testing.T) {
	h := workerHat("worker", "task.start")
	h.Triggers = append(h.Triggers, "task.continue")
	h.DefaultPublish = "task.continue"

	path := saveCassette(t,
		`{"type":"message_update","assistantMessageEvent":{"type":"text_delta","delta":"no promise here"}}`,
	)
	player, err := NewPlayer([]string{path}, 0, false)
	if err != nil {
		t.Fatalf("NewPlayer: %v", err)
	}

	out := runEngine(t, Options{
		Registry:   mustRegistry(t, h),
		StartTopic: "task.start",
		Executor:   player,
	})

	// The second iteration has no cassette to replay, which is an
	// executor error, not an agent failure.
	if out.Reason != ReasonFailed {
		t.Fatalf("reason = %s, want failed", out.Reason)
	}
	if !strings.Contains(out.Detail, "cassette") {
		t.Errorf("detail = %q, want cassette exhaustion", out.Detail)
	}
}
