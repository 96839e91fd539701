package recording

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agusx1211/hatloop/internal/stream"
)

type replayObserver struct {
	texts   []string
	results []string
	errors  []string
}

func (o *replayObserver) OnText(text string)                              { o.texts = append(o.texts, text) }
func (o *replayObserver) OnToolCall(id, name string, _ json.RawMessage)   {}
func (o *replayObserver) OnToolResult(id, result string)                  { o.results = append(o.results, result) }
func (o *replayObserver) OnError(message string)                          { o.errors = append(o.errors, message) }
func (o *replayObserver) OnComplete(stream.Result)                        {}

func terminalRecord(t *testing.T, data string, stdout bool, offset int64) Record {
	t.Helper()
	rec, err := newRecord(TopicTerminalWrite, TerminalWrite{
		Bytes:    []byte(data),
		Stdout:   stdout,
		OffsetMS: offset,
	})
	if err != nil {
		t.Fatalf("newRecord: %v", err)
	}
	return rec
}

func TestReplayFeedsStdoutThroughParser(t *testing.T) {
	cas := Cassette{
		// A line split across two writes must still parse as one line.
		terminalRecord(t, `{"type":"message_update","assistantMessageEvent":`, true, 0),
		terminalRecord(t, `{"type":"text_delta","delta":"hi"}}`+"\n", true, 5),
		terminalRecord(t, "stderr noise\n", false, 6),
		terminalRecord(t, `{"type":"turn_end","message":{"usage":{"input":1,"output":2,"cost":{"total":0.25}}}}`+"\n", true, 10),
	}

	p, err := stream.ParserFor(stream.BackendPi)
	if err != nil {
		t.Fatalf("ParserFor: %v", err)
	}

	obs := &replayObserver{}
	var st stream.SessionState
	rp := &Replayer{Speed: 0}
	if err := rp.Replay(context.Background(), cas, p, obs, &st, false); err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if len(obs.texts) != 1 || obs.texts[0] != "hi" {
		t.Fatalf("texts = %v, want [hi]", obs.texts)
	}
	if st.TurnCount != 1 || st.TotalCostUSD != 0.25 {
		t.Fatalf("state = %+v, want 1 turn at 0.25", st)
	}
	if st.ExtractedText() != "hi" {
		t.Fatalf("extracted = %q", st.ExtractedText())
	}
}

// Replaying the same cassette twice must reproduce identical state.
func TestReplayIsDeterministic(t *testing.T) {
	cas := Cassette{
		terminalRecord(t, `{"type":"message_update","assistantMessageEvent":{"type":"text_delta","delta":"a"}}`+"\n", true, 0),
		terminalRecord(t, `{"type":"message_update","assistantMessageEvent":{"type":"text_delta","delta":"b"}}`+"\n", true, 1),
		terminalRecord(t, `{"type":"turn_end","message":{"usage":{"cost":{"total":0.1}}}}`+"\n", true, 2),
	}

	p, err := stream.ParserFor(stream.BackendPi)
	if err != nil {
		t.Fatalf("ParserFor: %v", err)
	}

	run := func() (stream.SessionState, []string) {
		obs := &replayObserver{}
		var st stream.SessionState
		if err := (&Replayer{}).Replay(context.Background(), cas, p, obs, &st, false); err != nil {
			t.Fatalf("Replay: %v", err)
		}
		return st, obs.texts
	}

	st1, texts1 := run()
	st2, texts2 := run()
	if st1.ExtractedText() != st2.ExtractedText() || st1.TotalCostUSD != st2.TotalCostUSD || st1.TurnCount != st2.TurnCount {
		t.Fatalf("replays diverged: %+v vs %+v", st1, st2)
	}
	if len(texts1) != len(texts2) {
		t.Fatalf("text sequences diverged: %v vs %v", texts1, texts2)
	}
	if st1.ExtractedText() != "ab" {
		t.Fatalf("extracted = %q, want ab", st1.ExtractedText())
	}
}

// Cassettes captured under a pseudo-terminal carry the raw escape
// sequences; replay must strip them per line like the live read loop.
func TestReplayStripsEscapesFromPTYCassettes(t *testing.T) {
	meta, err := newRecord(TopicMeta, map[string]string{MetaPTY: "true"})
	if err != nil {
		t.Fatalf("newRecord: %v", err)
	}
	line := "\x1b[2m" +
		`{"type":"message_update","assistantMessageEvent":{"type":"text_delta","delta":"hi"}}` +
		"\x1b[0m\r\n"
	cas := Cassette{
		meta,
		terminalRecord(t, line, true, 0),
	}

	p, err := stream.ParserFor(stream.BackendPi)
	if err != nil {
		t.Fatalf("ParserFor: %v", err)
	}
	obs := &replayObserver{}
	var st stream.SessionState
	if err := (&Replayer{}).Replay(context.Background(), cas, p, obs, &st, false); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(obs.texts) != 1 || obs.texts[0] != "hi" {
		t.Fatalf("texts = %v, want [hi]", obs.texts)
	}
	if st.ExtractedText() != "hi" {
		t.Fatalf("extracted = %q, want hi", st.ExtractedText())
	}
}

func TestReplayFinalUnterminatedLine(t *testing.T) {
	cas := Cassette{
		terminalRecord(t, `{"type":"message_update","assistantMessageEvent":{"type":"text_delta","delta":"tail"}}`, true, 0),
	}

	p, err := stream.ParserFor(stream.BackendPi)
	if err != nil {
		t.Fatalf("ParserFor: %v", err)
	}
	obs := &replayObserver{}
	var st stream.SessionState
	if err := (&Replayer{}).Replay(context.Background(), cas, p, obs, &st, false); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if st.ExtractedText() != "tail" {
		t.Fatalf("extracted = %q, want tail", st.ExtractedText())
	}
}

func TestReplayHonorsCancellation(t *testing.T) {
	cas := Cassette{
		terminalRecord(t, "line\n", true, 0),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := stream.ParserFor(stream.BackendPi)
	if err != nil {
		t.Fatalf("ParserFor: %v", err)
	}
	var st stream.SessionState
	if err := (&Replayer{}).Replay(ctx, cas, p, &replayObserver{}, &st, false); err == nil {
		t.Fatal("Replay with cancelled context should fail")
	}
}
