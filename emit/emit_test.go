package emit

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestBufferedEmitterHistoryIsPerFeedAndOrdered(t *testing.T) {
	b := NewBufferedEmitter()
	b.Emit(Event{FeedName: "feed-a", Stage: StageFetch, Msg: "first"})
	b.Emit(Event{FeedName: "feed-b", Stage: StageFetch, Msg: "other-feed"})
	b.Emit(Event{FeedName: "feed-a", Stage: StageStore, Msg: "second"})

	history := b.History("feed-a")
	if len(history) != 2 || history[0].Msg != "first" || history[1].Msg != "second" {
		t.Fatalf("History(feed-a) = %+v, want [first, second]", history)
	}
	if len(b.History("feed-b")) != 1 {
		t.Fatalf("History(feed-b) should be isolated from feed-a")
	}
}

func TestBufferedEmitterEmitBatchAppendsInOrder(t *testing.T) {
	b := NewBufferedEmitter()
	events := []Event{
		{FeedName: "feed-a", Msg: "one"},
		{FeedName: "feed-a", Msg: "two"},
	}
	if err := b.EmitBatch(context.Background(), events); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	history := b.History("feed-a")
	if len(history) != 2 || history[0].Msg != "one" || history[1].Msg != "two" {
		t.Fatalf("History(feed-a) = %+v, want [one, two]", history)
	}
}

func TestBufferedEmitterClearScopesToFeedWhenGiven(t *testing.T) {
	b := NewBufferedEmitter()
	b.Emit(Event{FeedName: "feed-a", Msg: "x"})
	b.Emit(Event{FeedName: "feed-b", Msg: "y"})

	b.Clear("feed-a")
	if len(b.History("feed-a")) != 0 {
		t.Fatal("Clear(feed-a) should remove only feed-a's events")
	}
	if len(b.History("feed-b")) != 1 {
		t.Fatal("Clear(feed-a) should not affect feed-b's events")
	}

	b.Clear("")
	if len(b.History("feed-b")) != 0 {
		t.Fatal("Clear(\"\") should discard every feed's events")
	}
}

func TestNullEmitterDiscardsEverything(t *testing.T) {
	n := Null()
	n.Emit(Event{Msg: "ignored"})
	if err := n.EmitBatch(context.Background(), []Event{{Msg: "ignored"}}); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	if err := n.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func TestLogEmitterTextModeIncludesStageAndMsg(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf, false)
	l.Emit(Event{FeedName: "feed-a", RunID: "run-1", Stage: StageFetch, Msg: "record_new"})

	out := buf.String()
	if !strings.Contains(out, "feed=feed-a") || !strings.Contains(out, "msg=record_new") || !strings.Contains(out, "[fetch]") {
		t.Fatalf("LogEmitter text output = %q, missing expected fields", out)
	}
}

func TestLogEmitterJSONModeProducesValidJSONLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf, true)
	l.Emit(Event{FeedName: "feed-a", Stage: StageStore, Msg: "stored", Meta: map[string]interface{}{"id": "r1"}})

	out := buf.String()
	if !strings.Contains(out, `"feedName":"feed-a"`) || !strings.Contains(out, `"msg":"stored"`) {
		t.Fatalf("LogEmitter JSON output = %q, missing expected fields", out)
	}
}

func TestLogEmitterEmitBatchWritesEveryEvent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogEmitter(&buf, false)
	events := []Event{{Msg: "one"}, {Msg: "two"}}
	if err := l.EmitBatch(context.Background(), events); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	if strings.Count(buf.String(), "\n") != 2 {
		t.Fatalf("EmitBatch wrote %d lines, want 2", strings.Count(buf.String(), "\n"))
	}
}
