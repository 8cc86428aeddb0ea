package botstream

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func logMsg(text string) Message {
	return Message{Kind: KindLog, Level: "info", Text: text, ReceivedAt: time.Now()}
}

func TestHistory_Empty(t *testing.T) {
	h := NewHistory(100)

	if h.Len() != 0 {
		t.Errorf("expected empty history, got %d", h.Len())
	}
	if snap := h.Snapshot(); len(snap) != 0 {
		t.Errorf("expected empty snapshot, got %d entries", len(snap))
	}
}

func TestHistory_NewestFirst(t *testing.T) {
	h := NewHistory(100)

	h.Push(logMsg("first"))
	h.Push(logMsg("second"))
	h.Push(logMsg("third"))

	snap := h.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(snap))
	}
	if snap[0].Text != "third" || snap[1].Text != "second" || snap[2].Text != "first" {
		t.Errorf("expected newest-first ordering, got %q, %q, %q",
			snap[0].Text, snap[1].Text, snap[2].Text)
	}
}

func TestHistory_EvictsOldest(t *testing.T) {
	h := NewHistory(100)

	for i := 0; i < 101; i++ {
		h.Push(logMsg(fmt.Sprintf("msg-%d", i)))
	}

	if h.Len() != 100 {
		t.Fatalf("expected 100 entries after overflow, got %d", h.Len())
	}

	snap := h.Snapshot()
	if snap[0].Text != "msg-100" {
		t.Errorf("expected newest entry msg-100 first, got %q", snap[0].Text)
	}
	if snap[len(snap)-1].Text != "msg-1" {
		t.Errorf("expected msg-0 evicted, oldest should be msg-1, got %q", snap[len(snap)-1].Text)
	}
}

func TestHistory_BoundProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("length never exceeds capacity", prop.ForAll(
		func(capacity int, pushes int) bool {
			h := NewHistory(capacity)
			for i := 0; i < pushes; i++ {
				h.Push(logMsg(fmt.Sprintf("m%d", i)))
			}

			want := pushes
			if want > capacity {
				want = capacity
			}
			return h.Len() == want && len(h.Snapshot()) == want
		},
		gen.IntRange(1, 50),
		gen.IntRange(0, 200),
	))

	properties.Property("snapshot head is always the latest push", prop.ForAll(
		func(capacity int, pushes int) bool {
			if pushes == 0 {
				return true
			}
			h := NewHistory(capacity)
			for i := 0; i < pushes; i++ {
				h.Push(logMsg(fmt.Sprintf("m%d", i)))
			}
			return h.Snapshot()[0].Text == fmt.Sprintf("m%d", pushes-1)
		},
		gen.IntRange(1, 50),
		gen.IntRange(0, 200),
	))

	properties.TestingRun(t)
}
