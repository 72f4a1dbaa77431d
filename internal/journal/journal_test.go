package journal

import (
	"testing"
	"time"

	"boardfx/effects/contract"
)

func snapshotAt(turn uint64, batch string) *contract.Snapshot {
	return &contract.Snapshot{
		Ctx:     contract.SnapshotCtx{Turn: turn},
		Plugins: contract.Plugins{Effects: &contract.PluginState{Data: contract.Data{ID: batch}}},
	}
}

func TestJournalEvictsByCount(t *testing.T) {
	j := New(2, 0, nil)
	j.Record(snapshotAt(1, "a"))
	j.Record(snapshotAt(2, "b"))
	result := j.Record(snapshotAt(3, "c"))

	if result.Size != 2 || result.Oldest != 2 || result.Newest != 3 {
		t.Fatalf("unexpected window %+v", result)
	}
	if len(result.Evicted) != 1 || result.Evicted[0].Turn != 1 || result.Evicted[0].Reason != "count" {
		t.Fatalf("unexpected evictions %+v", result.Evicted)
	}
	if _, ok := j.ByTurn(1); ok {
		t.Fatal("expected turn 1 to be evicted")
	}
	frame, ok := j.ByTurn(3)
	if !ok || frame.Batch != "c" {
		t.Fatalf("expected turn 3 batch c, got %+v", frame)
	}
}

func TestJournalEvictsByAge(t *testing.T) {
	now := time.Unix(100, 0)
	j := New(10, 5*time.Second, func() time.Time { return now })
	j.Record(snapshotAt(1, "a"))
	now = now.Add(3 * time.Second)
	j.Record(snapshotAt(2, "b"))
	now = now.Add(3 * time.Second)
	result := j.Record(snapshotAt(3, "c"))

	if len(result.Evicted) != 1 || result.Evicted[0].Reason != "expired" {
		t.Fatalf("expected one expiry, got %+v", result.Evicted)
	}
	size, oldest, newest := j.Window()
	if size != 2 || oldest != 2 || newest != 3 {
		t.Fatalf("unexpected window %d %d %d", size, oldest, newest)
	}
}

func TestJournalZeroCapacityRecordsNothing(t *testing.T) {
	j := New(0, 0, nil)
	if result := j.Record(snapshotAt(1, "a")); result.Size != 0 {
		t.Fatalf("expected empty window, got %+v", result)
	}
	if j.Keyframes() != nil {
		t.Fatal("expected no keyframes")
	}
	if result := j.Record(nil); result.Size != 0 {
		t.Fatal("expected nil snapshot to be ignored")
	}
}

func TestJournalKeyframesIsACopy(t *testing.T) {
	j := New(3, 0, nil)
	j.Record(snapshotAt(1, "a"))
	frames := j.Keyframes()
	frames[0].Batch = "mutated"
	if frame, _ := j.ByTurn(1); frame.Batch != "a" {
		t.Fatal("expected journal to be unaffected by caller mutation")
	}
}
