// Package journal keeps a bounded window of recent snapshots so clients can
// fetch and replay a batch they missed.
package journal

import (
	"sync"
	"time"

	"boardfx/effects/contract"
)

// Keyframe is one recorded snapshot.
type Keyframe struct {
	Turn       uint64             `json:"turn"`
	Batch      string             `json:"batch"`
	Snapshot   *contract.Snapshot `json:"snapshot"`
	RecordedAt time.Time          `json:"recordedAt"`
}

// Eviction describes a keyframe dropped from the window.
type Eviction struct {
	Turn   uint64
	Reason string
}

// RecordResult reports the window after a Record call.
type RecordResult struct {
	Size    int
	Oldest  uint64
	Newest  uint64
	Evicted []Eviction
}

// Journal retains keyframes by count and age.
type Journal struct {
	mu        sync.RWMutex
	keyframes []Keyframe
	maxFrames int
	maxAge    time.Duration
	now       func() time.Time
}

// New constructs a journal holding at most capacity keyframes no older
// than maxAge. A zero maxAge disables age eviction.
func New(capacity int, maxAge time.Duration, now func() time.Time) *Journal {
	capacity = max(capacity, 0)
	maxAge = max(maxAge, 0)
	if now == nil {
		now = time.Now
	}
	return &Journal{
		keyframes: make([]Keyframe, 0, capacity),
		maxFrames: capacity,
		maxAge:    maxAge,
		now:       now,
	}
}

// Record stores snapshot, evicting by age first and then by count.
func (j *Journal) Record(snapshot *contract.Snapshot) RecordResult {
	if snapshot == nil {
		return RecordResult{}
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.maxFrames == 0 {
		j.keyframes = j.keyframes[:0]
		return RecordResult{}
	}

	data, _ := snapshot.EffectsData()
	frame := Keyframe{
		Turn:       snapshot.Ctx.Turn,
		Batch:      data.ID,
		Snapshot:   snapshot,
		RecordedAt: j.now(),
	}
	j.keyframes = append(j.keyframes, frame)

	var evicted []Eviction
	if j.maxAge > 0 {
		cutoff := frame.RecordedAt.Add(-j.maxAge)
		idx := 0
		for idx < len(j.keyframes) && j.keyframes[idx].RecordedAt.Before(cutoff) {
			evicted = append(evicted, Eviction{Turn: j.keyframes[idx].Turn, Reason: "expired"})
			idx++
		}
		j.keyframes = append(j.keyframes[:0], j.keyframes[idx:]...)
	}

	if overflow := len(j.keyframes) - j.maxFrames; overflow > 0 {
		for _, dropped := range j.keyframes[:overflow] {
			evicted = append(evicted, Eviction{Turn: dropped.Turn, Reason: "count"})
		}
		j.keyframes = append(j.keyframes[:0], j.keyframes[overflow:]...)
	}

	result := RecordResult{Size: len(j.keyframes), Evicted: evicted}
	if result.Size > 0 {
		result.Oldest = j.keyframes[0].Turn
		result.Newest = j.keyframes[result.Size-1].Turn
	}
	return result
}

// Keyframes returns a copy of the window in chronological order.
func (j *Journal) Keyframes() []Keyframe {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.keyframes) == 0 {
		return nil
	}
	return append([]Keyframe(nil), j.keyframes...)
}

// ByTurn returns the keyframe recorded for turn.
func (j *Journal) ByTurn(turn uint64) (Keyframe, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	for _, frame := range j.keyframes {
		if frame.Turn == turn {
			return frame, true
		}
	}
	return Keyframe{}, false
}

// Window reports the current retention window.
func (j *Journal) Window() (size int, oldest, newest uint64) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	size = len(j.keyframes)
	if size == 0 {
		return 0, 0, 0
	}
	return size, j.keyframes[0].Turn, j.keyframes[size-1].Turn
}
