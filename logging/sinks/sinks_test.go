package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"boardfx/logging"
)

func TestConsoleWritesTypeBatchAndPayload(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsole(&buf)
	err := sink.Write(logging.Event{
		Type:     "playback.effect_started",
		Turn:     3,
		Batch:    "abcd1234",
		Actor:    logging.EntityRef{ID: "roll", Kind: logging.EntityKindEffect},
		Severity: logging.SeverityInfo,
		Payload:  map[string]int{"roll": 6},
	})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	line := buf.String()
	for _, want := range []string{"[playback.effect_started]", "turn=3", "batch=abcd1234", "actor=effect:roll", "severity=info", `payload={"roll":6}`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestJSONAutoFlushEncodesRecord(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, 0)
	when := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := sink.Write(logging.Event{Type: "transition.flushed", Turn: 1, Time: when, Severity: logging.SeverityWarn}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode failed: %v (%q)", err, buf.String())
	}
	if record["type"] != "transition.flushed" {
		t.Fatalf("unexpected type %v", record["type"])
	}
	if record["severity"] != "warn" {
		t.Fatalf("unexpected severity %v", record["severity"])
	}
	if record["time"] != "2024-01-02T03:04:05Z" {
		t.Fatalf("unexpected time %v", record["time"])
	}
}

func TestJSONBufferedUntilClose(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, time.Hour)
	if err := sink.Write(logging.Event{Type: "x"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected buffered output before close, got %q", buf.String())
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected close to flush buffered output")
	}
}

func TestMemoryCopiesExtra(t *testing.T) {
	sink := NewMemory()
	extra := map[string]any{"k": 1}
	sink.Publish(context.Background(), logging.Event{Type: "a", Extra: extra})
	extra["k"] = 2

	events := sink.Events()
	if len(events) != 1 || events[0].Extra["k"] != 1 {
		t.Fatalf("expected stored copy, got %+v", events)
	}
	sink.Reset()
	if len(sink.Types()) != 0 {
		t.Fatal("expected reset to clear events")
	}
}
