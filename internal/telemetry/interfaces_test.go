package telemetry

import (
	"bytes"
	"log"
	"reflect"
	"strings"
	"testing"
)

func TestWrapLogger(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		WrapLogger(nil).Printf("ignored %d", 1)
	})

	t.Run("forwards", func(t *testing.T) {
		var buf bytes.Buffer
		WrapLogger(log.New(&buf, "", 0)).Printf("hello %s", "world")
		if strings.TrimSpace(buf.String()) != "hello world" {
			t.Fatalf("unexpected output %q", buf.String())
		}
	})
}

func TestLoggerFuncNil(t *testing.T) {
	var f LoggerFunc
	f.Printf("ignored")
}

func TestCounters(t *testing.T) {
	c := NewCounters()
	c.Add("moves", 2)
	c.Add("moves", 3)
	c.Store("queue", 7)
	c.Store("queue", 4)
	if c.Get("moves") != 5 || c.Get("queue") != 4 {
		t.Fatalf("unexpected values %v", c.Snapshot())
	}
	if !reflect.DeepEqual(c.Keys(), []string{"moves", "queue"}) {
		t.Fatalf("unexpected keys %v", c.Keys())
	}
	var nilCounters *Counters
	nilCounters.Add("x", 1)
	if nilCounters.Get("x") != 0 {
		t.Fatal("expected nil counters to read zero")
	}
}
