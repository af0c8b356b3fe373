package testutil

import (
	"testing"
	"time"

	"github.com/hupe1980/toolchat/core"
)

// Collect drains a stream until it is closed, failing the test if that takes
// longer than timeout.
func Collect(t testing.TB, events <-chan core.StreamEvent, timeout time.Duration) []core.StreamEvent {
	t.Helper()

	deadline := time.After(timeout)
	var out []core.StreamEvent
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("stream not closed within %s (got %d events)", timeout, len(out))
			return out
		}
	}
}

// Terminal returns the last event of a collected stream.
func Terminal(t testing.TB, events []core.StreamEvent) core.StreamEvent {
	t.Helper()
	if len(events) == 0 {
		t.Fatal("empty stream")
	}
	return events[len(events)-1]
}

// Text concatenates all TextDelta fragments of a collected stream.
func Text(events []core.StreamEvent) string {
	var s string
	for _, ev := range events {
		if d, ok := ev.(core.TextDelta); ok {
			s += d.Text
		}
	}
	return s
}

// OfType filters a collected stream to events of type T.
func OfType[T core.StreamEvent](events []core.StreamEvent) []T {
	var out []T
	for _, ev := range events {
		if v, ok := ev.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
