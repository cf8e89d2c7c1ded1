package notify

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/collabtask/tasksync/internal/clock"
)

func TestCenter_PostExpires(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	c := New(Options{
		TTL:    4 * time.Second,
		Clock:  fake,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	var events []Event
	cancel := c.Subscribe(func(e Event) { events = append(events, e) })
	defer cancel()

	first := c.Post(LevelInfo, `New task assigned: "X"`)
	fake.Advance(2 * time.Second)
	second := c.Post(LevelSuccess, "Task created successfully")

	if got := c.Active(); len(got) != 2 {
		t.Fatalf("Active() = %d notices, want 2", len(got))
	}

	fake.Advance(2 * time.Second)
	active := c.Active()
	if len(active) != 1 || active[0].ID != second.ID {
		t.Fatalf("after first TTL Active() = %+v, want only the second notice", active)
	}

	fake.Advance(2 * time.Second)
	if got := c.Active(); len(got) != 0 {
		t.Fatalf("Active() = %+v, want empty", got)
	}

	if len(events) != 4 {
		t.Fatalf("got %d events, want 4 (2 posts, 2 dismissals)", len(events))
	}
	if events[0].Notice.ID != first.ID || events[0].Dismissed {
		t.Errorf("events[0] = %+v", events[0])
	}
	if !events[2].Dismissed || events[2].Notice.ID != first.ID {
		t.Errorf("events[2] = %+v, want dismissal of first", events[2])
	}
}

func TestCenter_DismissEarly(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	c := New(Options{Clock: fake, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	n := c.Post(LevelError, "Failed to delete task")
	c.Dismiss(n.ID)
	c.Dismiss(n.ID)
	c.Dismiss("unknown")

	if got := c.Active(); len(got) != 0 {
		t.Fatalf("Active() = %+v, want empty", got)
	}
	if fake.Pending() != 0 {
		t.Errorf("expiry timer still pending after Dismiss")
	}
}
