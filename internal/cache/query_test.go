package cache

import (
	"context"
	"errors"
	"testing"
)

type user struct{ Name string }

func TestQuery_TypedViews(t *testing.T) {
	c := newTestCache(t)

	authenticated := true
	q := Register(c, "me", func(context.Context) (*user, error) {
		if !authenticated {
			return nil, nil
		}
		return &user{Name: "ada"}, nil
	})

	if v := q.Peek(); !v.Loading() {
		t.Fatalf("Peek() before any fetch = %+v, want loading", v)
	}

	v, err := q.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if v.Value == nil || v.Value.Name != "ada" || v.State != StateFresh {
		t.Fatalf("Load() = %+v", v)
	}

	authenticated = false
	q.Invalidate()
	v, err = q.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !v.HasValue || v.Value != nil {
		t.Fatalf("Load() after logout = %+v, want a nil user value", v)
	}
}

func TestQuery_ObserveAndError(t *testing.T) {
	c := newTestCache(t)
	boom := errors.New("boom")
	q := Register(c, "tasks", func(context.Context) ([]string, error) { return nil, boom })

	got := make(chan View[[]string], 4)
	cancel, err := q.Observe(func(v View[[]string]) { got <- v })
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	v := <-got
	if !errors.Is(v.Err, boom) || v.State != StateStale || v.Loading() {
		t.Fatalf("observed %+v, want stale with error", v)
	}
	if q.Key() != "tasks" {
		t.Errorf("Key() = %q", q.Key())
	}
}
