package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/collabtask/tasksync/internal/app"
	"github.com/collabtask/tasksync/internal/cache"
	"github.com/collabtask/tasksync/internal/notify"
	"github.com/collabtask/tasksync/internal/session"
	"github.com/collabtask/tasksync/internal/types"
)

func TestParseDue(t *testing.T) {
	now := time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC) // a Wednesday

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-20T17:00:00Z", time.Date(2024, 3, 20, 17, 0, 0, 0, time.UTC)},
		{"2024-03-20", time.Date(2024, 3, 20, 23, 59, 59, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseDue(tt.in, now)
		if err != nil {
			t.Errorf("parseDue(%q) error: %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseDue(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	got, err := parseDue("tomorrow", now)
	if err != nil {
		t.Fatalf("parseDue(tomorrow) error: %v", err)
	}
	if got.YearDay() != now.YearDay()+1 {
		t.Errorf("parseDue(tomorrow) = %v", got)
	}

	for _, bad := range []string{"", "   ", "blorp"} {
		if _, err := parseDue(bad, now); err == nil {
			t.Errorf("parseDue(%q) succeeded", bad)
		}
	}
}

func TestResolveAssignee(t *testing.T) {
	users := []types.User{
		{ID: "u1", Email: "alice@example.com"},
		{ID: "u2", Email: "bob@example.com"},
	}
	tests := []struct {
		ref     string
		want    string
		wantErr bool
	}{
		{"u2", "u2", false},
		{"Bob@Example.com", "u2", false},
		{"none", "", false},
		{"", "", false},
		{"carol@example.com", "", true},
	}
	for _, tt := range tests {
		got, err := resolveAssignee(users, tt.ref)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("resolveAssignee(%q) = %q, %v", tt.ref, got, err)
		}
	}
}

func TestResolveTask(t *testing.T) {
	list := []types.Task{{ID: "3f2a9c01"}, {ID: "3f2b0000"}, {ID: "9a"}}

	if got, err := resolveTask(list, "9a"); err != nil || got.ID != "9a" {
		t.Errorf("exact match = %v, %v", got.ID, err)
	}
	if got, err := resolveTask(list, "3f2a"); err != nil || got.ID != "3f2a9c01" {
		t.Errorf("prefix match = %v, %v", got.ID, err)
	}
	if _, err := resolveTask(list, "3f2"); err == nil {
		t.Error("ambiguous prefix resolved")
	}
	if _, err := resolveTask(list, "zz"); err == nil {
		t.Error("unknown id resolved")
	}
}

func TestWriteFormatted(t *testing.T) {
	task := types.Task{ID: "t1", Title: "Write report", Status: types.StatusTodo}

	var js bytes.Buffer
	if err := writeFormatted(&js, "json", task); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(js.String(), `"title": "Write report"`) {
		t.Errorf("json output:\n%s", js.String())
	}

	var ym bytes.Buffer
	if err := writeFormatted(&ym, "yaml", task); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ym.String(), "title: Write report") {
		t.Errorf("yaml output:\n%s", ym.String())
	}

	if err := writeFormatted(&js, "xml", task); err == nil {
		t.Error("unknown format accepted")
	}
}

func TestRenderDashboard(t *testing.T) {
	now := time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)
	user := &types.User{ID: "u1", Name: "Ada"}

	if got := renderDashboard(app.View{Decision: session.DecisionRedirect}, ""); !strings.Contains(got, "Not logged in") {
		t.Errorf("redirect view = %q", got)
	}

	v := app.View{
		Identity: session.Identity{Status: session.StatusAuthenticated, User: user},
		Decision: session.DecisionRender,
		Tasks: cache.View[[]types.Task]{
			HasValue: true,
			State:    cache.StateFresh,
			Value:    []types.Task{{ID: "t1", Title: "Write report", Status: types.StatusTodo, Priority: types.PriorityHigh}},
		},
		Notices: []notify.Notice{{Level: notify.LevelInfo, Message: `New task assigned: "Write report"`}},
		Live:    true,
		Now:     now,
	}
	got := renderDashboard(v, "")
	for _, want := range []string{"Good Morning, Ada!", "live", "Write report", `New task assigned: "Write report"`} {
		if !strings.Contains(got, want) {
			t.Errorf("dashboard missing %q:\n%s", want, got)
		}
	}

	// A failed refresh keeps the last list and says so.
	v.Tasks.State = cache.StateStale
	v.Tasks.Err = errors.New("connection refused")
	got = renderDashboard(v, "")
	for _, want := range []string{"Write report", "Refresh failed: connection refused"} {
		if !strings.Contains(got, want) {
			t.Errorf("stale dashboard missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "refreshing...") {
		t.Errorf("stale dashboard claims a refresh is running:\n%s", got)
	}
}
