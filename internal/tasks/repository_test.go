package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/collabtask/tasksync/internal/api"
	"github.com/collabtask/tasksync/internal/logging"
	"github.com/collabtask/tasksync/internal/types"
)

func newTestRepo(t *testing.T, h http.Handler) *HTTP {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := api.NewClient(api.Config{BaseURL: srv.URL + "/api", Logger: logging.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	return NewHTTP(c)
}

func TestListEmptyIsNotNil(t *testing.T) {
	repo := newTestRepo(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	}))
	got, err := repo.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("List() = %#v, want empty slice", got)
	}
}

func TestCreateValidatesBeforeSending(t *testing.T) {
	var hits atomic.Int32
	repo := newTestRepo(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))

	_, err := repo.Create(context.Background(), types.CreateTask{Title: "x", Priority: "LOUD", DueDate: time.Now()})
	if !errors.Is(err, types.ErrInvalidPriority) {
		t.Fatalf("Create() error = %v, want ErrInvalidPriority", err)
	}
	if hits.Load() != 0 {
		t.Fatal("invalid input reached the server")
	}
}

func TestUpdateSendsPatch(t *testing.T) {
	repo := newTestRepo(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.EscapedPath() != "/api/tasks/a%2Fb" {
			t.Errorf("got %s %s", r.Method, r.URL.EscapedPath())
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body) != 1 || body["status"] != "COMPLETED" {
			t.Errorf("patch body = %v, want only status", body)
		}
		_ = json.NewEncoder(w).Encode(types.Task{ID: "a/b", Status: types.StatusCompleted})
	}))

	status := types.StatusCompleted
	got, err := repo.Update(context.Background(), "a/b", types.UpdateTask{Status: &status})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if got.Status != types.StatusCompleted {
		t.Errorf("Update() = %+v", got)
	}
}

func TestDeleteNotFound(t *testing.T) {
	repo := newTestRepo(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Task not found"}`))
	}))

	err := repo.Delete(context.Background(), "missing")
	if !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("Delete() error = %v, want ErrNotFound", err)
	}
	if got := api.UserMessage(err, "Failed to delete task"); got != "Task not found" {
		t.Errorf("UserMessage() = %q", got)
	}
	if err := repo.Delete(context.Background(), ""); err == nil {
		t.Error("Delete(\"\") succeeded")
	}
}
