// Package tasks is the typed façade over the task CRUD endpoints.
//
// The repository performs exactly one round trip per call and never retries.
// It knows nothing about the client cache: after a successful Create, Update
// or Delete the caller must invalidate the task collection itself, and after
// a failed one it must not.
package tasks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/collabtask/tasksync/internal/api"
	"github.com/collabtask/tasksync/internal/types"
)

// Repository is the remote task collection.
type Repository interface {
	List(ctx context.Context) ([]types.Task, error)
	Create(ctx context.Context, input types.CreateTask) (types.Task, error)
	Update(ctx context.Context, id string, patch types.UpdateTask) (types.Task, error)
	Delete(ctx context.Context, id string) error
}

// HTTP implements Repository against the REST API.
type HTTP struct {
	client *api.Client
}

// NewHTTP returns a Repository backed by client.
func NewHTTP(client *api.Client) *HTTP {
	return &HTTP{client: client}
}

// List fetches every task visible to the session.
func (r *HTTP) List(ctx context.Context) ([]types.Task, error) {
	var tasks []types.Task
	if err := r.client.Do(ctx, http.MethodGet, "/tasks", nil, &tasks); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []types.Task{}
	}
	return tasks, nil
}

// Create validates input locally and then posts it.
func (r *HTTP) Create(ctx context.Context, input types.CreateTask) (types.Task, error) {
	if err := input.Validate(); err != nil {
		return types.Task{}, fmt.Errorf("create task: %w", err)
	}
	var task types.Task
	if err := r.client.Do(ctx, http.MethodPost, "/tasks", input, &task); err != nil {
		return types.Task{}, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// Update sends a partial update for one task.
func (r *HTTP) Update(ctx context.Context, id string, patch types.UpdateTask) (types.Task, error) {
	if id == "" {
		return types.Task{}, fmt.Errorf("update task: id is required")
	}
	if err := patch.Validate(); err != nil {
		return types.Task{}, fmt.Errorf("update task %s: %w", id, err)
	}
	var task types.Task
	if err := r.client.Do(ctx, http.MethodPatch, taskPath(id), patch, &task); err != nil {
		return types.Task{}, fmt.Errorf("update task %s: %w", id, err)
	}
	return task, nil
}

// Delete removes one task.
func (r *HTTP) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("delete task: id is required")
	}
	if err := r.client.Do(ctx, http.MethodDelete, taskPath(id), nil, nil); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

func taskPath(id string) string {
	return "/tasks/" + url.PathEscape(id)
}
