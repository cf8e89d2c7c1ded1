package reconcile

import (
	"context"
	"log/slog"

	"github.com/collabtask/tasksync/internal/api"
	"github.com/collabtask/tasksync/internal/notify"
	"github.com/collabtask/tasksync/internal/tasks"
	"github.com/collabtask/tasksync/internal/types"
)

// Notice texts for mutation outcomes.
const (
	MsgCreated      = "Task created successfully"
	MsgUpdated      = "Task updated successfully"
	MsgDeleted      = "Task deleted successfully"
	MsgCreateFailed = "Task creation failed"
	MsgUpdateFailed = "Task update failed"
	MsgDeleteFailed = "Failed to delete task"
)

// Commands wraps the repository's mutations with the caller side of its
// contract: invalidate the collection after a success, post a notice either
// way, and leave the cache untouched after a failure.
type Commands struct {
	repo     tasks.Repository
	taskList Invalidator
	notices  notify.Poster
	logger   *slog.Logger
}

// NewCommands returns Commands over repo. notices and logger may be nil.
func NewCommands(repo tasks.Repository, taskList Invalidator, notices notify.Poster, logger *slog.Logger) *Commands {
	if logger == nil {
		logger = slog.Default()
	}
	return &Commands{
		repo:     repo,
		taskList: taskList,
		notices:  notices,
		logger:   logger.With("component", "reconcile"),
	}
}

// Create creates a task. It waits for the server before touching the cache.
func (c *Commands) Create(ctx context.Context, input types.CreateTask) (types.Task, error) {
	task, err := c.repo.Create(ctx, input)
	if err != nil {
		c.failed("create", err, MsgCreateFailed)
		return types.Task{}, err
	}
	c.succeeded("create", task.ID, MsgCreated)
	return task, nil
}

// Update applies patch to task id.
func (c *Commands) Update(ctx context.Context, id string, patch types.UpdateTask) (types.Task, error) {
	task, err := c.repo.Update(ctx, id, patch)
	if err != nil {
		c.failed("update", err, MsgUpdateFailed)
		return types.Task{}, err
	}
	c.succeeded("update", id, MsgUpdated)
	return task, nil
}

// Delete removes task id.
func (c *Commands) Delete(ctx context.Context, id string) error {
	if err := c.repo.Delete(ctx, id); err != nil {
		c.failed("delete", err, MsgDeleteFailed)
		return err
	}
	c.succeeded("delete", id, MsgDeleted)
	return nil
}

func (c *Commands) succeeded(op, id, msg string) {
	c.logger.Info("task mutation succeeded", "op", op, "task_id", id)
	c.taskList.Invalidate()
	c.post(notify.LevelSuccess, msg)
}

func (c *Commands) failed(op string, err error, fallback string) {
	c.logger.Warn("task mutation failed", "op", op, "error", err)
	c.post(notify.LevelError, api.UserMessage(err, fallback))
}

func (c *Commands) post(level notify.Level, msg string) {
	if c.notices != nil {
		c.notices.Post(level, msg)
	}
}
