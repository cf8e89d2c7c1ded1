// Package reconcile is the glue between the task cache and everything that
// can change the server's task collection: live push events and the user's
// own mutations. Both paths end the same way. The collection entry is
// invalidated and the next read refetches it; nothing here writes a task
// into the cache directly.
package reconcile

import (
	"context"
	"log/slog"

	"github.com/collabtask/tasksync/internal/cache"
	"github.com/collabtask/tasksync/internal/live"
	"github.com/collabtask/tasksync/internal/notify"
	"github.com/collabtask/tasksync/internal/tasks"
	"github.com/collabtask/tasksync/internal/types"
)

// Cache keys owned by this package.
const (
	KeyTasks cache.Key = "tasks"
	KeyUsers cache.Key = "users"
)

// Invalidator is anything whose cached value can be marked stale.
// *cache.Query satisfies it.
type Invalidator interface {
	Invalidate()
}

// UserLister lists the users tasks can be assigned to.
type UserLister interface {
	Users(ctx context.Context) ([]types.User, error)
}

// RegisterTasks defines the task collection entry on c.
func RegisterTasks(c *cache.Cache, repo tasks.Repository) *cache.Query[[]types.Task] {
	return cache.Register(c, KeyTasks, repo.List)
}

// RegisterUsers defines the user directory entry on c.
func RegisterUsers(c *cache.Cache, users UserLister) *cache.Query[[]types.User] {
	return cache.Register(c, KeyUsers, users.Users)
}

// Handlers returns the live handlers for one subscription. Every event
// invalidates the whole task collection rather than patching the one task,
// since events can arrive out of order or describe a task already deleted
// locally; the refetch is authoritative. An assignment also raises a notice
// naming the task. notices and logger may be nil.
func Handlers(taskList Invalidator, notices notify.Poster, logger *slog.Logger) live.Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reconcile")

	return live.Handlers{
		TaskUpdated: func(t types.Task) {
			logger.Debug("task updated remotely", "task_id", t.ID)
			taskList.Invalidate()
		},
		TaskAssigned: func(t types.Task) {
			logger.Info("task assigned", "task_id", t.ID, "title", t.Title)
			taskList.Invalidate()
			if notices != nil {
				notices.Post(notify.LevelInfo, AssignedMessage(t))
			}
		},
	}
}

// AssignedMessage is the notice text for a newly assigned task.
func AssignedMessage(t types.Task) string {
	return `New task assigned: "` + t.Title + `"`
}
