package app

import (
	"context"
	"sync"
	"time"

	"github.com/collabtask/tasksync/internal/cache"
	"github.com/collabtask/tasksync/internal/notify"
	"github.com/collabtask/tasksync/internal/session"
	"github.com/collabtask/tasksync/internal/types"
)

// View is everything a dashboard shows at one moment.
type View struct {
	Identity session.Identity
	Decision session.Decision
	Tasks    cache.View[[]types.Task]
	Notices  []notify.Notice
	Live     bool
	Now      time.Time
}

// Watch keeps the dashboard current until ctx is done or the app closes.
// It follows the session identity: a signed-in user gets a live channel
// joined to their id and an observed task collection, and the channel is
// torn down or switched whenever the identity changes. render is called
// from Watch's goroutine after every change. Only one Watch may run at a
// time.
func (a *App) Watch(ctx context.Context, render func(View)) error {
	var (
		mu      sync.Mutex
		current = session.Identity{Status: session.StatusLoading}
	)
	stopIdentity := a.Session.Watch(func(id session.Identity) {
		mu.Lock()
		current = id
		mu.Unlock()
		a.poke()
	})
	defer stopIdentity()

	stopNotices := a.Notices.Subscribe(func(notify.Event) { a.poke() })
	defer stopNotices()

	var stopTasks func()
	defer func() {
		if stopTasks != nil {
			stopTasks()
		}
	}()
	defer a.mount.Unmount()

	watching := ""
	for {
		mu.Lock()
		id := current
		mu.Unlock()

		if id.Status != session.StatusLoading && id.UserID() != watching {
			if stopTasks != nil {
				stopTasks()
				stopTasks = nil
			}
			if watching != "" {
				// Never show one user's tasks to the next.
				a.Tasks.Reset()
			}
			watching = id.UserID()
			a.logger.Info("identity changed", "user_id", watching)

			if err := a.mount.SetIdentity(watching); err != nil {
				a.logger.Warn("live channel unavailable", "error", err)
			}
			if watching != "" {
				stop, err := a.Tasks.Observe(func(cache.View[[]types.Task]) { a.poke() })
				if err != nil {
					return err
				}
				stopTasks = stop
			}
		}

		render(a.view(id))

		select {
		case <-ctx.Done():
			return nil
		case <-a.ctx.Done():
			return nil
		case <-a.changed:
		}
	}
}

func (a *App) view(id session.Identity) View {
	v := View{
		Identity: id,
		Decision: session.Decide(id),
		Notices:  a.Notices.Active(),
		Live:     a.mount.Connected(),
		Now:      a.clock.Now(),
	}
	if id.Status == session.StatusAuthenticated {
		v.Tasks = a.Tasks.Peek()
	}
	return v
}
