// Package session resolves who the current user is and decides what a
// protected view may show.
//
// The identity lives in a single cache entry ("me"). The gate never holds a
// copy of its own and never writes the entry: login and logout invalidate it
// and the next resolution is authoritative. Any failure to resolve, whether
// a 401 or a dropped connection, reads as "not authenticated".
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/collabtask/tasksync/internal/api"
	"github.com/collabtask/tasksync/internal/cache"
	"github.com/collabtask/tasksync/internal/notify"
	"github.com/collabtask/tasksync/internal/types"
)

// KeyMe is the cache key of the current identity.
const KeyMe cache.Key = "me"

// Status is the outcome of identity resolution.
type Status int

const (
	StatusLoading Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Identity is the gate's single read: either a user, an unauthenticated
// signal, or loading while resolution is in flight.
type Identity struct {
	Status Status
	User   *types.User
}

// UserID returns the authenticated user's ID, or "".
func (i Identity) UserID() string {
	if i.Status == StatusAuthenticated && i.User != nil {
		return i.User.ID
	}
	return ""
}

// Authenticator is the slice of the REST API the gate needs.
type Authenticator interface {
	Me(ctx context.Context) (*types.User, error)
	Login(ctx context.Context, creds types.Credentials) error
	Register(ctx context.Context, reg types.Registration) error
	Logout(ctx context.Context) error
}

// Gate is the Session Gate.
type Gate struct {
	auth    Authenticator
	me      *cache.Query[*types.User]
	notices notify.Poster
	logger  *slog.Logger
}

// New registers the identity entry on c and returns the gate. notices may
// be nil.
func New(auth Authenticator, c *cache.Cache, notices notify.Poster, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "session")

	me := cache.Register(c, KeyMe, func(ctx context.Context) (*types.User, error) {
		user, err := auth.Me(ctx)
		if err != nil {
			if api.IsUnauthorized(err) {
				logger.Debug("no active session")
			} else {
				logger.Warn("identity resolution failed", "error", err)
			}
			return nil, err
		}
		return user, nil
	})

	return &Gate{auth: auth, me: me, notices: notices, logger: logger}
}

// Current returns the identity without blocking, starting resolution if it
// has not happened yet or was invalidated.
func (g *Gate) Current() Identity {
	v, err := g.me.Get()
	if err != nil {
		return Identity{Status: StatusUnauthenticated}
	}
	return identityOf(v)
}

// Resolve blocks until resolution settles. It never returns an error: a
// cancelled ctx while still loading yields a loading identity.
func (g *Gate) Resolve(ctx context.Context) Identity {
	v, err := g.me.Load(ctx)
	if err != nil && ctx.Err() != nil {
		return identityOf(v)
	}
	if err != nil {
		return Identity{Status: StatusUnauthenticated}
	}
	return identityOf(v)
}

// Watch calls fn with the identity now and again every time resolution
// changes it. Watching keeps the identity entry observed, so an
// invalidation re-resolves immediately. Calls to fn are serialized; fn must
// not call Login, Logout or Invalidate synchronously.
func (g *Gate) Watch(fn func(Identity)) (cancel func()) {
	var mu sync.Mutex
	last := Identity{Status: -1}
	// Always read the latest entry rather than the notified snapshot so a
	// slow callback can never replay an older identity after a newer one.
	emit := func() {
		mu.Lock()
		defer mu.Unlock()
		id := identityOf(g.me.Peek())
		if sameIdentity(last, id) {
			return
		}
		last = id
		fn(id)
	}

	stop, err := g.me.Observe(func(cache.View[*types.User]) { emit() })
	if err != nil {
		mu.Lock()
		fn(Identity{Status: StatusUnauthenticated})
		mu.Unlock()
		return func() {}
	}
	emit()
	return stop
}

// Invalidate forces the identity to be re-resolved.
func (g *Gate) Invalidate() {
	g.me.Invalidate()
}

// Login authenticates and re-resolves the identity.
func (g *Gate) Login(ctx context.Context, creds types.Credentials) error {
	if err := g.auth.Login(ctx, creds); err != nil {
		g.post(notify.LevelError, api.UserMessage(err, "Login failed"))
		return fmt.Errorf("login: %w", err)
	}
	g.logger.Info("logged in", "email", creds.Email)
	g.post(notify.LevelSuccess, "Login successful")
	g.reresolve()
	return nil
}

// Register creates an account. The new user still has to log in.
func (g *Gate) Register(ctx context.Context, reg types.Registration) error {
	if err := g.auth.Register(ctx, reg); err != nil {
		g.post(notify.LevelError, api.UserMessage(err, "Registration failed"))
		return fmt.Errorf("register: %w", err)
	}
	g.logger.Info("registered", "email", reg.Email)
	g.post(notify.LevelSuccess, "Registration successful. Please login.")
	return nil
}

// Logout ends the session and re-resolves the identity, which every watcher
// then sees as unauthenticated.
func (g *Gate) Logout(ctx context.Context) error {
	if err := g.auth.Logout(ctx); err != nil {
		g.post(notify.LevelError, "Logout failed")
		return fmt.Errorf("logout: %w", err)
	}
	g.logger.Info("logged out")
	g.post(notify.LevelSuccess, "Logged out successfully")
	g.reresolve()
	return nil
}

// reresolve makes the next read hit the server. An absent entry has
// nothing to invalidate, but then the next read fetches anyway.
func (g *Gate) reresolve() {
	g.me.Invalidate()
}

func (g *Gate) post(level notify.Level, msg string) {
	if g.notices != nil {
		g.notices.Post(level, msg)
	}
}

func identityOf(v cache.View[*types.User]) Identity {
	switch {
	case v.State == cache.StateFetching && (!v.HasValue || v.Err != nil):
		return Identity{Status: StatusLoading}
	case v.Err != nil:
		return Identity{Status: StatusUnauthenticated}
	case !v.HasValue:
		return Identity{Status: StatusLoading}
	case v.Value == nil:
		return Identity{Status: StatusUnauthenticated}
	default:
		u := *v.Value
		return Identity{Status: StatusAuthenticated, User: &u}
	}
}

func sameIdentity(a, b Identity) bool {
	if a.Status != b.Status {
		return false
	}
	if a.User == nil || b.User == nil {
		return a.User == b.User
	}
	return *a.User == *b.User
}
