// Package app wires one client session together: configuration in, a
// cache-backed view of the user's tasks out, kept current by the live
// channel while something is watching.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/collabtask/tasksync/internal/api"
	"github.com/collabtask/tasksync/internal/cache"
	"github.com/collabtask/tasksync/internal/clock"
	"github.com/collabtask/tasksync/internal/config"
	"github.com/collabtask/tasksync/internal/credstore"
	"github.com/collabtask/tasksync/internal/live"
	"github.com/collabtask/tasksync/internal/notify"
	"github.com/collabtask/tasksync/internal/reconcile"
	"github.com/collabtask/tasksync/internal/session"
	"github.com/collabtask/tasksync/internal/tasks"
	"github.com/collabtask/tasksync/internal/types"
)

// Options configures New.
type Options struct {
	Config *config.Config

	// Clock defaults to the real clock.
	Clock  clock.Clock
	Logger *slog.Logger
}

// App owns every component of a client session. Close releases them.
type App struct {
	cfg    *config.Config
	clock  clock.Clock
	logger *slog.Logger

	jar   *credstore.Jar
	cache *cache.Cache

	API      *api.Client
	Notices  *notify.Center
	Session  *session.Gate
	Tasks    *cache.Query[[]types.Task]
	Users    *cache.Query[[]types.User]
	Commands *reconcile.Commands

	mount *live.Mount
	// changed is poked whenever something a dashboard renders may differ.
	changed chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// New opens the credential store and builds the component graph. Nothing
// talks to the server until a query is read.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	jar, err := credstore.Open(ctx, cfg.State.Dir, credstore.Options{Clock: clk, Logger: logger})
	if err != nil {
		return nil, err
	}

	client, err := api.NewClient(api.Config{
		BaseURL:    cfg.API.URL,
		HTTPClient: &http.Client{Jar: jar, Timeout: cfg.HTTP.Timeout},
		Logger:     logger,
	})
	if err != nil {
		_ = jar.Close()
		return nil, err
	}

	actx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:     cfg,
		clock:   clk,
		logger:  logger.With("component", "app"),
		jar:     jar,
		API:     client,
		changed: make(chan struct{}, 1),
		ctx:     actx,
		cancel:  cancel,
	}

	a.cache = cache.New(cache.Options{FetchTimeout: cfg.Cache.FetchTimeout, Clock: clk, Logger: logger})
	a.Notices = notify.New(notify.Options{TTL: cfg.Notices.TTL, Clock: clk, Logger: logger})
	a.Session = session.New(client, a.cache, a.Notices, logger)

	repo := tasks.NewHTTP(client)
	a.Tasks = reconcile.RegisterTasks(a.cache, repo)
	a.Users = reconcile.RegisterUsers(a.cache, client)
	a.Commands = reconcile.NewCommands(repo, a.Tasks, a.Notices, logger)

	a.mount = live.NewMount(actx, live.Config{
		Dialer:       &live.WSDialer{URL: cfg.Live.URL, HTTPClient: client.HTTPClient()},
		ReconnectMin: cfg.Live.ReconnectMin,
		ReconnectMax: cfg.Live.ReconnectMax,
		WriteTimeout: cfg.Live.WriteTimeout,
		OnStatus:     func(bool) { a.poke() },
		Clock:        clk,
		Logger:       logger,
	}, reconcile.Handlers(a.Tasks, a.Notices, logger))

	return a, nil
}

// Config returns the configuration the app was built with.
func (a *App) Config() *config.Config { return a.cfg }

// Clock returns the app's time source.
func (a *App) Clock() clock.Clock { return a.clock }

// Credentials returns the persisted cookie jar.
func (a *App) Credentials() *credstore.Jar { return a.jar }

// Warm resolves the identity and, for an authenticated session, loads the
// task collection and the user directory in parallel. It returns the
// resolved identity; the error is the first failed load.
func (a *App) Warm(ctx context.Context) (session.Identity, error) {
	id := a.Session.Resolve(ctx)
	if id.Status != session.StatusAuthenticated {
		return id, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := a.Tasks.Load(gctx)
		if err == nil && v.Err != nil {
			err = v.Err
		}
		if err != nil {
			return fmt.Errorf("load tasks: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		v, err := a.Users.Load(gctx)
		if err == nil && v.Err != nil {
			err = v.Err
		}
		if err != nil {
			return fmt.Errorf("load users: %w", err)
		}
		return nil
	})
	return id, g.Wait()
}

// Close stops the live channel, cancels in-flight fetches and closes the
// credential store. It is safe to call more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		a.mount.Unmount()
		a.cancel()
		_ = a.cache.Close()
		a.closeErr = a.jar.Close()
	})
	return a.closeErr
}

func (a *App) poke() {
	select {
	case a.changed <- struct{}{}:
	default:
	}
}
