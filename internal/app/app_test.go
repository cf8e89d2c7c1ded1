package app

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/collabtask/tasksync/internal/config"
	"github.com/collabtask/tasksync/internal/devserver"
	"github.com/collabtask/tasksync/internal/logging"
	"github.com/collabtask/tasksync/internal/reconcile"
	"github.com/collabtask/tasksync/internal/session"
	"github.com/collabtask/tasksync/internal/types"
)

func startServer(t *testing.T) *devserver.Server {
	t.Helper()
	s := devserver.New(devserver.Config{Addr: "127.0.0.1:0", BcryptCost: bcrypt.MinCost, Logger: logging.Discard()})
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func testConfig(s *devserver.Server, stateDir string) *config.Config {
	cfg := config.Default()
	cfg.API.URL = s.APIURL()
	cfg.Live.URL = s.SocketURL()
	cfg.Live.ReconnectMin = 50 * time.Millisecond
	cfg.Live.ReconnectMax = 200 * time.Millisecond
	cfg.State.Dir = stateDir
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), Options{Config: cfg, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// signUp registers and logs in through the session gate.
func signUp(t *testing.T, a *App, name, email string) types.User {
	t.Helper()
	ctx := context.Background()
	if err := a.Session.Register(ctx, types.Registration{Email: email, Password: "secret1", Name: name}); err != nil {
		t.Fatalf("Register(%s) error: %v", email, err)
	}
	if err := a.Session.Login(ctx, types.Credentials{Email: email, Password: "secret1"}); err != nil {
		t.Fatalf("Login(%s) error: %v", email, err)
	}
	id := a.Session.Resolve(ctx)
	if id.Status != session.StatusAuthenticated {
		t.Fatalf("identity after login = %v", id.Status)
	}
	return *id.User
}

// watch runs a.Watch in the background and returns its views.
func watch(t *testing.T, a *App) <-chan View {
	t.Helper()
	views := make(chan View, 64)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.Watch(ctx, func(v View) {
			select {
			case views <- v:
			default:
			}
		})
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return views
}

func waitView(t *testing.T, views <-chan View, what string, ok func(View) bool) View {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case v := <-views:
			if ok(v) {
				return v
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", what)
			return View{}
		}
	}
}

func TestWarmAndPersistedSession(t *testing.T) {
	s := startServer(t)
	dir := t.TempDir()
	ctx := context.Background()

	a, err := New(ctx, Options{Config: testConfig(s, dir), Logger: logging.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	id, err := a.Warm(ctx)
	if err != nil || id.Status != session.StatusUnauthenticated {
		t.Fatalf("Warm() before login = %v, %v", id.Status, err)
	}
	user := signUp(t, a, "Ada", "ada@example.com")
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	// A fresh app over the same state dir is still signed in.
	b := newApp(t, testConfig(s, dir))
	id, err = b.Warm(ctx)
	if err != nil {
		t.Fatalf("Warm() error: %v", err)
	}
	if id.Status != session.StatusAuthenticated || id.UserID() != user.ID {
		t.Fatalf("Warm() identity = %+v, want %s", id, user.ID)
	}
	if v := b.Tasks.Peek(); !v.HasValue || len(v.Value) != 0 {
		t.Errorf("tasks after Warm = %+v, want empty collection", v)
	}
	if v := b.Users.Peek(); !v.HasValue || len(v.Value) != 1 {
		t.Errorf("users after Warm = %+v, want one user", v)
	}
}

func TestWatchDeliversAssignment(t *testing.T) {
	s := startServer(t)
	alice := newApp(t, testConfig(s, t.TempDir()))
	bob := newApp(t, testConfig(s, t.TempDir()))
	signUp(t, alice, "Alice", "alice@example.com")
	bobUser := signUp(t, bob, "Bob", "bob@example.com")

	views := watch(t, bob)
	waitView(t, views, "bob's channel to join", func(v View) bool {
		return v.Decision == session.DecisionRender && v.Live
	})

	created, err := alice.Commands.Create(context.Background(), types.CreateTask{
		Title:        "Write report",
		DueDate:      time.Now().Add(24 * time.Hour),
		Priority:     types.PriorityHigh,
		AssignedToID: bobUser.ID,
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	v := waitView(t, views, "the assigned task", func(v View) bool {
		if !v.Tasks.HasValue || len(v.Tasks.Value) != 1 {
			return false
		}
		for _, n := range v.Notices {
			if n.Message == reconcile.AssignedMessage(created) {
				return true
			}
		}
		return false
	})
	if got := v.Tasks.Value[0]; got.ID != created.ID || got.Title != "Write report" {
		t.Errorf("bob's task = %+v", got)
	}
}

func TestWatchFollowsLogout(t *testing.T) {
	s := startServer(t)
	a := newApp(t, testConfig(s, t.TempDir()))
	signUp(t, a, "Ada", "ada@example.com")

	views := watch(t, a)
	waitView(t, views, "the dashboard", func(v View) bool {
		return v.Decision == session.DecisionRender && v.Live && v.Tasks.HasValue
	})

	if err := a.Session.Logout(context.Background()); err != nil {
		t.Fatalf("Logout() error: %v", err)
	}
	v := waitView(t, views, "the redirect", func(v View) bool {
		return v.Decision == session.DecisionRedirect && !v.Live
	})
	if v.Tasks.HasValue {
		t.Errorf("tasks still visible after logout: %+v", v.Tasks.Value)
	}
	if n, err := a.Credentials().Count(context.Background()); err != nil || n != 0 {
		t.Errorf("stored cookies after logout = %d, %v", n, err)
	}
}
