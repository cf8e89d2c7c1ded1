// Package notify holds the transient, user-visible notices the client raises:
// mutation results, assignment alerts, auth outcomes. Every notice expires on
// its own after a TTL; none of them block further interaction.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/collabtask/tasksync/internal/clock"
)

// Level classifies a notice for rendering.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// DefaultTTL is how long a notice stays up when Options.TTL is zero.
const DefaultTTL = 4 * time.Second

// Notice is one transient message.
type Notice struct {
	ID        string
	Level     Level
	Message   string
	CreatedAt time.Time
}

// Event reports a notice being posted or dismissed.
type Event struct {
	Notice    Notice
	Dismissed bool
}

// Poster is the narrow capability the rest of the client depends on.
type Poster interface {
	Post(level Level, message string) Notice
}

// Options configures a Center.
type Options struct {
	TTL    time.Duration
	Clock  clock.Clock
	Logger *slog.Logger
}

// Center keeps the currently visible notices. It is safe for concurrent use.
type Center struct {
	mu      sync.Mutex
	active  []Notice
	timers  map[string]clock.Timer
	subs    map[int]func(Event)
	nextSub int

	ttl    time.Duration
	clock  clock.Clock
	logger *slog.Logger
}

// New returns an empty Center.
func New(opts Options) *Center {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Center{
		timers: make(map[string]clock.Timer),
		subs:   make(map[int]func(Event)),
		ttl:    ttl,
		clock:  clk,
		logger: logger.With("component", "notify"),
	}
}

// Post shows a notice and schedules its dismissal. Subscribers are called
// before Post returns.
func (c *Center) Post(level Level, message string) Notice {
	n := Notice{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: c.clock.Now(),
	}

	c.mu.Lock()
	c.active = append(c.active, n)
	c.timers[n.ID] = c.clock.AfterFunc(c.ttl, func() { c.Dismiss(n.ID) })
	subs := c.subscribers()
	c.mu.Unlock()

	c.logger.Debug("posted", "level", level, "message", message)
	for _, fn := range subs {
		fn(Event{Notice: n})
	}
	return n
}

// Dismiss removes a notice early. Unknown IDs are ignored.
func (c *Center) Dismiss(id string) {
	c.mu.Lock()
	idx := -1
	for i, n := range c.active {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return
	}
	n := c.active[idx]
	c.active = append(c.active[:idx:idx], c.active[idx+1:]...)
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	subs := c.subscribers()
	c.mu.Unlock()

	for _, fn := range subs {
		fn(Event{Notice: n, Dismissed: true})
	}
}

// Active returns the visible notices, oldest first.
func (c *Center) Active() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notice, len(c.active))
	copy(out, c.active)
	return out
}

// Subscribe calls fn for every post and dismissal until cancel is called.
func (c *Center) Subscribe(fn func(Event)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Center) subscribers() []func(Event) {
	out := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		out = append(out, fn)
	}
	return out
}
