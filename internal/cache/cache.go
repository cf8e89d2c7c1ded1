// Package cache is the client's query layer: a key-addressed store of
// server resources with invalidation-triggered refetch.
//
// Each entry moves through a small state machine:
//
//	absent -> fetching -> fresh
//	fresh  -> stale (Invalidate) -> fetching -> fresh
//	fetching -> stale on failure, keeping the last good value
//
// At most one fetch per key is in flight. Concurrent Get and Load calls
// made while a fetch is running join that fetch instead of issuing another
// request. An Invalidate during a fetch cannot trust its result, since the
// fetch may have read the server before the change being reported; it marks
// the entry dirty, and when the fetch lands its value is kept as stale and
// exactly one follow-up fetch starts, however many invalidations arrived. Values are only ever replaced by a completed
// fetch; nothing outside the package writes them.
//
// Every fetch carries a per-entry request token. Reset bumps the token, so a
// response that was issued before the reset is discarded when it lands.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/collabtask/tasksync/internal/clock"
)

// Key identifies a logical query, e.g. "me" or "tasks".
type Key string

// State is an entry's freshness.
type State int

const (
	StateAbsent State = iota
	StateFetching
	StateFresh
	StateStale
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateFetching:
		return "fetching"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

var (
	// ErrUnknownKey is returned for a key that has no registered fetcher.
	ErrUnknownKey = errors.New("cache: unknown key")

	// ErrClosed is returned once the cache has been closed.
	ErrClosed = errors.New("cache: closed")
)

// FetchFunc loads the current server value for one key.
type FetchFunc func(ctx context.Context) (any, error)

// Snapshot is a point-in-time, read-only copy of an entry.
type Snapshot struct {
	Key      Key
	Value    any
	HasValue bool
	State    State
	// Err is the error of the most recent failed fetch. It is cleared by
	// the next successful one.
	Err       error
	UpdatedAt time.Time

	// Version increases with every state change of the entry. Observers
	// never see a lower Version after a higher one.
	Version uint64
}

// Options configures a Cache.
type Options struct {
	// FetchTimeout bounds each fetch. Zero means no timeout.
	FetchTimeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Cache is the single shared store of fetched resources. It is safe for
// concurrent use.
type Cache struct {
	mu       sync.Mutex
	entries  map[Key]*entry
	fetchers map[Key]FetchFunc
	closed   bool

	fetchTimeout time.Duration
	clock        clock.Clock
	logger       *slog.Logger

	// Fetches outlive the caller that triggered them; another observer may
	// still want the result. They are cancelled only by Close.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type entry struct {
	value     any
	hasValue  bool
	state     State
	err       error
	updatedAt time.Time

	token    uint64
	inflight *call
	// dirty records an Invalidate that arrived while inflight was running.
	dirty   bool
	version uint64

	observers map[uint64]*observer
	nextObs   uint64
}

// call is the shared handle for one in-flight fetch.
type call struct {
	token uint64
	done  chan struct{}
}

type observer struct {
	fn     func(Snapshot)
	active atomic.Bool
	seen   atomic.Uint64
}

// New returns an empty cache.
func New(opts Options) *Cache {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		entries:      make(map[Key]*entry),
		fetchers:     make(map[Key]FetchFunc),
		fetchTimeout: opts.FetchTimeout,
		clock:        clk,
		logger:       logger.With("component", "cache"),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Define registers the fetcher for key. Defining a key twice replaces the
// fetcher; the cached value is kept.
func (c *Cache) Define(key Key, fetch FetchFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchers[key] = fetch
}

// Get returns the entry's current snapshot immediately and, when the entry
// is absent or stale, starts a fetch in the background.
func (c *Cache) Get(key Key) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.lookupLocked(key)
	if err != nil {
		return Snapshot{Key: key}, err
	}
	if e.state == StateAbsent || e.state == StateStale {
		c.startLocked(key, e)
	}
	return e.snapshot(key), nil
}

// Load is Get followed by a wait: it returns once the entry has settled
// (fresh, or stale after a failed fetch). A fresh entry is returned without
// fetching. Cancelling ctx stops the wait but not the shared fetch.
func (c *Cache) Load(ctx context.Context, key Key) (Snapshot, error) {
	c.mu.Lock()
	e, err := c.lookupLocked(key)
	if err != nil {
		c.mu.Unlock()
		return Snapshot{Key: key}, err
	}
	var cl *call
	if e.state != StateFresh {
		cl = c.startLocked(key, e)
	}

	for cl != nil {
		c.mu.Unlock()
		select {
		case <-cl.done:
		case <-ctx.Done():
			return c.Peek(key), ctx.Err()
		}
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return Snapshot{Key: key}, ErrClosed
		}

		// A Reset while waiting supersedes the call; follow its replacement.
		switch {
		case e.state == StateAbsent:
			cl = c.startLocked(key, e)
		case e.state == StateFetching && e.inflight != cl:
			cl = e.inflight
		default:
			cl = nil
		}
	}
	s := e.snapshot(key)
	c.mu.Unlock()
	return s, nil
}

// Peek returns the current snapshot without triggering a fetch.
func (c *Cache) Peek(key Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Snapshot{Key: key}
	}
	return e.snapshot(key)
}

// State returns the entry's freshness.
func (c *Cache) State(key Key) State {
	return c.Peek(key).State
}

// Invalidate marks the entry stale. When the entry has observers a refetch
// starts immediately; otherwise the next Get or Load fetches. Invalidating
// an entry whose fetch is already in flight schedules one follow-up fetch
// for when it completes. Invalidating an absent entry does nothing.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || c.closed {
		c.mu.Unlock()
		return
	}

	switch e.state {
	case StateAbsent:
		c.mu.Unlock()
		return
	case StateFetching:
		e.dirty = true
		c.mu.Unlock()
		c.logger.Debug("invalidated during fetch", "key", key)
		return
	case StateFresh:
		e.state = StateStale
		e.version++
	}

	if len(e.observers) > 0 {
		c.startLocked(key, e)
	}
	s, obs := e.snapshot(key), e.observerList()
	c.mu.Unlock()

	c.logger.Debug("invalidated", "key", key, "observers", len(obs))
	notify(obs, s)
}

// Reset drops the entry's value and returns it to absent. A fetch in flight
// when Reset is called is left to finish but its result is discarded.
// Observers stay registered and are notified; when there are any, a new
// fetch starts right away.
func (c *Cache) Reset(key Key) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || c.closed {
		c.mu.Unlock()
		return
	}

	e.token++
	e.inflight = nil
	e.dirty = false
	e.version++
	e.value, e.hasValue, e.err = nil, false, nil
	e.state = StateAbsent
	e.updatedAt = time.Time{}

	if len(e.observers) > 0 {
		c.startLocked(key, e)
	}
	s, obs := e.snapshot(key), e.observerList()
	c.mu.Unlock()

	c.logger.Debug("reset", "key", key)
	notify(obs, s)
}

// Observe registers fn to be called with the entry's snapshot on every
// state change, synchronously from the goroutine that caused it. Changes
// made on different goroutines can race to fn; a snapshot older than one
// fn already received is dropped, but calls are not serialized, so fn must
// be safe for concurrent use. Observing
// an absent or stale entry starts a fetch. The returned cancel function
// stops further notifications; it is safe to call more than once and from
// inside fn.
func (c *Cache) Observe(key Key, fn func(Snapshot)) (cancel func(), err error) {
	c.mu.Lock()
	e, err := c.lookupLocked(key)
	if err != nil {
		c.mu.Unlock()
		return func() {}, err
	}

	o := &observer{fn: fn}
	o.active.Store(true)
	id := e.nextObs
	e.nextObs++
	e.observers[id] = o

	if e.state == StateAbsent || e.state == StateStale {
		c.startLocked(key, e)
	}
	c.mu.Unlock()

	return func() {
		o.active.Store(false)
		c.mu.Lock()
		delete(e.observers, id)
		c.mu.Unlock()
	}, nil
}

// Observers returns the number of active observers of key.
func (c *Cache) Observers(key Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return len(e.observers)
	}
	return 0
}

// Close cancels in-flight fetches and waits for them to return. Later calls
// return ErrClosed or do nothing.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}

func (c *Cache) lookupLocked(key Key) (*entry, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if _, ok := c.fetchers[key]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	e, ok := c.entries[key]
	if !ok {
		e = &entry{observers: make(map[uint64]*observer)}
		c.entries[key] = e
	}
	return e, nil
}

// startLocked returns the in-flight call for e, starting one if needed.
func (c *Cache) startLocked(key Key, e *entry) *call {
	if e.inflight != nil {
		return e.inflight
	}

	e.token++
	cl := &call{token: e.token, done: make(chan struct{})}
	e.inflight = cl
	e.state = StateFetching
	e.version++

	fetch := c.fetchers[key]
	c.wg.Add(1)
	go c.run(key, e, cl, fetch)
	return cl
}

func (c *Cache) run(key Key, e *entry, cl *call, fetch FetchFunc) {
	defer c.wg.Done()
	defer close(cl.done)

	ctx := c.ctx
	if c.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.fetchTimeout)
		defer cancel()
	}

	start := c.clock.Now()
	value, err := fetch(ctx)

	c.mu.Lock()
	if e.inflight == cl {
		e.inflight = nil
	}
	if cl.token != e.token {
		c.mu.Unlock()
		c.logger.Debug("discarded superseded fetch", "key", key, "token", cl.token)
		return
	}

	if err != nil {
		e.err = err
		e.state = StateStale
		c.logger.Warn("fetch failed", "key", key, "error", err, "has_value", e.hasValue)
	} else {
		e.value, e.hasValue, e.err = value, true, nil
		e.state = StateFresh
		e.updatedAt = c.clock.Now()
		c.logger.Debug("fetched", "key", key, "duration", e.updatedAt.Sub(start))
	}
	e.version++
	s, obs := e.snapshot(key), e.observerList()

	var next Snapshot
	refetch := e.dirty && !c.closed
	if refetch {
		// The result may predate the change that invalidated it.
		e.dirty = false
		e.state = StateStale
		s.State = StateStale
		c.startLocked(key, e)
		next = e.snapshot(key)
	}
	c.mu.Unlock()

	notify(obs, s)
	if refetch {
		c.logger.Debug("refetching after invalidation during fetch", "key", key)
		notify(obs, next)
	}
}

func (e *entry) snapshot(key Key) Snapshot {
	return Snapshot{
		Key:       key,
		Value:     e.value,
		HasValue:  e.hasValue,
		State:     e.state,
		Err:       e.err,
		UpdatedAt: e.updatedAt,
		Version:   e.version,
	}
}

func (e *entry) observerList() []*observer {
	out := make([]*observer, 0, len(e.observers))
	for _, o := range e.observers {
		out = append(out, o)
	}
	return out
}

func notify(obs []*observer, s Snapshot) {
	for _, o := range obs {
		if o.active.Load() && o.advance(s.Version) {
			o.fn(s)
		}
	}
}

// advance records v as delivered unless a later version already was.
func (o *observer) advance(v uint64) bool {
	for {
		seen := o.seen.Load()
		if v < seen {
			return false
		}
		if o.seen.CompareAndSwap(seen, v) {
			return true
		}
	}
}
