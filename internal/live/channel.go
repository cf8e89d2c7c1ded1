package live

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/collabtask/tasksync/internal/clock"
	"github.com/collabtask/tasksync/internal/types"
)

var (
	// ErrNoIdentity is returned when dialing without a user ID. No
	// connection is ever opened for an unknown user.
	ErrNoIdentity = errors.New("live: no identity")

	// ErrNoDialer is returned when Config.Dialer is nil.
	ErrNoDialer = errors.New("live: no dialer")
)

// Default reconnect and write settings.
const (
	DefaultReconnectMin = 500 * time.Millisecond
	DefaultReconnectMax = 30 * time.Second
	DefaultWriteTimeout = 5 * time.Second
)

// Config configures a Channel.
type Config struct {
	Dialer Dialer

	// ReconnectMin is the first backoff delay after a dropped connection.
	// The delay doubles per consecutive failure up to ReconnectMax.
	ReconnectMin time.Duration
	ReconnectMax time.Duration

	// WriteTimeout bounds the join emit.
	WriteTimeout time.Duration

	// OnStatus, if set, is called with true once a connection is joined and
	// with false when it drops.
	OnStatus func(connected bool)

	Clock  clock.Clock
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = DefaultReconnectMin
	}
	if c.ReconnectMax < c.ReconnectMin {
		c.ReconnectMax = DefaultReconnectMax
		if c.ReconnectMax < c.ReconnectMin {
			c.ReconnectMax = c.ReconnectMin
		}
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Channel is one user's subscription. It reconnects until closed and joins
// the user's room on every connection.
type Channel struct {
	cfg      Config
	userID   string
	handlers Handlers
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	conn   Conn
	closed bool

	connected atomic.Bool
}

// Dial starts a channel for userID and returns without waiting for the
// first connection. The channel stops when ctx is cancelled or Close is
// called.
func Dial(ctx context.Context, cfg Config, userID string, h Handlers) (*Channel, error) {
	if userID == "" {
		return nil, ErrNoIdentity
	}
	if cfg.Dialer == nil {
		return nil, ErrNoDialer
	}
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(ctx)
	ch := &Channel{
		cfg:      cfg,
		userID:   userID,
		handlers: h,
		logger:   cfg.Logger.With("component", "live", "user_id", userID),
		ctx:      ctx,
		cancel:   cancel,
	}
	ch.wg.Add(1)
	go ch.run()
	return ch, nil
}

// UserID returns the user the channel is joined for.
func (ch *Channel) UserID() string { return ch.userID }

// Connected reports whether a joined connection is currently up.
func (ch *Channel) Connected() bool { return ch.connected.Load() }

// Close disconnects and waits for the read loop to exit. No handler runs
// after Close returns. Close must not be called from a handler. It is safe
// to call more than once.
func (ch *Channel) Close() error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		ch.wg.Wait()
		return nil
	}
	ch.closed = true
	conn := ch.conn
	ch.mu.Unlock()

	ch.cancel()
	var err error
	if conn != nil {
		err = conn.Close()
	}
	ch.wg.Wait()
	ch.logger.Debug("channel closed")
	return err
}

func (ch *Channel) run() {
	defer ch.wg.Done()

	delay := ch.cfg.ReconnectMin
	for {
		joined, err := ch.connectOnce()
		if ch.ctx.Err() != nil {
			return
		}
		if joined {
			delay = ch.cfg.ReconnectMin
		}
		ch.logger.Warn("live connection lost", "error", err, "retry_in", delay)

		select {
		case <-ch.cfg.Clock.After(delay):
		case <-ch.ctx.Done():
			return
		}
		delay *= 2
		if delay > ch.cfg.ReconnectMax {
			delay = ch.cfg.ReconnectMax
		}
	}
}

// connectOnce dials, joins and reads until the connection fails. joined
// reports whether the join emit went through.
func (ch *Channel) connectOnce() (joined bool, err error) {
	conn, err := ch.cfg.Dialer.Dial(ch.ctx)
	if err != nil {
		return false, err
	}

	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		_ = conn.Close()
		return false, context.Canceled
	}
	ch.conn = conn
	ch.mu.Unlock()

	defer func() {
		ch.mu.Lock()
		if ch.conn == conn {
			ch.conn = nil
		}
		ch.mu.Unlock()
		_ = conn.Close()
		if ch.connected.Swap(false) {
			ch.status(false)
		}
	}()

	wctx, cancel := context.WithTimeout(ch.ctx, ch.cfg.WriteTimeout)
	err = conn.Write(wctx, JoinFrame(ch.userID))
	cancel()
	if err != nil {
		return false, err
	}
	ch.connected.Store(true)
	ch.status(true)
	ch.logger.Info("joined live channel")

	for {
		f, err := conn.Read(ch.ctx)
		if err != nil {
			return true, err
		}
		ch.dispatch(f)
	}
}

func (ch *Channel) dispatch(f Frame) {
	var fn func(types.Task)
	switch f.Event {
	case EventTaskUpdated:
		fn = ch.handlers.TaskUpdated
	case EventTaskAssigned:
		fn = ch.handlers.TaskAssigned
	default:
		ch.logger.Debug("ignoring event", "event", f.Event)
		return
	}
	if fn == nil || ch.ctx.Err() != nil {
		return
	}

	t, err := decodeTask(f)
	if err != nil {
		ch.logger.Warn("dropping malformed event", "error", err)
		return
	}
	ch.logger.Debug("event received", "event", f.Event, "task_id", t.ID)
	fn(t)
}

func (ch *Channel) status(connected bool) {
	if ch.cfg.OnStatus != nil {
		ch.cfg.OnStatus(connected)
	}
}
