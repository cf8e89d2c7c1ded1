package live

import (
	"context"
	"sync"
)

// Mount ties a channel's lifetime to the identity of whoever is viewing.
// A view that needs live updates holds a Mount, feeds it identity changes
// and unmounts when it goes away. At most one channel is open per Mount,
// and it always belongs to the current identity.
type Mount struct {
	ctx      context.Context
	cfg      Config
	handlers Handlers

	mu     sync.Mutex
	userID string
	ch     *Channel
}

// NewMount returns a Mount with no channel open. Channels it opens stop
// when ctx is cancelled.
func NewMount(ctx context.Context, cfg Config, h Handlers) *Mount {
	return &Mount{ctx: ctx, cfg: cfg, handlers: h}
}

// SetIdentity switches the subscription to userID. The previous channel is
// closed before the new one is dialed, so events for the old user stop
// before events for the new user can arrive. An empty userID closes the
// channel without opening another. Setting the current identity again is a
// no-op. SetIdentity must not be called from a handler.
func (m *Mount) SetIdentity(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if userID == m.userID && (m.ch != nil || userID == "") {
		return nil
	}
	if m.ch != nil {
		_ = m.ch.Close()
		m.ch = nil
	}
	m.userID = userID
	if userID == "" {
		return nil
	}

	ch, err := Dial(m.ctx, m.cfg, userID, m.handlers)
	if err != nil {
		m.userID = ""
		return err
	}
	m.ch = ch
	return nil
}

// Unmount closes the channel, if any.
func (m *Mount) Unmount() {
	_ = m.SetIdentity("")
}

// UserID returns the identity the open channel belongs to, or "".
func (m *Mount) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

// Connected reports whether the open channel is joined.
func (m *Mount) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ch != nil && m.ch.Connected()
}
