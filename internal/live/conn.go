package live

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Conn is one established connection.
type Conn interface {
	Read(ctx context.Context) (Frame, error)
	Write(ctx context.Context, f Frame) error
	Close() error
}

// Dialer opens connections. Channel calls it once per (re)connect.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// WSDialer dials the service's websocket endpoint.
type WSDialer struct {
	// URL is the socket endpoint, e.g. "ws://localhost:5000/socket".
	URL string

	// HTTPClient performs the handshake. Pass the API client's http.Client
	// so the handshake carries the session cookies from its jar.
	HTTPClient *http.Client

	// ReadLimit caps a single inbound frame. Zero keeps the library default.
	ReadLimit int64
}

// Dial implements Dialer.
func (d *WSDialer) Dial(ctx context.Context) (Conn, error) {
	if d.URL == "" {
		return nil, errors.New("live: socket URL is required")
	}

	var opts websocket.DialOptions
	if d.HTTPClient != nil {
		// The handshake is bounded by ctx; a client-wide timeout would also
		// cut the upgraded connection.
		hc := *d.HTTPClient
		hc.Timeout = 0
		opts.HTTPClient = &hc
	}

	c, resp, err := websocket.Dial(ctx, d.URL, &opts)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("live: dial %s: %s: %w", d.URL, resp.Status, err)
		}
		return nil, fmt.Errorf("live: dial %s: %w", d.URL, err)
	}
	if d.ReadLimit > 0 {
		c.SetReadLimit(d.ReadLimit)
	}
	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) (Frame, error) {
	var f Frame
	if err := wsjson.Read(ctx, w.c, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

func (w *wsConn) Write(ctx context.Context, f Frame) error {
	return wsjson.Write(ctx, w.c, f)
}

func (w *wsConn) Close() error {
	err := w.c.Close(websocket.StatusNormalClosure, "")
	// Closing an already-failed connection is not an error worth reporting.
	if websocket.CloseStatus(err) != -1 || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
