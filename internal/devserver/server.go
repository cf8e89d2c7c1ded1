// Package devserver is a self-contained, in-memory task service that speaks
// the same REST and live-channel protocol as the real backend. It exists so
// the client can be run and tested end to end without external services.
//
// Users, sessions and tasks live in memory and vanish on Stop. Sessions are
// cookie based; passwords are bcrypt hashed. The live endpoint accepts a
// websocket, waits for "join:user" and from then on routes that user's
// task events to the connection.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/collabtask/tasksync/internal/live"
)

// SessionCookie is the name of the session cookie.
const SessionCookie = "tsk.sid"

// Config holds server configuration.
type Config struct {
	// Addr to listen on, e.g. "localhost:5000". Port 0 picks a free port.
	Addr string

	// BcryptCost defaults to bcrypt.DefaultCost. Tests use bcrypt.MinCost.
	BcryptCost int

	Logger *slog.Logger
}

// DefaultConfig returns the settings `tsk devserver` starts with.
func DefaultConfig() Config {
	return Config{Addr: "localhost:5000", BcryptCost: bcrypt.DefaultCost}
}

// outbound is one frame addressed to a set of users.
type outbound struct {
	users []string
	frame live.Frame
}

// Server serves the REST API under /api and the live channel at /socket.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server
	store    *store

	// Live connections, by the user that joined on them.
	roomsMu sync.RWMutex
	rooms   map[string]map[*websocket.Conn]bool

	broadcast chan outbound

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *slog.Logger
}

// New creates a server. Call Start to begin serving.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      cfg.Addr,
		store:     newStore(cfg.BcryptCost, time.Now),
		rooms:     make(map[string]map[*websocket.Conn]bool),
		broadcast: make(chan outbound, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    cfg.Logger.With("component", "devserver"),
	}
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", "error", err)
		}
	}()
	return nil
}

// Stop closes live connections and shuts the server down.
func (s *Server) Stop() error {
	s.logger.Info("stopping")
	s.cancel()

	s.roomsMu.Lock()
	for userID, conns := range s.rooms {
		for conn := range conns {
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		delete(s.rooms, userID)
	}
	s.roomsMu.Unlock()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}
	s.wg.Wait()
	return nil
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// APIURL returns the REST root, e.g. "http://127.0.0.1:5000/api".
func (s *Server) APIURL() string { return "http://" + s.Addr() + "/api" }

// SocketURL returns the live endpoint, e.g. "ws://127.0.0.1:5000/socket".
func (s *Server) SocketURL() string { return "ws://" + s.Addr() + "/socket" }

// ClientCount returns the number of joined live connections.
func (s *Server) ClientCount() int {
	s.roomsMu.RLock()
	defer s.roomsMu.RUnlock()
	n := 0
	for _, conns := range s.rooms {
		n += len(conns)
	}
	return n
}

// Emit queues event for every live connection of users.
func (s *Server) Emit(event string, data any, users ...string) {
	f, err := live.NewFrame(event, data)
	if err != nil {
		s.logger.Error("failed to encode event", "event", event, "error", err)
		return
	}
	select {
	case s.broadcast <- outbound{users: users, frame: f}:
	case <-s.ctx.Done():
	default:
		s.logger.Warn("broadcast channel full, dropping event", "event", event)
	}
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			data, err := json.Marshal(msg.frame)
			if err != nil {
				s.logger.Error("failed to marshal frame", "error", err)
				continue
			}

			seen := make(map[*websocket.Conn]bool)
			s.roomsMu.RLock()
			var targets []*websocket.Conn
			for _, userID := range msg.users {
				for conn := range s.rooms[userID] {
					if !seen[conn] {
						seen[conn] = true
						targets = append(targets, conn)
					}
				}
			}
			s.roomsMu.RUnlock()

			for _, conn := range targets {
				ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					s.logger.Debug("failed to send to client", "error", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

// handleSocket upgrades the connection. The handshake must carry a valid
// session; a join for any user other than the session's is refused.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	user, ok := s.sessionUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	go s.readLoop(conn, user.ID)
}

func (s *Server) readLoop(conn *websocket.Conn, sessionUser string) {
	defer s.removeClient(conn)

	for {
		_, data, err := conn.Read(s.ctx)
		if err != nil {
			return
		}
		var f live.Frame
		if err := json.Unmarshal(data, &f); err != nil || f.Event != live.EventJoinUser {
			continue
		}
		var userID string
		if err := json.Unmarshal(f.Data, &userID); err != nil || userID != sessionUser {
			s.logger.Warn("refusing join", "requested", userID, "session_user", sessionUser)
			continue
		}

		s.roomsMu.Lock()
		if s.rooms[userID] == nil {
			s.rooms[userID] = make(map[*websocket.Conn]bool)
		}
		s.rooms[userID][conn] = true
		s.roomsMu.Unlock()
		s.logger.Info("client joined", "user_id", userID, "clients", s.ClientCount())
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.roomsMu.Lock()
	removed := false
	for userID, conns := range s.rooms {
		if conns[conn] {
			delete(conns, conn)
			removed = true
			if len(conns) == 0 {
				delete(s.rooms, userID)
			}
		}
	}
	s.roomsMu.Unlock()

	_ = conn.Close(websocket.StatusNormalClosure, "")
	if removed {
		s.logger.Info("client disconnected", "clients", s.ClientCount())
	}
}
