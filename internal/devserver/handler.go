package devserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/collabtask/tasksync/internal/live"
	"github.com/collabtask/tasksync/internal/types"
)

const maxBodyBytes = 1 << 20

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/auth/me", s.handleMe)
	mux.HandleFunc("GET /api/users", s.authed(s.handleUsers))
	mux.HandleFunc("GET /api/tasks", s.authed(s.handleListTasks))
	mux.HandleFunc("POST /api/tasks", s.authed(s.handleCreateTask))
	mux.HandleFunc("PATCH /api/tasks/{id}", s.authed(s.handleUpdateTask))
	mux.HandleFunc("DELETE /api/tasks/{id}", s.authed(s.handleDeleteTask))
	mux.HandleFunc("GET /socket", s.handleSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "request_id", r.Header.Get("X-Request-ID"))
		next.ServeHTTP(w, r)
	})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, user types.User)

func (s *Server) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.sessionUser(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		h(w, r, user)
	}
}

func (s *Server) sessionUser(r *http.Request) (types.User, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return types.User{}, false
	}
	return s.store.session(c.Value)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg types.Registration
	if !decode(w, r, &reg) {
		return
	}
	if strings.TrimSpace(reg.Email) == "" || reg.Password == "" || strings.TrimSpace(reg.Name) == "" {
		writeError(w, http.StatusBadRequest, "Email, password and name are required")
		return
	}
	if len(reg.Password) < 6 {
		writeError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}
	u, err := s.store.register(reg)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Info("user registered", "user_id", u.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "User registered", "user": u})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds types.Credentials
	if !decode(w, r, &creds) {
		return
	}
	token, u, err := s.store.login(creds)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		s.store.logout(c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := s.sessionUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (s *Server) handleUsers(w http.ResponseWriter, _ *http.Request, _ types.User) {
	writeJSON(w, http.StatusOK, s.store.listUsers())
}

func (s *Server) handleListTasks(w http.ResponseWriter, _ *http.Request, user types.User) {
	writeJSON(w, http.StatusOK, s.store.visibleTasks(user.ID))
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request, user types.User) {
	var in types.CreateTask
	if !decode(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := s.store.createTask(user.ID, in)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Info("task created", "task_id", t.ID, "creator", user.ID)

	s.Emit(live.EventTaskUpdated, t, related(t)...)
	if t.AssignedToID != "" && t.AssignedToID != user.ID {
		s.Emit(live.EventTaskAssigned, t, t.AssignedToID)
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request, user types.User) {
	var patch types.UpdateTask
	if !decode(w, r, &patch) {
		return
	}
	if err := patch.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	before, after, err := s.store.updateTask(user.ID, r.PathValue("id"), patch)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Info("task updated", "task_id", after.ID, "by", user.ID)

	// Whoever could see the task before or can see it now hears about it.
	s.Emit(live.EventTaskUpdated, after, append(related(before), related(after)...)...)
	if after.AssignedToID != "" && after.AssignedToID != before.AssignedToID && after.AssignedToID != user.ID {
		s.Emit(live.EventTaskAssigned, after, after.AssignedToID)
	}
	writeJSON(w, http.StatusOK, after)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request, user types.User) {
	t, err := s.store.deleteTask(user.ID, r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Info("task deleted", "task_id", t.ID, "by", user.ID)
	s.Emit(live.EventTaskUpdated, t, related(t)...)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

func related(t types.Task) []string {
	if t.AssignedToID == "" || t.AssignedToID == t.CreatorID {
		return []string{t.CreatorID}
	}
	return []string{t.CreatorID, t.AssignedToID}
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	var se *statusError
	if errors.As(err, &se) {
		writeError(w, se.status, se.message)
		return
	}
	s.logger.Error("internal error", "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
