package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/collabtask/tasksync/internal/logging"
	"github.com/collabtask/tasksync/internal/types"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewClient(Config{
		BaseURL:    srv.URL + "/api/",
		HTTPClient: &http.Client{Jar: jar},
		Logger:     logging.Discard(),
	})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:5000", "ws://localhost:5000/api", "://bad"} {
		if _, err := NewClient(Config{BaseURL: raw}); err == nil {
			t.Errorf("NewClient(%q) succeeded", raw)
		}
	}
	c, err := NewClient(Config{BaseURL: "http://localhost:5000/api/"})
	if err != nil {
		t.Fatal(err)
	}
	if c.BaseURL() != "http://localhost:5000/api" {
		t.Errorf("BaseURL() = %q", c.BaseURL())
	}
}

func TestDoSendsJSONAndRequestID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/echo" || r.Method != http.MethodPost {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		writeJSON(w, http.StatusOK, map[string]string{"echo": in["say"]})
	}))

	var out map[string]string
	if err := c.Do(context.Background(), http.MethodPost, "/echo", map[string]string{"say": "hi"}, &out); err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if out["echo"] != "hi" {
		t.Errorf("out = %v", out)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantUnauth bool
		wantNotFnd bool
		wantMsg    string
	}{
		{"401 with message", http.StatusUnauthorized, `{"message":"Not authenticated"}`, true, false, "Not authenticated"},
		{"403", http.StatusForbidden, `{"message":"Not allowed"}`, true, false, "Not allowed"},
		{"404", http.StatusNotFound, `{"message":"Task not found"}`, false, true, "Task not found"},
		{"500 html", http.StatusInternalServerError, `<html>oops</html>`, false, false, "fallback"},
		{"400 blank message", http.StatusBadRequest, `{"message":"  "}`, false, false, "fallback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			err := c.Do(context.Background(), http.MethodGet, "/x", nil, nil)

			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode != tt.status {
				t.Fatalf("Do() error = %v, want APIError %d", err, tt.status)
			}
			if got := IsUnauthorized(err); got != tt.wantUnauth {
				t.Errorf("IsUnauthorized() = %v", got)
			}
			if got := errors.Is(err, ErrNotFound); got != tt.wantNotFnd {
				t.Errorf("errors.Is(ErrNotFound) = %v", got)
			}
			if got := UserMessage(err, "fallback"); got != tt.wantMsg {
				t.Errorf("UserMessage() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestUserMessageOnTransportError(t *testing.T) {
	if got := UserMessage(errors.New("dial tcp: refused"), "Task creation failed"); got != "Task creation failed" {
		t.Errorf("UserMessage() = %q", got)
	}
}

func TestSessionCookieRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds types.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/", HttpOnly: true})
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("sid"); err != nil || ck.Value != "abc" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Not authenticated"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": types.User{ID: "u1", Email: "ada@example.com", Name: "Ada"}})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	if _, err := c.Me(ctx); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("Me() before login error = %v, want ErrUnauthenticated", err)
	}
	err := c.Login(ctx, types.Credentials{Email: "ada@example.com", Password: "wrong"})
	if UserMessage(err, "") != "Invalid credentials" {
		t.Fatalf("Login(wrong) error = %v", err)
	}
	if err := c.Login(ctx, types.Credentials{Email: "ada@example.com", Password: "secret"}); err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	u, err := c.Me(ctx)
	if err != nil {
		t.Fatalf("Me() error: %v", err)
	}
	if u.ID != "u1" || u.Name != "Ada" {
		t.Errorf("Me() = %+v", u)
	}
}

func TestMeResponseShapes(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		wantID string
	}{
		{"bare user", `{"id":"u1","email":"a@b.c","name":"A"}`, "u1"},
		{"wrapped user", `{"user":{"id":"u2","email":"a@b.c","name":"A"}}`, "u2"},
		{"null", `null`, ""},
		{"wrapped null", `{"user":null}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			u, err := c.Me(context.Background())
			if tt.wantID == "" {
				if !errors.Is(err, ErrUnauthenticated) {
					t.Fatalf("Me() = %+v, %v; want ErrUnauthenticated", u, err)
				}
				return
			}
			if err != nil || u.ID != tt.wantID {
				t.Fatalf("Me() = %+v, %v; want id %s", u, err, tt.wantID)
			}
		})
	}
}
