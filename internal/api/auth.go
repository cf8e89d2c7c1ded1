package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/collabtask/tasksync/internal/types"
)

// Register creates an account. It does not log the new user in.
func (c *Client) Register(ctx context.Context, reg types.Registration) error {
	return c.Do(ctx, http.MethodPost, "/auth/register", reg, nil)
}

// Login exchanges credentials for a session cookie, which the jar keeps.
func (c *Client) Login(ctx context.Context, creds types.Credentials) error {
	return c.Do(ctx, http.MethodPost, "/auth/login", creds, nil)
}

// Logout ends the server session.
func (c *Client) Logout(ctx context.Context) error {
	return c.Do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// Me returns the user that owns the current session, or an error matching
// ErrUnauthenticated when there is none.
func (c *Client) Me(ctx context.Context) (*types.User, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodGet, "/auth/me", nil, &raw); err != nil {
		return nil, err
	}

	// Servers answer either with the user or with {"user": {...}}.
	var wrapped struct {
		User *types.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}
	var user types.User
	if err := json.Unmarshal(raw, &user); err != nil || user.ID == "" {
		return nil, ErrUnauthenticated
	}
	return &user, nil
}

// Users lists the accounts tasks can be assigned to.
func (c *Client) Users(ctx context.Context) ([]types.User, error) {
	var users []types.User
	if err := c.Do(ctx, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}
