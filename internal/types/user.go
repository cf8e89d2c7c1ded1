package types

import (
	"strings"
	"time"
)

// User is an account on the task service. Only the server mutates it.
type User struct {
	ID        string    `json:"id" yaml:"id"`
	Email     string    `json:"email" yaml:"email"`
	Name      string    `json:"name" yaml:"name"`
	AvatarURL string    `json:"avatarUrl,omitempty" yaml:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
}

// DisplayName prefers the user's name and falls back to the email address.
func (u User) DisplayName() string {
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	return u.Email
}

// Initial is the upper-cased first letter of the display name, or "U".
func (u User) Initial() string {
	name := strings.TrimSpace(u.DisplayName())
	if name == "" {
		return "U"
	}
	return strings.ToUpper(string([]rune(name)[0]))
}

// Credentials is the body of POST /auth/login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the body of POST /auth/register.
type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Greeting returns the time-of-day salutation shown on the dashboard.
func Greeting(now time.Time) string {
	switch h := now.Hour(); {
	case h < 12:
		return "Good Morning"
	case h < 18:
		return "Good Afternoon"
	default:
		return "Good Evening"
	}
}

// FindUser matches ref against user IDs first and then, case-insensitively,
// against email addresses.
func FindUser(users []User, ref string) (User, bool) {
	for _, u := range users {
		if u.ID == ref {
			return u, true
		}
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, ref) {
			return u, true
		}
	}
	return User{}, false
}
