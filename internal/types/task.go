// Package types holds the client-side data model for the collaborative task
// service: users, tasks, and the request bodies the task endpoints accept.
//
// Values of these types are owned by the server. The client only ever holds
// read-through copies of them and requests changes; it never computes a new
// status or priority on its own.
package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Status is the position of a task in its workflow.
type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusReview     Status = "REVIEW"
	StatusCompleted  Status = "COMPLETED"
)

var (
	// ErrInvalidPriority is returned when a priority is not one of the four known values.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrInvalidStatus is returned when a status is not one of the four known values.
	ErrInvalidStatus = errors.New("invalid status")
)

// Priorities lists every priority from least to most urgent.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Statuses lists every status in workflow order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusReview, StatusCompleted}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Label returns the lower-case, space separated form used in listings
// ("in progress" for IN_PROGRESS).
func (s Status) Label() string {
	return strings.ToLower(strings.ReplaceAll(string(s), "_", " "))
}

// ParsePriority accepts a priority in any case ("high", "HIGH").
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q (want one of low, medium, high, urgent)", ErrInvalidPriority, s)
	}
	return p, nil
}

// ParseStatus accepts a status in any case, with '-' or ' ' in place of '_'
// ("in-progress", "in progress", "IN_PROGRESS").
func ParseStatus(s string) (Status, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	st := Status(norm)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q (want one of todo, in_progress, review, completed)", ErrInvalidStatus, s)
	}
	return st, nil
}

// Task is the server's representation of a unit of work.
type Task struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	DueDate     time.Time `json:"dueDate" yaml:"due_date"`
	Priority    Priority  `json:"priority" yaml:"priority"`
	Status      Status    `json:"status" yaml:"status"`

	CreatorID    string `json:"creatorId" yaml:"creator_id"`
	AssignedToID string `json:"assignedToId,omitempty" yaml:"assigned_to_id,omitempty"`

	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updated_at"`

	// Expanded references; present only when the server includes them.
	Creator    *User `json:"creator,omitempty" yaml:"creator,omitempty"`
	AssignedTo *User `json:"assignedTo,omitempty" yaml:"assigned_to,omitempty"`
}

// Overdue reports whether the task is past due and not yet completed.
func (t Task) Overdue(now time.Time) bool {
	if t.DueDate.IsZero() {
		return false
	}
	return t.DueDate.Before(now) && t.Status != StatusCompleted
}

// AssigneeName returns the best display name for the assignee, or "" when
// the task is unassigned.
func (t Task) AssigneeName() string {
	if t.AssignedTo != nil {
		return t.AssignedTo.DisplayName()
	}
	return t.AssignedToID
}

// CreateTask is the body of POST /tasks.
type CreateTask struct {
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	DueDate      time.Time `json:"dueDate"`
	Priority     Priority  `json:"priority"`
	Status       Status    `json:"status,omitempty"`
	AssignedToID string    `json:"assignedToId,omitempty"`
}

// Validate checks the fields the server requires before a request is sent.
func (c *CreateTask) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if len(c.Title) > 100 {
		return fmt.Errorf("title must be 100 characters or less (got %d)", len(c.Title))
	}
	if c.DueDate.IsZero() {
		return fmt.Errorf("due date is required")
	}
	if !c.Priority.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, c.Priority)
	}
	if c.Status != "" && !c.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, c.Status)
	}
	return nil
}

// UpdateTask is the body of PATCH /tasks/:id. Nil fields are left unchanged
// by the server.
type UpdateTask struct {
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
	Priority     *Priority  `json:"priority,omitempty"`
	Status       *Status    `json:"status,omitempty"`
	AssignedToID *string    `json:"assignedToId,omitempty"`
}

// Empty reports whether the patch would change nothing.
func (u *UpdateTask) Empty() bool {
	return u.Title == nil && u.Description == nil && u.DueDate == nil &&
		u.Priority == nil && u.Status == nil && u.AssignedToID == nil
}

// Validate checks the fields that are set.
func (u *UpdateTask) Validate() error {
	if u.Empty() {
		return fmt.Errorf("no fields to update")
	}
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return fmt.Errorf("title cannot be empty")
	}
	if u.Priority != nil && !u.Priority.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, *u.Priority)
	}
	if u.Status != nil && !u.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, *u.Status)
	}
	return nil
}
