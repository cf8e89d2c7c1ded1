// Package live keeps the per-user push connection to the task service.
//
// The connection carries JSON frames of the form
//
//	{"event": "task:updated", "data": {...}}
//
// On every (re)connect the client emits "join:user" with its user ID so the
// server routes that user's events to this connection. Inbound events are
// handed to Handlers; the package itself knows nothing about caching.
package live

import (
	"encoding/json"
	"fmt"

	"github.com/collabtask/tasksync/internal/types"
)

// Event names on the wire.
const (
	EventJoinUser     = "join:user"
	EventTaskUpdated  = "task:updated"
	EventTaskAssigned = "task:assigned"
)

// Frame is one message on the connection.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame marshals data into a frame for event.
func NewFrame(event string, data any) (Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s: %w", event, err)
	}
	return Frame{Event: event, Data: raw}, nil
}

// JoinFrame is the subscription request for userID's room.
func JoinFrame(userID string) Frame {
	raw, _ := json.Marshal(userID)
	return Frame{Event: EventJoinUser, Data: raw}
}

// Handlers receive inbound events. A nil handler drops its event. Handlers
// run on the channel's read goroutine, one at a time.
type Handlers struct {
	// TaskUpdated receives the task as the server sent it. Receivers should
	// treat it as a hint that their cached tasks are out of date.
	TaskUpdated func(types.Task)

	// TaskAssigned receives a task that was just assigned to this user.
	TaskAssigned func(types.Task)
}

func decodeTask(f Frame) (types.Task, error) {
	var t types.Task
	if len(f.Data) == 0 {
		return t, fmt.Errorf("%s: empty payload", f.Event)
	}
	if err := json.Unmarshal(f.Data, &t); err != nil {
		return t, fmt.Errorf("%s: %w", f.Event, err)
	}
	return t, nil
}
