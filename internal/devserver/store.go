package devserver

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/collabtask/tasksync/internal/types"
)

// statusError is a failure with a status code and a message meant for the
// client's user.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string { return e.message }

var (
	errUserExists   = &statusError{http.StatusConflict, "User already exists"}
	errBadLogin     = &statusError{http.StatusUnauthorized, "Invalid credentials"}
	errTaskNotFound = &statusError{http.StatusNotFound, "Task not found"}
	errForbidden    = &statusError{http.StatusForbidden, "Not allowed to modify this task"}
	errNotCreator   = &statusError{http.StatusForbidden, "Only the creator can delete this task"}
	errUnknownUser  = &statusError{http.StatusBadRequest, "Assigned user does not exist"}
)

type account struct {
	user types.User
	hash []byte
}

// store is the server's in-memory state.
type store struct {
	mu       sync.RWMutex
	users    map[string]*account // by ID
	byEmail  map[string]string   // lower-cased email -> ID
	sessions map[string]string   // token -> user ID
	tasks    map[string]types.Task

	cost int
	now  func() time.Time
}

func newStore(cost int, now func() time.Time) *store {
	return &store{
		users:    make(map[string]*account),
		byEmail:  make(map[string]string),
		sessions: make(map[string]string),
		tasks:    make(map[string]types.Task),
		cost:     cost,
		now:      now,
	}
}

func (s *store) register(reg types.Registration) (types.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return types.User{}, err
	}
	email := strings.ToLower(strings.TrimSpace(reg.Email))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[email]; ok {
		return types.User{}, errUserExists
	}
	u := types.User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      strings.TrimSpace(reg.Name),
		CreatedAt: s.now(),
	}
	s.users[u.ID] = &account{user: u, hash: hash}
	s.byEmail[email] = u.ID
	return u, nil
}

// login checks credentials and opens a session.
func (s *store) login(creds types.Credentials) (token string, u types.User, err error) {
	s.mu.RLock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(creds.Email))]
	var acct *account
	if ok {
		acct = s.users[id]
	}
	s.mu.RUnlock()

	if acct == nil {
		return "", types.User{}, errBadLogin
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(creds.Password)); err != nil {
		return "", types.User{}, errBadLogin
	}

	token, err = newToken()
	if err != nil {
		return "", types.User{}, err
	}
	s.mu.Lock()
	s.sessions[token] = acct.user.ID
	s.mu.Unlock()
	return token, acct.user, nil
}

func (s *store) logout(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

func (s *store) session(token string) (types.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.sessions[token]
	if !ok {
		return types.User{}, false
	}
	acct, ok := s.users[id]
	if !ok {
		return types.User{}, false
	}
	return acct.user, true
}

func (s *store) listUsers() []types.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.User, 0, len(s.users))
	for _, a := range s.users {
		out = append(out, a.user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// visibleTasks returns the tasks userID created or is assigned to, newest
// first.
func (s *store) visibleTasks(userID string) []types.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Task, 0)
	for _, t := range s.tasks {
		if t.CreatorID == userID || t.AssignedToID == userID {
			out = append(out, s.expandLocked(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *store) createTask(creator string, in types.CreateTask) (types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in.AssignedToID != "" {
		if _, ok := s.users[in.AssignedToID]; !ok {
			return types.Task{}, errUnknownUser
		}
	}
	status := in.Status
	if status == "" {
		status = types.StatusTodo
	}
	now := s.now()
	t := types.Task{
		ID:           uuid.NewString(),
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		DueDate:      in.DueDate,
		Priority:     in.Priority,
		Status:       status,
		CreatorID:    creator,
		AssignedToID: in.AssignedToID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.tasks[t.ID] = t
	return s.expandLocked(t), nil
}

// updateTask applies patch and returns the task before and after.
func (s *store) updateTask(userID, id string, patch types.UpdateTask) (before, after types.Task, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return before, after, errTaskNotFound
	}
	if t.CreatorID != userID && t.AssignedToID != userID {
		return before, after, errForbidden
	}
	if patch.AssignedToID != nil && *patch.AssignedToID != "" {
		if _, ok := s.users[*patch.AssignedToID]; !ok {
			return before, after, errUnknownUser
		}
	}

	before = t
	if patch.Title != nil {
		t.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.DueDate != nil {
		t.DueDate = *patch.DueDate
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.AssignedToID != nil {
		t.AssignedToID = *patch.AssignedToID
	}
	t.UpdatedAt = s.now()
	s.tasks[id] = t
	return s.expandLocked(before), s.expandLocked(t), nil
}

func (s *store) deleteTask(userID, id string) (types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return types.Task{}, errTaskNotFound
	}
	if t.CreatorID != userID {
		return types.Task{}, errNotCreator
	}
	delete(s.tasks, id)
	return s.expandLocked(t), nil
}

// expandLocked fills in the creator and assignee references.
func (s *store) expandLocked(t types.Task) types.Task {
	if a, ok := s.users[t.CreatorID]; ok {
		u := a.user
		t.Creator = &u
	}
	if a, ok := s.users[t.AssignedToID]; ok {
		u := a.user
		t.AssignedTo = &u
	}
	return t
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
