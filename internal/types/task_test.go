package types

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in      string
		want    Priority
		wantErr bool
	}{
		{"low", PriorityLow, false},
		{"MEDIUM", PriorityMedium, false},
		{" High ", PriorityHigh, false},
		{"urgent", PriorityUrgent, false},
		{"critical", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParsePriority(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePriority(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidPriority) {
			t.Errorf("ParsePriority(%q) error = %v, want ErrInvalidPriority", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParsePriority(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"todo", StatusTodo, false},
		{"in-progress", StatusInProgress, false},
		{"in progress", StatusInProgress, false},
		{"IN_PROGRESS", StatusInProgress, false},
		{"review", StatusReview, false},
		{"Completed", StatusCompleted, false},
		{"done", "", true},
	}

	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidStatus) {
			t.Errorf("ParseStatus(%q) error = %v, want ErrInvalidStatus", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStatusLabel(t *testing.T) {
	if got := StatusInProgress.Label(); got != "in progress" {
		t.Errorf("Label() = %q, want %q", got, "in progress")
	}
}

func TestCreateTask_Validate(t *testing.T) {
	due := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   CreateTask
		wantErr string
	}{
		{
			name:  "valid",
			input: CreateTask{Title: "Write report", DueDate: due, Priority: PriorityHigh},
		},
		{
			name:  "valid with status",
			input: CreateTask{Title: "Write report", DueDate: due, Priority: PriorityLow, Status: StatusReview},
		},
		{
			name:    "missing title",
			input:   CreateTask{Title: "  ", DueDate: due, Priority: PriorityLow},
			wantErr: "title is required",
		},
		{
			name:    "title too long",
			input:   CreateTask{Title: strings.Repeat("x", 101), DueDate: due, Priority: PriorityLow},
			wantErr: "100 characters",
		},
		{
			name:    "missing due date",
			input:   CreateTask{Title: "x", Priority: PriorityLow},
			wantErr: "due date is required",
		},
		{
			name:    "bad priority",
			input:   CreateTask{Title: "x", DueDate: due, Priority: "P0"},
			wantErr: "invalid priority",
		},
		{
			name:    "bad status",
			input:   CreateTask{Title: "x", DueDate: due, Priority: PriorityLow, Status: "DONE"},
			wantErr: "invalid status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestUpdateTask_Validate(t *testing.T) {
	var empty UpdateTask
	if !empty.Empty() {
		t.Error("zero UpdateTask should be empty")
	}
	if err := empty.Validate(); err == nil {
		t.Error("Validate() on empty patch should fail")
	}

	done := StatusCompleted
	patch := UpdateTask{Status: &done}
	if err := patch.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}

	blank := ""
	patch = UpdateTask{Title: &blank}
	if err := patch.Validate(); err == nil {
		t.Error("Validate() should reject blank title")
	}

	bad := Status("DONE")
	patch = UpdateTask{Status: &bad}
	if err := patch.Validate(); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("Validate() error = %v, want ErrInvalidStatus", err)
	}
}

func TestTask_Overdue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		task Task
		want bool
	}{
		{"past due todo", Task{DueDate: now.Add(-time.Hour), Status: StatusTodo}, true},
		{"past due completed", Task{DueDate: now.Add(-time.Hour), Status: StatusCompleted}, false},
		{"future", Task{DueDate: now.Add(time.Hour), Status: StatusInProgress}, false},
		{"no due date", Task{Status: StatusTodo}, false},
	}

	for _, tt := range tests {
		if got := tt.task.Overdue(now); got != tt.want {
			t.Errorf("%s: Overdue() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSummarizeAndFilter(t *testing.T) {
	tasks := []Task{
		{ID: "1", Status: StatusTodo},
		{ID: "2", Status: StatusInProgress},
		{ID: "3", Status: StatusTodo},
		{ID: "4", Status: StatusCompleted},
		{ID: "5", Status: StatusReview},
	}

	want := Summary{Total: 5, Todo: 2, InProgress: 1, Review: 1, Completed: 1}
	if diff := cmp.Diff(want, Summarize(tasks)); diff != "" {
		t.Errorf("Summarize() mismatch (-want +got):\n%s", diff)
	}

	todo := FilterByStatus(tasks, StatusTodo)
	if len(todo) != 2 || todo[0].ID != "1" || todo[1].ID != "3" {
		t.Errorf("FilterByStatus(TODO) = %+v", todo)
	}

	all := FilterByStatus(tasks, "")
	if len(all) != len(tasks) {
		t.Errorf("FilterByStatus(\"\") returned %d tasks, want %d", len(all), len(tasks))
	}
	all[0].Title = "changed"
	if tasks[0].Title != "" {
		t.Error("FilterByStatus must not alias the input slice")
	}

	if _, ok := FindTask(tasks, "4"); !ok {
		t.Error("FindTask(4) not found")
	}
	if _, ok := FindTask(tasks, "missing"); ok {
		t.Error("FindTask(missing) should not be found")
	}
}

func TestUserHelpers(t *testing.T) {
	users := []User{
		{ID: "u1", Email: "ada@example.com", Name: "Ada"},
		{ID: "u2", Email: "bob@example.com"},
	}

	if u, ok := FindUser(users, "u2"); !ok || u.Email != "bob@example.com" {
		t.Errorf("FindUser(u2) = %+v, %v", u, ok)
	}
	if u, ok := FindUser(users, "ADA@example.com"); !ok || u.ID != "u1" {
		t.Errorf("FindUser(email) = %+v, %v", u, ok)
	}
	if _, ok := FindUser(users, "nobody"); ok {
		t.Error("FindUser(nobody) should not match")
	}

	if got := users[1].DisplayName(); got != "bob@example.com" {
		t.Errorf("DisplayName() = %q", got)
	}
	if got := users[0].Initial(); got != "A" {
		t.Errorf("Initial() = %q", got)
	}
	if got := (User{}).Initial(); got != "U" {
		t.Errorf("Initial() of empty user = %q", got)
	}
}

func TestGreeting(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{6, "Good Morning"},
		{11, "Good Morning"},
		{12, "Good Afternoon"},
		{17, "Good Afternoon"},
		{18, "Good Evening"},
		{23, "Good Evening"},
	}
	for _, tt := range tests {
		now := time.Date(2026, 1, 1, tt.hour, 30, 0, 0, time.Local)
		if got := Greeting(now); got != tt.want {
			t.Errorf("Greeting(%02d:30) = %q, want %q", tt.hour, got, tt.want)
		}
	}
}
