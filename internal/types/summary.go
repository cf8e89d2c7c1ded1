package types

// Summary counts tasks by status.
type Summary struct {
	Total      int `json:"total" yaml:"total"`
	Todo       int `json:"todo" yaml:"todo"`
	InProgress int `json:"in_progress" yaml:"in_progress"`
	Review     int `json:"review" yaml:"review"`
	Completed  int `json:"completed" yaml:"completed"`
}

// Summarize counts tasks by status.
func Summarize(tasks []Task) Summary {
	s := Summary{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case StatusTodo:
			s.Todo++
		case StatusInProgress:
			s.InProgress++
		case StatusReview:
			s.Review++
		case StatusCompleted:
			s.Completed++
		}
	}
	return s
}

// FilterByStatus returns the tasks with the given status. An empty status
// returns every task. The input slice is never modified.
func FilterByStatus(tasks []Task, status Status) []Task {
	if status == "" {
		out := make([]Task, len(tasks))
		copy(out, tasks)
		return out
	}
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

// FindTask returns the task with the given ID.
func FindTask(tasks []Task, id string) (Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}
