package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/collabtask/tasksync/internal/notify"
	"github.com/collabtask/tasksync/internal/types"
)

const dateLayout = "Jan 02 2006"

// Status renders a task status as a colored label.
func (p *Printer) Status(s types.Status) string {
	label := s.Label()
	switch s {
	case types.StatusCompleted:
		return p.RenderPass(label)
	case types.StatusInProgress:
		return p.RenderAccent(label)
	case types.StatusReview:
		return p.RenderWarn(label)
	default:
		return p.RenderMuted(label)
	}
}

// Priority renders a task priority.
func (p *Printer) Priority(pr types.Priority) string {
	switch pr {
	case types.PriorityUrgent:
		return p.RenderFail(string(pr))
	case types.PriorityHigh:
		return p.RenderWarn(string(pr))
	default:
		return string(pr)
	}
}

// TaskTable renders tasks one per row. now decides which due dates are
// flagged overdue.
func (p *Printer) TaskTable(tasks []types.Task, now time.Time) string {
	if len(tasks) == 0 {
		return p.RenderMuted("No tasks.")
	}

	// Fixed columns take 62 cells plus the title's trailing gap.
	titleWidth := p.width - 63
	if titleWidth < 12 {
		titleWidth = 12
	}
	cell := func(s string, w int) string {
		return p.r.NewStyle().Width(w).MaxWidth(w).Render(s)
	}

	var b strings.Builder
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		cell("ID", 9), cell("TITLE", titleWidth+1), cell("STATUS", 14),
		cell("PRIORITY", 9), cell("DUE", 14), cell("ASSIGNEE", 16))
	b.WriteString(p.RenderBold(header))
	b.WriteByte('\n')

	for _, t := range tasks {
		due := "-"
		if !t.DueDate.IsZero() {
			due = t.DueDate.Format(dateLayout)
			if t.Overdue(now) {
				due = p.RenderFail(due)
			}
		}
		assignee := truncate(t.AssigneeName(), 15)
		if assignee == "" {
			assignee = p.RenderMuted("unassigned")
		}
		row := lipgloss.JoinHorizontal(lipgloss.Top,
			cell(shortID(t.ID), 9),
			cell(truncate(t.Title, titleWidth), titleWidth+1),
			cell(p.Status(t.Status), 14),
			cell(p.Priority(t.Priority), 9),
			cell(due, 14),
			cell(assignee, 16))
		b.WriteString(strings.TrimRight(row, " "))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// TaskDetail renders one task.
func (p *Printer) TaskDetail(t types.Task, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", p.RenderAccent(t.Title), p.RenderMuted("("+t.ID+")"))
	fmt.Fprintf(&b, "  Status:   %s\n", p.Status(t.Status))
	fmt.Fprintf(&b, "  Priority: %s\n", p.Priority(t.Priority))
	if !t.DueDate.IsZero() {
		due := t.DueDate.Format(dateLayout)
		if t.Overdue(now) {
			due += " " + p.RenderFail("overdue")
		}
		fmt.Fprintf(&b, "  Due:      %s\n", due)
	}
	if name := t.AssigneeName(); name != "" {
		fmt.Fprintf(&b, "  Assignee: %s\n", name)
	}
	if t.Description != "" {
		fmt.Fprintf(&b, "\n  %s\n", strings.ReplaceAll(t.Description, "\n", "\n  "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Summary renders the status counts shown on the dashboard.
func (p *Printer) Summary(s types.Summary) string {
	return fmt.Sprintf("%s total  %s todo  %s in progress  %s review  %s completed",
		p.RenderBold(fmt.Sprint(s.Total)),
		p.RenderMuted(fmt.Sprint(s.Todo)),
		p.RenderAccent(fmt.Sprint(s.InProgress)),
		p.RenderWarn(fmt.Sprint(s.Review)),
		p.RenderPass(fmt.Sprint(s.Completed)))
}

// Notice renders a transient notice as a single line.
func (p *Printer) Notice(n notify.Notice) string {
	switch n.Level {
	case notify.LevelSuccess:
		return p.RenderPass("✓ ") + n.Message
	case notify.LevelError:
		return p.RenderFail("✗ ") + n.Message
	default:
		return p.RenderAccent("• ") + n.Message
	}
}

// Users renders the user directory.
func (p *Printer) Users(users []types.User) string {
	if len(users) == 0 {
		return p.RenderMuted("No users.")
	}
	var b strings.Builder
	for _, u := range users {
		fmt.Fprintf(&b, "%s  %-24s %s\n", p.RenderAccent(u.Initial()), u.DisplayName(), p.RenderMuted(u.Email))
	}
	return strings.TrimRight(b.String(), "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
