package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"gopkg.in/yaml.v3"

	"github.com/collabtask/tasksync/internal/types"
)

var dueParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDue accepts RFC 3339, a bare date (end of that day, local time) or
// natural language such as "tomorrow 5pm" or "next friday".
func parseDue(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("due date is empty")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if d, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return d.Add(24*time.Hour - time.Second), nil
	}
	r, err := dueParser.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse due date %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not understand due date %q", s)
	}
	return r.Time, nil
}

// resolveAssignee maps an id or email to a user id. "" and "none" mean
// unassigned.
func resolveAssignee(users []types.User, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.EqualFold(ref, "none") {
		return "", nil
	}
	u, ok := types.FindUser(users, ref)
	if !ok {
		return "", fmt.Errorf("no user matches %q", ref)
	}
	return u.ID, nil
}

// resolveTask finds a task by full id or unique id prefix, the way the
// table prints them.
func resolveTask(tasks []types.Task, ref string) (types.Task, error) {
	if t, ok := types.FindTask(tasks, ref); ok {
		return t, nil
	}
	var matches []types.Task
	for _, t := range tasks {
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return types.Task{}, fmt.Errorf("no task matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return types.Task{}, fmt.Errorf("%q matches %d tasks", ref, len(matches))
	}
}

// writeFormatted writes v as JSON or YAML.
func writeFormatted(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}
