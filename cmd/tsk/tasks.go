package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/collabtask/tasksync/internal/app"
	"github.com/collabtask/tasksync/internal/types"
)

var tasksCmd = &cobra.Command{
	Use:     "tasks",
	Aliases: []string{"task"},
	GroupID: "tasks",
	Short:   "List and change your tasks",
	Long: `List, create, update and delete the tasks you created or were assigned.

Task IDs may be abbreviated to any unique prefix, as shown by 'tsk tasks list'.`,
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks visible to you",
	Run: func(cmd *cobra.Command, args []string) {
		statusFlag, _ := cmd.Flags().GetString("status")
		format, _ := cmd.Flags().GetString("output")

		var status types.Status
		if statusFlag != "" {
			var err error
			if status, err = types.ParseStatus(statusFlag); err != nil {
				fatalf("Error: %v\n", err)
			}
		}

		ctx, cancel := signalContext()
		defer cancel()
		a := openApp(ctx, false)
		defer a.Close()
		requireSession(ctx, a)

		list := loadTasks(ctx, a)
		filtered := types.FilterByStatus(list, status)

		if format != "table" {
			if err := writeFormatted(os.Stdout, format, filtered); err != nil {
				fatalf("Error: %v\n", err)
			}
			return
		}
		out.Println(out.Summary(types.Summarize(list)))
		out.Println("")
		out.Println(out.TaskTable(filtered, a.Clock().Now()))
	},
}

var tasksShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("output")

		ctx, cancel := signalContext()
		defer cancel()
		a := openApp(ctx, false)
		defer a.Close()
		requireSession(ctx, a)

		t, err := resolveTask(loadTasks(ctx, a), args[0])
		if err != nil {
			a.Close()
			fatalf("Error: %v\n", err)
		}
		if format != "table" {
			if err := writeFormatted(os.Stdout, format, t); err != nil {
				fatalf("Error: %v\n", err)
			}
			return
		}
		out.Println(out.TaskDetail(t, a.Clock().Now()))
	},
}

var tasksCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a task",
	Long: `Create a task. The due date accepts RFC 3339, YYYY-MM-DD or natural
language:

  tsk tasks create "Write report" --due "next friday 5pm" --priority high
  tsk tasks create "Review PR" --due tomorrow --assign bob@example.com`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		description, _ := cmd.Flags().GetString("description")
		dueFlag, _ := cmd.Flags().GetString("due")
		priorityFlag, _ := cmd.Flags().GetString("priority")
		statusFlag, _ := cmd.Flags().GetString("status")
		assign, _ := cmd.Flags().GetString("assign")

		ctx, cancel := signalContext()
		defer cancel()
		a := openApp(ctx, true)
		defer a.Close()
		requireSession(ctx, a)

		input := types.CreateTask{
			Title:       strings.Join(args, " "),
			Description: description,
		}
		var err error
		if input.DueDate, err = parseDue(dueFlag, a.Clock().Now()); err != nil {
			a.Close()
			fatalf("Error: %v\n", err)
		}
		if input.Priority, err = types.ParsePriority(priorityFlag); err != nil {
			a.Close()
			fatalf("Error: %v\n", err)
		}
		if statusFlag != "" {
			if input.Status, err = types.ParseStatus(statusFlag); err != nil {
				a.Close()
				fatalf("Error: %v\n", err)
			}
		}
		if assign != "" {
			if input.AssignedToID, err = resolveAssignee(loadUsers(ctx, a), assign); err != nil {
				a.Close()
				fatalf("Error: %v\n", err)
			}
		}

		t, err := a.Commands.Create(ctx, input)
		if err != nil {
			a.Close()
			os.Exit(1)
		}
		out.Println(out.TaskDetail(t, a.Clock().Now()))
	},
}

var tasksUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change fields of a task",
	Long: `Change the given fields of a task; fields without a flag are left alone.

  tsk tasks update 3f2a --status in_progress
  tsk tasks update 3f2a --assign none`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()
		a := openApp(ctx, true)
		defer a.Close()
		requireSession(ctx, a)

		t, err := resolveTask(loadTasks(ctx, a), args[0])
		if err != nil {
			a.Close()
			fatalf("Error: %v\n", err)
		}
		patch, err := buildPatch(ctx, cmd, a)
		if err != nil {
			a.Close()
			fatalf("Error: %v\n", err)
		}
		if patch.Empty() {
			a.Close()
			fatalf("Error: nothing to update (see 'tsk tasks update --help')\n")
		}

		updated, err := a.Commands.Update(ctx, t.ID, patch)
		if err != nil {
			a.Close()
			os.Exit(1)
		}
		out.Println(out.TaskDetail(updated, a.Clock().Now()))
	},
}

var tasksDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a task you created",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()
		a := openApp(ctx, true)
		defer a.Close()
		requireSession(ctx, a)

		t, err := resolveTask(loadTasks(ctx, a), args[0])
		if err != nil {
			a.Close()
			fatalf("Error: %v\n", err)
		}
		if err := a.Commands.Delete(ctx, t.ID); err != nil {
			a.Close()
			os.Exit(1)
		}
	},
}

func init() {
	for _, c := range []*cobra.Command{tasksListCmd, tasksShowCmd} {
		c.Flags().StringP("output", "o", "table", "Output format: table, json, yaml")
	}
	tasksListCmd.Flags().StringP("status", "s", "", "Only tasks with this status (todo, in_progress, review, completed)")

	tasksCreateCmd.Flags().StringP("description", "d", "", "Task description")
	tasksCreateCmd.Flags().String("due", "tomorrow 5pm", "Due date")
	tasksCreateCmd.Flags().StringP("priority", "p", "medium", "Priority: low, medium, high, urgent")
	tasksCreateCmd.Flags().String("status", "", "Initial status (default todo)")
	tasksCreateCmd.Flags().StringP("assign", "a", "", "Assignee email or id")

	tasksUpdateCmd.Flags().String("title", "", "New title")
	tasksUpdateCmd.Flags().StringP("description", "d", "", "New description")
	tasksUpdateCmd.Flags().String("due", "", "New due date")
	tasksUpdateCmd.Flags().StringP("priority", "p", "", "New priority")
	tasksUpdateCmd.Flags().StringP("status", "s", "", "New status")
	tasksUpdateCmd.Flags().StringP("assign", "a", "", "New assignee email or id, or 'none'")

	tasksCmd.AddCommand(tasksListCmd, tasksShowCmd, tasksCreateCmd, tasksUpdateCmd, tasksDeleteCmd)
	rootCmd.AddCommand(tasksCmd)
}

// buildPatch turns the flags that were set into an UpdateTask.
func buildPatch(ctx context.Context, cmd *cobra.Command, a *app.App) (types.UpdateTask, error) {
	var patch types.UpdateTask
	flags := cmd.Flags()

	if flags.Changed("title") {
		v, _ := flags.GetString("title")
		patch.Title = &v
	}
	if flags.Changed("description") {
		v, _ := flags.GetString("description")
		patch.Description = &v
	}
	if flags.Changed("due") {
		v, _ := flags.GetString("due")
		due, err := parseDue(v, a.Clock().Now())
		if err != nil {
			return patch, err
		}
		patch.DueDate = &due
	}
	if flags.Changed("priority") {
		v, _ := flags.GetString("priority")
		p, err := types.ParsePriority(v)
		if err != nil {
			return patch, err
		}
		patch.Priority = &p
	}
	if flags.Changed("status") {
		v, _ := flags.GetString("status")
		s, err := types.ParseStatus(v)
		if err != nil {
			return patch, err
		}
		patch.Status = &s
	}
	if flags.Changed("assign") {
		v, _ := flags.GetString("assign")
		id, err := resolveAssignee(loadUsers(ctx, a), v)
		if err != nil {
			return patch, err
		}
		patch.AssignedToID = &id
	}
	return patch, nil
}

func loadTasks(ctx context.Context, a *app.App) []types.Task {
	v, err := a.Tasks.Load(ctx)
	if err == nil {
		err = v.Err
	}
	if err != nil {
		a.Close()
		fatalf("Error loading tasks: %v\n", err)
	}
	return v.Value
}

func loadUsers(ctx context.Context, a *app.App) []types.User {
	v, err := a.Users.Load(ctx)
	if err == nil {
		err = v.Err
	}
	if err != nil {
		a.Close()
		fatalf("Error loading users: %v\n", err)
	}
	return v.Value
}

var usersCmd = &cobra.Command{
	Use:     "users",
	GroupID: "tasks",
	Short:   "List users tasks can be assigned to",
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("output")

		ctx, cancel := signalContext()
		defer cancel()
		a := openApp(ctx, false)
		defer a.Close()
		requireSession(ctx, a)

		users := loadUsers(ctx, a)
		if format != "table" {
			if err := writeFormatted(os.Stdout, format, users); err != nil {
				fatalf("Error: %v\n", err)
			}
			return
		}
		if len(users) == 0 {
			fmt.Println("No users.")
			return
		}
		out.Println(out.Users(users))
	},
}

func init() {
	usersCmd.Flags().StringP("output", "o", "table", "Output format: table, json, yaml")
	rootCmd.AddCommand(usersCmd)
}
