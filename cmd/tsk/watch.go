package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/collabtask/tasksync/internal/app"
	"github.com/collabtask/tasksync/internal/cache"
	"github.com/collabtask/tasksync/internal/config"
	"github.com/collabtask/tasksync/internal/session"
	"github.com/collabtask/tasksync/internal/types"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "tasks",
	Short:   "Live dashboard of your tasks",
	Long: `Show your tasks and keep them current. Changes made by other users
arrive over the live channel and the list is refetched; assignments raise a
notice. The connection is re-established automatically if it drops.

Editing log.level in the config file takes effect without a restart.
Press Ctrl+C to stop.`,
	Run: func(cmd *cobra.Command, args []string) {
		status, _ := cmd.Flags().GetString("status")
		var filter types.Status
		if status != "" {
			var err error
			if filter, err = types.ParseStatus(status); err != nil {
				fatalf("Error: %v\n", err)
			}
		}

		ctx, cancel := signalContext()
		defer cancel()
		a := openApp(ctx, false)
		defer a.Close()

		loaded.Watch(func(cfg *config.Config) {
			level, err := config.ParseLevel(cfg.Log.Level)
			if err != nil {
				logger.Warn("ignoring invalid log level", "level", cfg.Log.Level)
				return
			}
			logger.SetLevel(level)
		}, func(err error) {
			logger.Warn("config reload failed", "error", err)
		})

		screen := termenv.NewOutput(os.Stdout)
		tty := term.IsTerminal(int(os.Stdout.Fd()))

		err := a.Watch(ctx, func(v app.View) {
			if tty {
				screen.ClearScreen()
			}
			fmt.Fprintln(os.Stdout, renderDashboard(v, filter))
			if v.Decision == session.DecisionRedirect {
				cancel()
			}
		})
		if err != nil {
			a.Close()
			fatalf("Error: %v\n", err)
		}
	},
}

func init() {
	watchCmd.Flags().StringP("status", "s", "", "Only show tasks with this status")
	rootCmd.AddCommand(watchCmd)
}

func renderDashboard(v app.View, filter types.Status) string {
	var b strings.Builder
	switch v.Decision {
	case session.DecisionWait:
		b.WriteString(out.RenderMuted("Resolving session..."))
		return b.String()
	case session.DecisionRedirect:
		b.WriteString(out.RenderWarn("Not logged in.") + " Run 'tsk login' and start 'tsk watch' again.")
		return b.String()
	}

	live := out.RenderFail("● offline")
	if v.Live {
		live = out.RenderPass("● live")
	}
	fmt.Fprintf(&b, "%s, %s!  %s\n\n", types.Greeting(v.Now), out.RenderBold(v.Identity.User.DisplayName()), live)

	switch {
	case !v.Tasks.HasValue && v.Tasks.Err != nil:
		fmt.Fprintf(&b, "%s %v\n", out.RenderFail("Failed to load tasks:"), v.Tasks.Err)
	case !v.Tasks.HasValue:
		b.WriteString(out.RenderMuted("Loading tasks...") + "\n")
	default:
		b.WriteString(out.Summary(types.Summarize(v.Tasks.Value)) + "\n\n")
		b.WriteString(out.TaskTable(types.FilterByStatus(v.Tasks.Value, filter), v.Now) + "\n")
		if v.Tasks.Err != nil {
			fmt.Fprintf(&b, "%s %v\n", out.RenderWarn("Refresh failed:"), v.Tasks.Err)
		}
		if v.Tasks.State == cache.StateFetching {
			b.WriteString(out.RenderMuted("refreshing...") + "\n")
		}
	}

	if len(v.Notices) > 0 {
		b.WriteByte('\n')
		for _, n := range v.Notices {
			b.WriteString(out.Notice(n) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
