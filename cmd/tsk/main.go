package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/collabtask/tasksync/internal/app"
	"github.com/collabtask/tasksync/internal/config"
	"github.com/collabtask/tasksync/internal/logging"
	"github.com/collabtask/tasksync/internal/notify"
	"github.com/collabtask/tasksync/internal/session"
	"github.com/collabtask/tasksync/internal/ui"
)

var (
	configPath string
	logLevel   string

	loaded *config.Loaded
	logger *logging.Logger
	out    *ui.Printer
)

var rootCmd = &cobra.Command{
	Use:   "tsk",
	Short: "tsk - collaborative task manager client",
	Long: `tsk talks to a collaborative task service. It keeps a local cache of
your tasks, stays signed in between invocations and, with 'tsk watch',
follows changes made by other users as they happen.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		loaded, err = config.Load(configPath)
		if err != nil {
			return err
		}
		cfg := loaded.Config()
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		level, err := config.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		logger, err = logging.New(logging.Options{
			Level:      level,
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		})
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		slog.SetDefault(logger.Logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Close()
		}
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "session", Title: "Session:"},
		&cobra.Group{ID: "tasks", Title: "Tasks:"},
		&cobra.Group{ID: "advanced", Title: "Advanced:"},
	)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: first of "+config.DefaultPath()+", ./tsk.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	out = ui.NewPrinter(os.Stdout)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openApp builds the client. With echoNotices, every notice the app posts
// is printed as it happens, which is how one-shot commands report results.
func openApp(ctx context.Context, echoNotices bool) *app.App {
	a, err := app.New(ctx, app.Options{Config: loaded.Config(), Logger: logger.Logger})
	if err != nil {
		fatalf("Error: %v\n", err)
	}
	if echoNotices {
		a.Notices.Subscribe(func(e notify.Event) {
			if !e.Dismissed {
				out.Println(out.Notice(e.Notice))
			}
		})
	}
	return a
}

// requireSession resolves the identity and exits unless someone is signed in.
func requireSession(ctx context.Context, a *app.App) session.Identity {
	id := a.Session.Resolve(ctx)
	switch session.Decide(id) {
	case session.DecisionRender:
		return id
	case session.DecisionWait:
		_ = a.Close()
		fatalf("Error: timed out resolving the session\n")
	default:
		_ = a.Close()
		fatalf("Error: not logged in (run 'tsk login')\n")
	}
	return id
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
	if logger != nil {
		_ = logger.Close()
	}
	os.Exit(1)
}
