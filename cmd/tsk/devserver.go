package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/collabtask/tasksync/internal/devserver"
)

var devserverCmd = &cobra.Command{
	Use:     "devserver",
	GroupID: "advanced",
	Short:   "Run an in-memory task service for local use",
	Long: `Start a self-contained task service on this machine. It serves the same
REST API and live channel as the real backend, keeping users, sessions and
tasks in memory until it stops.

Example usage:
  tsk devserver                      # listen on localhost:5000
  tsk devserver --addr :8080         # custom address

Point the client at it with api.url and live.url (the defaults already
match localhost:5000).`,
	Run: func(cmd *cobra.Command, args []string) {
		addr, _ := cmd.Flags().GetString("addr")

		cfg := devserver.DefaultConfig()
		cfg.Addr = addr
		cfg.Logger = logger.Logger

		server := devserver.New(cfg)
		if err := server.Start(); err != nil {
			fatalf("Error: failed to start devserver: %v\n", err)
		}

		fmt.Printf("%s Task service listening\n", out.RenderPass("✓"))
		fmt.Printf("   REST:   %s\n", server.APIURL())
		fmt.Printf("   Live:   %s\n", server.SocketURL())
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signalContext()
		defer cancel()
		<-ctx.Done()

		fmt.Println("\nShutting down...")
		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	devserverCmd.Flags().String("addr", devserver.DefaultConfig().Addr, "Address to listen on")
	rootCmd.AddCommand(devserverCmd)
}
