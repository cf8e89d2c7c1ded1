package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/collabtask/tasksync/internal/config"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "advanced",
	Short:   "Inspect or create the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with the built-in defaults",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		path := config.DefaultPath()
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefault(path, force); err != nil {
			fatalf("Error: %v\n", err)
		}
		fmt.Printf("%s Wrote %s\n", out.RenderPass("✓"), path)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and TSK_*
environment variables have been applied.`,
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("output")
		cfg := loaded.Config()

		if file := loaded.File(); file != "" {
			fmt.Fprintf(os.Stderr, "# from %s\n", file)
		} else {
			fmt.Fprintln(os.Stderr, "# no config file, defaults and environment only")
		}

		var err error
		switch format {
		case "toml":
			err = config.EncodeTOML(os.Stdout, cfg)
		case "yaml":
			err = config.EncodeYAML(os.Stdout, cfg)
		default:
			err = fmt.Errorf("unknown output format %q (want yaml or toml)", format)
		}
		if err != nil {
			fatalf("Error: %v\n", err)
		}
	},
}

func init() {
	configInitCmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")
	configShowCmd.Flags().StringP("output", "o", "yaml", "Output format: yaml, toml")

	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
