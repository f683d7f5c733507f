package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command with every subcommand attached
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	root := createRootCommand(globalFlags)
	root.AddCommand(
		createServeCommand(globalFlags),
		createCreateCommand(),
		createProgressCommand(),
		createCompleteCommand(),
		createListCommand(),
		createHealthCommand(),
		createWatchCommand(),
	)
	return root
}

// createRootCommand creates the root command with minimal persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "proctrack",
		Short: "Track background jobs and stream their progress",
		Long: `Proctrack records the lifecycle of long-running jobs (start, progress,
completion) and pushes the full table to live websocket subscribers.

Examples:
  proctrack serve --config=proctrack.toml
  proctrack create --id=import-42 --file-name=data.csv
  proctrack progress --id=import-42 --percentage=60
  proctrack complete --id=import-42
  proctrack watch --api-url=http://remote:8000`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}
