package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/loykin/proctrack"
	"github.com/loykin/proctrack/pkg/client"
)

func newClient(f *ClientFlags) *client.Client {
	cfg := client.Config{BaseURL: f.APIUrl, Timeout: f.APITimeout, Insecure: f.Insecure}
	if f.CACert != "" {
		cfg.TLS = &client.TLSClientConfig{Enabled: true, CACert: f.CACert}
	}
	return client.New(cfg)
}

func mustRequire(cmd *cobra.Command, names ...string) {
	for _, n := range names {
		if err := cmd.MarkFlagRequired(n); err != nil {
			panic(err)
		}
	}
}

func createCreateCommand() *cobra.Command {
	cf := &ClientFlags{}
	f := &CreateFlags{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new process",
		Long: `Register a new process record. The start time defaults to now.

Examples:
  proctrack create --id=import-42 --file-name=data.csv --file-path=/srv/in/data.csv
  proctrack create --id=report-7 --start="2024-01-01 09:00:00" --description="monthly report"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client.CreateRequest{ProcessID: f.ProcessID, StartTime: f.StartTime}
			if req.StartTime == "" {
				req.StartTime = proctrack.Now()
			}
			if cmd.Flags().Changed("file-name") {
				req.FileName = &f.FileName
			}
			if cmd.Flags().Changed("file-path") {
				req.FilePath = &f.FilePath
			}
			if cmd.Flags().Changed("description") {
				req.Description = &f.Description
			}
			if cmd.Flags().Changed("percentage") {
				req.Percentage = &f.Percentage
			}
			if err := newClient(cf).Create(cmd.Context(), req); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", f.ProcessID)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.ProcessID, "id", "", "process id (required)")
	cmd.Flags().StringVar(&f.FileName, "file-name", "", "file name")
	cmd.Flags().StringVar(&f.FilePath, "file-path", "", "file path")
	cmd.Flags().StringVar(&f.Description, "description", "", "free-form description")
	cmd.Flags().StringVar(&f.StartTime, "start", "", `start time "YYYY-MM-DD HH:MM:SS" (default now)`)
	cmd.Flags().Float64Var(&f.Percentage, "percentage", 0, "initial percentage 0-100")
	addClientFlags(cmd, cf)
	mustRequire(cmd, "id")
	return cmd
}

func createProgressCommand() *cobra.Command {
	cf := &ClientFlags{}
	f := &ProgressFlags{}
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Report process progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient(cf).Progress(cmd.Context(), f.ProcessID, f.Percentage); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s at %g%%\n", f.ProcessID, f.Percentage)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.ProcessID, "id", "", "process id (required)")
	cmd.Flags().Float64Var(&f.Percentage, "percentage", 0, "percentage 0-100 (required)")
	addClientFlags(cmd, cf)
	mustRequire(cmd, "id", "percentage")
	return cmd
}

func createCompleteCommand() *cobra.Command {
	cf := &ClientFlags{}
	f := &CompleteFlags{}
	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Mark a process finished",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient(cf).Complete(cmd.Context(), f.ProcessID, f.EndTime); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "completed %s\n", f.ProcessID)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.ProcessID, "id", "", "process id (required)")
	cmd.Flags().StringVar(&f.EndTime, "end", "", `end time "YYYY-MM-DD HH:MM:SS" (default server now)`)
	addClientFlags(cmd, cf)
	mustRequire(cmd, "id")
	return cmd
}

func createListCommand() *cobra.Command {
	cf := &ClientFlags{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print every tracked process",
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := newClient(cf).List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ps)
		},
	}
	addClientFlags(cmd, cf)
	return cmd
}

func createHealthCommand() *cobra.Command {
	cf := &ClientFlags{}
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the server is up",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient(cf).Health(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	addClientFlags(cmd, cf)
	return cmd
}

func createWatchCommand() *cobra.Command {
	cf := &ClientFlags{}
	f := &WatchFlags{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live snapshots",
		Long: `Connect to the live channel and print every snapshot as one JSON line.
Stops on Ctrl-C, when the server closes the channel, or after the first
snapshot with --once.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), newClient(cf), cmd.OutOrStdout(), f.Once)
		},
	}
	cmd.Flags().BoolVar(&f.Once, "once", false, "exit after the first snapshot")
	addClientFlags(cmd, cf)
	return cmd
}

var errWatchDone = errors.New("watch done")

func runWatch(ctx context.Context, c *client.Client, w io.Writer, once bool) error {
	err := c.Watch(ctx, func(ps []client.Process) error {
		b, err := json.Marshal(ps)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, string(b)); err != nil {
			return err
		}
		if once {
			return errWatchDone
		}
		return nil
	})
	if errors.Is(err, errWatchDone) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
