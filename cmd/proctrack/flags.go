package main

import (
	"time"

	"github.com/spf13/cobra"
)

// GlobalFlags holds minimal global/persistent flags for CLI commands
type GlobalFlags struct {
	ConfigPath string
}

// ClientFlags selects and configures the remote server for client commands.
type ClientFlags struct {
	APIUrl     string
	APITimeout time.Duration
	Insecure   bool
	CACert     string
}

type CreateFlags struct {
	ProcessID   string
	FileName    string
	FilePath    string
	Description string
	StartTime   string
	Percentage  float64
}

type ProgressFlags struct {
	ProcessID  string
	Percentage float64
}

type CompleteFlags struct {
	ProcessID string
	EndTime   string
}

type WatchFlags struct {
	Once bool
}

func addClientFlags(cmd *cobra.Command, f *ClientFlags) {
	cmd.Flags().StringVar(&f.APIUrl, "api-url", "http://localhost:8000", "server URL including base path (e.g. http://host:8000/api)")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", 10*time.Second, "request timeout")
	cmd.Flags().BoolVar(&f.Insecure, "insecure", false, "skip TLS certificate verification")
	cmd.Flags().StringVar(&f.CACert, "ca-cert", "", "CA certificate file for https servers")
}
