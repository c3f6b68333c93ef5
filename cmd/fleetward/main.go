package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	Listen        string
	BasePath      string
	MetricsListen string
	HistoryDSN    string
}

// StatusFlags holds flags for the status client command.
type StatusFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	serveFlags := &ServeFlags{}
	statusFlags := &StatusFlags{}

	root := &cobra.Command{
		Use:   "fleetward",
		Short: "fleetward keeps a watched script alive on a fleet of SSH hosts",
		Long: "fleetward periodically connects to each configured host over SSH,\n" +
			"verifies the watched script is running, restarts it when absent, and\n" +
			"serves the observed state over HTTP.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&globalFlags.ConfigPath, "config", "c", "", "path to TOML config (hosts may also come from HOSTNAME_N env vars)")

	root.AddCommand(
		createServeCommand(globalFlags, serveFlags),
		createCheckCommand(globalFlags),
		createStatusCommand(statusFlags),
		createVersionCommand(),
	)
	return root
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("fleetward", version)
		},
	}
}
