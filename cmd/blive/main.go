package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "blive",
		Short: "Client for the Bilibili live open platform",
		Long: `blive starts an app session against the live open platform,
joins the real-time event stream, and prints the events it receives.

Credentials come from a TOML config file (see --config).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		connectCmd(),
		heartbeatCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
