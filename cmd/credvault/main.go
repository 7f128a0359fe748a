package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "credvault",
	Short:        "credvault stores per-user provider credentials encrypted at rest",
	Long:         "credvault stores per-user provider credentials encrypted with AES-256-GCM and serves them over an authenticated HTTP API. Running it without a subcommand starts the server.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, keygenCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "credvault: %v\n", err)
		os.Exit(1)
	}
}
