package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dslDir   string
	enumsDir string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "graphguard",
	Short: "GraphGuard - metadata-driven validation of entity graphs",
	Long: `GraphGuard validates object graphs against a DSL schema before they are
inserted, updated or deleted.

The same engine backs the HTTP server (cmd/server). The CLI is meant for
schema authors and CI: lint the DSL, or validate a JSON document against
seed data without starting a server.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dslDir, "dsl", "dsl", "DSL directory")
	rootCmd.PersistentFlags().StringVar(&enumsDir, "enums", "reference/enums", "enum catalog directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
