// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// codeassist is the command line client for the assistant service.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/harborml/codeassist/pkg/logging"
)

// serverURL is where the assistant service listens. Settable with
// --server or the CODEASSIST_SERVER environment variable.
var serverURL string

var rootCmd = &cobra.Command{
	Use:   "codeassist",
	Short: "Ask questions about your indexed repositories",
	Long: `codeassist talks to the code assistant service.

Examples:
  codeassist query "How does the indexing loop schedule retries?"
  codeassist index
  codeassist sources
  codeassist health`,
	SilenceUsage: true,
}

func init() {
	defaultServer := os.Getenv("CODEASSIST_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer,
		"Base URL of the assistant service")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		// CLI output goes to stdout; structured logging stays out of
		// the way unless something goes wrong.
		logger := logging.New(logging.Config{Level: logging.LevelWarn, Service: "codeassist-cli"})
		slog.SetDefault(logger.Slog())
	}

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
