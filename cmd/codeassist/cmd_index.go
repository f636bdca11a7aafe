// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/harborml/codeassist/services/assistant/datatypes"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	indexStatusOnly bool // Only show status, do not trigger a run
	indexJSONOutput bool // Print the raw JSON response
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Trigger an indexing run or show its status",
	Long: `Triggers an immediate repository indexing run on the service.

Examples:
  codeassist index            # Trigger a run now
  codeassist index --status   # Show loop state and document count`,
	RunE: runIndexCommand,
}

func init() {
	indexCmd.Flags().BoolVar(&indexStatusOnly, "status", false,
		"Show indexing status instead of triggering a run")
	indexCmd.Flags().BoolVar(&indexJSONOutput, "json", false,
		"Print the raw JSON response")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runIndexCommand(cmd *cobra.Command, args []string) error {
	client := newAPIClient(serverURL)

	if indexStatusOnly {
		var status datatypes.IndexStatusResponse
		if err := client.call("GET", "/api/v1/index/status", nil, &status); err != nil {
			return err
		}
		if indexJSONOutput {
			return printJSON(os.Stdout, status)
		}
		fmt.Printf("State:       %s\n", status.State)
		fmt.Printf("Documents:   %d\n", status.Documents)
		if status.LastIndexed != "" {
			fmt.Printf("Last run:    %s\n", status.LastIndexed)
		}
		if status.LastError != "" {
			fmt.Printf("Last error:  %s\n", status.LastError)
		}
		return nil
	}

	if err := client.call("POST", "/api/v1/index", struct{}{}, nil); err != nil {
		return err
	}
	fmt.Println("Indexing run scheduled.")
	return nil
}

// printJSON pretty-prints v for --json output.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
