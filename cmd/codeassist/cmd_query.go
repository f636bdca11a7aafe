// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harborml/codeassist/services/assistant/datatypes"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var queryJSONOutput bool // Print the raw JSON response

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var queryCmd = &cobra.Command{
	Use:   "query \"<question>\"",
	Short: "Ask a question about the indexed code",
	Long: `Sends a question through the RAG pipeline and prints the answer
with the source files it was grounded on.

Examples:
  codeassist query "How does the chunking work?"
  codeassist query --json "Where is the retry logic?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQueryCommand,
}

func init() {
	queryCmd.Flags().BoolVar(&queryJSONOutput, "json", false,
		"Print the raw JSON response")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runQueryCommand(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	client := newAPIClient(serverURL)

	var resp datatypes.QueryResponse
	if err := client.call("POST", "/api/v1/query",
		datatypes.QueryRequest{Query: question}, &resp); err != nil {
		return err
	}

	if queryJSONOutput {
		return printJSON(os.Stdout, resp)
	}

	fmt.Println(resp.Answer)
	if len(resp.SourceFiles) > 0 {
		fmt.Println("\nSources:")
		for _, file := range resp.SourceFiles {
			fmt.Printf("  - %s\n", file)
		}
	}
	if resp.Model != "" {
		fmt.Printf("\nModel: %s\n", resp.Model)
	}
	return nil
}
