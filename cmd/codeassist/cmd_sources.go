// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/harborml/codeassist/services/assistant/datatypes"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	sourcesDelete     string // Repository to remove from the index
	sourcesJSONOutput bool   // Print the raw JSON response
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List or delete indexed repositories",
	Long: `Lists the repositories currently in the vector store.

Examples:
  codeassist sources
  codeassist sources --delete platform/core
  codeassist sources --delete https://github.com/org/repo`,
	RunE: runSourcesCommand,
}

func init() {
	sourcesCmd.Flags().StringVar(&sourcesDelete, "delete", "",
		"Delete every indexed chunk belonging to this repository")
	sourcesCmd.Flags().BoolVar(&sourcesJSONOutput, "json", false,
		"Print the raw JSON response")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runSourcesCommand(cmd *cobra.Command, args []string) error {
	client := newAPIClient(serverURL)

	if sourcesDelete != "" {
		path := "/api/v1/documents?source=" + url.QueryEscape(sourcesDelete)
		var resp datatypes.DeleteSourceResponse
		if err := client.call("DELETE", path, nil, &resp); err != nil {
			return err
		}
		fmt.Printf("Deleted indexed content for %s\n", resp.Source)
		return nil
	}

	var resp datatypes.SourcesResponse
	if err := client.call("GET", "/api/v1/documents", nil, &resp); err != nil {
		return err
	}
	if sourcesJSONOutput {
		return printJSON(os.Stdout, resp)
	}
	if resp.Count == 0 {
		fmt.Println("No repositories indexed yet.")
		return nil
	}
	fmt.Printf("%d indexed repositories:\n", resp.Count)
	for _, source := range resp.Sources {
		fmt.Printf("  - %s\n", source)
	}
	return nil
}
