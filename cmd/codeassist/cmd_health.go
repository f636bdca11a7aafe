// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harborml/codeassist/services/assistant/datatypes"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the assistant service is up",
	RunE:  runHealthCommand,
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runHealthCommand(cmd *cobra.Command, args []string) error {
	client := newAPIClient(serverURL)

	var resp datatypes.HealthResponse
	if err := client.call("GET", "/health", nil, &resp); err != nil {
		return err
	}
	fmt.Printf("Service at %s is %s\n", serverURL, resp.Status)
	return nil
}
