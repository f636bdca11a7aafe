// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harborml/codeassist/pkg/validation"
	"github.com/harborml/codeassist/services/assistant/datatypes"
	"github.com/harborml/codeassist/services/vectorstore"
)

// ListSources returns the distinct repositories with indexed chunks.
func ListSources(store vectorstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sources, err := store.ListSources(c.Request.Context())
		if err != nil {
			slog.Error("Failed to list sources", "error", err)
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: "Failed to query sources"})
			return
		}
		if sources == nil {
			sources = []string{}
		}
		c.JSON(http.StatusOK, datatypes.SourcesResponse{Sources: sources, Count: len(sources)})
	}
}

// DeleteBySource removes every chunk belonging to one repository.
// The repository name arrives as the "source" query parameter because
// repo names contain slashes.
func DeleteBySource(store vectorstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		source := c.Query("source")
		if source == "" {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "Missing 'source' query parameter"})
			return
		}
		// Gerrit sources are project names, GitHub sources are URLs.
		if err := validation.ValidateRepoName(source); err != nil {
			if urlErr := validation.ValidateRepoURL(source); urlErr != nil {
				c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error()})
				return
			}
		}

		if err := store.DeleteBySource(c.Request.Context(), source); err != nil {
			slog.Error("Failed to delete source", "source", source, "error", err)
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: "Failed to delete source"})
			return
		}
		slog.Info("Deleted indexed source", "source", source)
		c.JSON(http.StatusOK, datatypes.DeleteSourceResponse{Source: source, Deleted: true})
	}
}
