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
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harborml/codeassist/services/assistant/datatypes"
	"github.com/harborml/codeassist/services/indexer"
	"github.com/harborml/codeassist/services/vectorstore"
)

// IndexManager is the part of the indexing manager the handlers need.
type IndexManager interface {
	Trigger() bool
	Status() indexer.Status
}

// TriggerIndex requests an immediate indexing run. Responds 202 when
// the run was scheduled and 409 when one is already in progress.
func TriggerIndex(manager IndexManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !manager.Trigger() {
			c.JSON(http.StatusConflict, datatypes.ErrorResponse{Error: "Indexing is already in progress"})
			return
		}
		slog.Info("Indexing run triggered via API")
		c.JSON(http.StatusAccepted, gin.H{"status": "indexing scheduled"})
	}
}

// IndexStatus reports the background loop's state and the stored
// document count.
func IndexStatus(manager IndexManager, store vectorstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := manager.Status()

		count, err := store.Count(c.Request.Context())
		if err != nil {
			slog.Warn("Failed to count documents for status", "error", err)
			count = -1
		}

		resp := datatypes.IndexStatusResponse{
			State:     string(status.State),
			LastError: status.LastError,
			Documents: count,
		}
		if !status.LastIndexed.IsZero() {
			resp.LastIndexed = status.LastIndexed.UTC().Format(time.RFC3339)
		}
		c.JSON(http.StatusOK, resp)
	}
}
