// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the Gin handlers for the assistant API.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harborml/codeassist/services/assistant/datatypes"
	"github.com/harborml/codeassist/services/rag"
)

// QueryPipeline is the part of the RAG pipeline the query handler
// needs.
type QueryPipeline interface {
	Query(ctx context.Context, query string, embedding []float32) (*rag.Answer, error)
}

// HandleQuery answers a question about the indexed code.
func HandleQuery(pipeline QueryPipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "Invalid request body: " + err.Error()})
			return
		}
		slog.Info("Received query", "length", len(req.Query))

		answer, err := pipeline.Query(c.Request.Context(), req.Query, req.QueryEmbedding)
		if err != nil {
			slog.Error("Error processing query", "error", err)
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		c.JSON(http.StatusOK, datatypes.QueryResponse{
			Answer:      answer.Text,
			SourceFiles: answer.SourceFiles,
			Model:       answer.Model,
		})
	}
}
