// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides request and response structures for the
// assistant service API.
package datatypes

type QueryRequest struct {
	Query string `json:"query" binding:"required,min=1,max=1000"`
	// QueryEmbedding lets a caller supply a precomputed vector and skip
	// the embedding call. Used by batch evaluation tooling.
	QueryEmbedding []float32 `json:"query_embedding,omitempty"`
}

type QueryResponse struct {
	Answer      string   `json:"answer"`
	SourceFiles []string `json:"source_files"`
	Model       string   `json:"model,omitempty"`
}

type IndexStatusResponse struct {
	State       string `json:"state"`
	LastIndexed string `json:"last_indexed,omitempty"`
	LastError   string `json:"last_error,omitempty"`
	Documents   int    `json:"documents"`
}

type SourcesResponse struct {
	Sources []string `json:"sources"`
	Count   int      `json:"count"`
}

type DeleteSourceResponse struct {
	Source  string `json:"source"`
	Deleted bool   `json:"deleted"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
