// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package vectorstore abstracts the vector database behind a single
// Store interface with three backends: the Chroma HTTP API (the stack's
// default database container), an embedded chromem-go store for
// single-binary deployments, and Weaviate.
//
// Embeddings are always computed by the caller and passed in; no backend
// is configured with a server-side vectorizer.
package vectorstore

import "context"

// Metadata describes where a chunk of indexed content came from.
type Metadata struct {
	FilePath  string `json:"file_path"`
	RepoName  string `json:"repo_name"`
	FileID    string `json:"file_id"`
	FileHash  string `json:"file_hash"`
	FileType  string `json:"file_type"`
	StartLine int    `json:"start_line"`
	IndexedAt int64  `json:"indexed_at"`
}

// Document is a single embedded chunk ready for storage.
type Document struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata Metadata
}

// Result is a retrieved chunk with its similarity score.
// Score is normalized to [0,1] where higher is more similar.
type Result struct {
	Content  string
	Metadata Metadata
	Score    float64
}

// Store is the contract every vector database backend implements.
//
// Implementations must be safe for concurrent use: the indexing loop
// writes while query handlers read.
type Store interface {
	// Heartbeat reports whether the database is reachable and live.
	Heartbeat(ctx context.Context) error

	// EnsureCollection creates the collection/class if it does not
	// exist. Idempotent.
	EnsureCollection(ctx context.Context) error

	// AddDocuments stores embedded chunks. Every document must carry a
	// vector; a document without one is an error.
	AddDocuments(ctx context.Context, docs []Document) error

	// Query returns the topK nearest chunks to the given embedding.
	// An empty result is not an error.
	Query(ctx context.Context, vector []float32, topK int) ([]Result, error)

	// ListSources returns the distinct repositories with indexed chunks.
	ListSources(ctx context.Context) ([]string, error)

	// DeleteBySource removes every chunk belonging to a repository.
	DeleteBySource(ctx context.Context, repoName string) error

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
}
