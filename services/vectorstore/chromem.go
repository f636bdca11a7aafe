// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/harborml/codeassist/pkg/validation"
)

// ChromemStore is an embedded, file-backed vector store. It keeps the
// whole stack in one process for development and small deployments:
// no database container, state persisted under PERSIST_DIRECTORY.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection

	mu      sync.Mutex
	sources map[string]bool
}

// NewChromemStore opens (or creates) a persistent chromem-go database
// at path. An empty path keeps everything in memory, which the tests
// rely on.
func NewChromemStore(path, collection string) (*ChromemStore, error) {
	if err := validation.ValidateCollectionName(collection); err != nil {
		return nil, err
	}

	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem db at %s: %w", path, err)
		}
	}

	// All embeddings are computed upstream; a text query reaching the
	// embedding func means a caller bypassed the Store interface.
	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("chromem store only accepts precomputed embeddings")
	}

	coll, err := db.GetOrCreateCollection(collection, nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create chromem collection %q: %w", collection, err)
	}

	s := &ChromemStore{
		db:         db,
		collection: coll,
		sources:    make(map[string]bool),
	}
	slog.Info("Opened embedded vector store", "path", path, "collection", collection,
		"documents", coll.Count())
	return s, nil
}

// Heartbeat always succeeds; the store lives in-process.
func (s *ChromemStore) Heartbeat(ctx context.Context) error {
	return nil
}

// EnsureCollection is a no-op; the collection is created in the constructor.
func (s *ChromemStore) EnsureCollection(ctx context.Context) error {
	return nil
}

func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	converted := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		if len(doc.Vector) == 0 {
			return fmt.Errorf("document %s has no embedding", doc.ID)
		}
		converted[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Embedding: doc.Vector,
			Metadata:  metadataToStringMap(doc.Metadata),
		}
	}
	if err := s.collection.AddDocuments(ctx, converted, 1); err != nil {
		return fmt.Errorf("failed to add documents to chromem: %w", err)
	}

	s.mu.Lock()
	for _, doc := range docs {
		if doc.Metadata.RepoName != "" {
			s.sources[doc.Metadata.RepoName] = true
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *ChromemStore) Query(ctx context.Context, vector []float32, topK int) ([]Result, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	// chromem errors when asked for more results than stored documents.
	if topK > count {
		topK = count
	}

	raw, err := s.collection.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query failed: %w", err)
	}

	results := make([]Result, len(raw))
	for i, r := range raw {
		results[i] = Result{
			Content:  r.Content,
			Metadata: metadataFromStringMap(r.Metadata),
			Score:    float64(r.Similarity),
		}
	}
	return results, nil
}

func (s *ChromemStore) ListSources(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sources := make([]string, 0, len(s.sources))
	for source := range s.sources {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	return sources, nil
}

func (s *ChromemStore) DeleteBySource(ctx context.Context, repoName string) error {
	if err := s.collection.Delete(ctx, map[string]string{"repo_name": repoName}, nil); err != nil {
		return fmt.Errorf("failed to delete source %q from chromem: %w", repoName, err)
	}
	s.mu.Lock()
	delete(s.sources, repoName)
	s.mu.Unlock()
	return nil
}

func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	return s.collection.Count(), nil
}

func metadataToStringMap(m Metadata) map[string]string {
	return map[string]string{
		"file_path":  m.FilePath,
		"repo_name":  m.RepoName,
		"file_id":    m.FileID,
		"file_hash":  m.FileHash,
		"file_type":  m.FileType,
		"start_line": strconv.Itoa(m.StartLine),
		"indexed_at": strconv.FormatInt(m.IndexedAt, 10),
	}
}

func metadataFromStringMap(raw map[string]string) Metadata {
	m := Metadata{
		FilePath: raw["file_path"],
		RepoName: raw["repo_name"],
		FileID:   raw["file_id"],
		FileHash: raw["file_hash"],
		FileType: raw["file_type"],
	}
	if v, err := strconv.Atoi(raw["start_line"]); err == nil {
		m.StartLine = v
	}
	if v, err := strconv.ParseInt(raw["indexed_at"], 10, 64); err == nil {
		m.IndexedAt = v
	}
	return m
}

var _ Store = (*ChromemStore)(nil)
