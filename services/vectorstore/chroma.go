// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harborml/codeassist/pkg/validation"
)

var chromaTracer = otel.Tracer("codeassist.vectorstore.chroma")

// ChromaStore talks to the Chroma v1 REST API. This is the backend the
// stack's database container exposes on port 8000; its liveness probe
// is GET /api/v1/heartbeat.
type ChromaStore struct {
	httpClient *http.Client
	baseURL    string
	collection string

	mu           sync.Mutex
	collectionID string
}

// NewChromaStore creates a client for the Chroma HTTP API at baseURL.
func NewChromaStore(baseURL, collection string) (*ChromaStore, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("chroma base URL not set")
	}
	if err := validation.ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	return &ChromaStore{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		collection: collection,
	}, nil
}

// Heartbeat hits /api/v1/heartbeat, the same endpoint the container
// healthcheck uses.
func (s *ChromaStore) Heartbeat(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/v1/heartbeat", nil)
	if err != nil {
		return fmt.Errorf("failed to create heartbeat request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chroma heartbeat failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chroma heartbeat returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// WaitReady polls the heartbeat until the database answers or the
// attempts are exhausted. Used at startup since the app container can
// come up before the database finishes its own boot.
func (s *ChromaStore) WaitReady(ctx context.Context, attempts int, delay time.Duration) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if lastErr = s.Heartbeat(ctx); lastErr == nil {
			return nil
		}
		slog.Warn("Vector DB not ready, retrying...", "attempt", i+1, "error", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("vector DB not ready after %d attempts: %w", attempts, lastErr)
}

type chromaCollectionRequest struct {
	Name        string `json:"name"`
	GetOrCreate bool   `json:"get_or_create"`
}

type chromaCollectionResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EnsureCollection resolves (creating if needed) the collection and
// caches its ID for subsequent calls.
func (s *ChromaStore) EnsureCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collectionID != "" {
		return nil
	}

	payload := chromaCollectionRequest{Name: s.collection, GetOrCreate: true}
	var resp chromaCollectionResponse
	if err := s.post(ctx, "/api/v1/collections", payload, &resp); err != nil {
		return fmt.Errorf("failed to get or create collection %q: %w", s.collection, err)
	}
	if resp.ID == "" {
		return fmt.Errorf("chroma returned an empty collection id for %q", s.collection)
	}
	s.collectionID = resp.ID
	slog.Info("Resolved chroma collection", "name", s.collection, "id", resp.ID)
	return nil
}

func (s *ChromaStore) collectionPath(ctx context.Context, suffix string) (string, error) {
	if err := s.EnsureCollection(ctx); err != nil {
		return "", err
	}
	s.mu.Lock()
	id := s.collectionID
	s.mu.Unlock()
	return fmt.Sprintf("/api/v1/collections/%s%s", id, suffix), nil
}

type chromaAddRequest struct {
	IDs        []string         `json:"ids"`
	Embeddings [][]float32      `json:"embeddings"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
}

func (s *ChromaStore) AddDocuments(ctx context.Context, docs []Document) error {
	ctx, span := chromaTracer.Start(ctx, "ChromaStore.AddDocuments")
	defer span.End()
	span.SetAttributes(attribute.Int("documents.count", len(docs)))

	if len(docs) == 0 {
		return nil
	}

	payload := chromaAddRequest{
		IDs:        make([]string, len(docs)),
		Embeddings: make([][]float32, len(docs)),
		Documents:  make([]string, len(docs)),
		Metadatas:  make([]map[string]any, len(docs)),
	}
	for i, doc := range docs {
		if len(doc.Vector) == 0 {
			err := fmt.Errorf("document %s has no embedding", doc.ID)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		payload.IDs[i] = doc.ID
		payload.Embeddings[i] = doc.Vector
		payload.Documents[i] = doc.Content
		payload.Metadatas[i] = metadataToMap(doc.Metadata)
	}

	path, err := s.collectionPath(ctx, "/add")
	if err != nil {
		return err
	}
	if err := s.post(ctx, path, payload, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to add documents to chroma: %w", err)
	}
	return nil
}

type chromaQueryRequest struct {
	QueryEmbeddings [][]float32 `json:"query_embeddings"`
	NResults        int         `json:"n_results"`
	Include         []string    `json:"include"`
}

type chromaQueryResponse struct {
	IDs       [][]string         `json:"ids"`
	Documents [][]string         `json:"documents"`
	Metadatas [][]map[string]any `json:"metadatas"`
	Distances [][]float64        `json:"distances"`
}

func (s *ChromaStore) Query(ctx context.Context, vector []float32, topK int) ([]Result, error) {
	ctx, span := chromaTracer.Start(ctx, "ChromaStore.Query")
	defer span.End()
	span.SetAttributes(attribute.Int("query.top_k", topK))

	payload := chromaQueryRequest{
		QueryEmbeddings: [][]float32{vector},
		NResults:        topK,
		Include:         []string{"documents", "metadatas", "distances"},
	}

	path, err := s.collectionPath(ctx, "/query")
	if err != nil {
		return nil, err
	}
	var resp chromaQueryResponse
	if err := s.post(ctx, path, payload, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("chroma query failed: %w", err)
	}

	// Chroma nests results per query embedding; we always send one.
	if len(resp.Documents) == 0 {
		return nil, nil
	}
	results := make([]Result, 0, len(resp.Documents[0]))
	for i, content := range resp.Documents[0] {
		r := Result{Content: content}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			r.Metadata = metadataFromMap(resp.Metadatas[0][i])
		}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			// Cosine distance in [0,2] mapped onto a similarity score.
			r.Score = 1 - resp.Distances[0][i]/2
		}
		results = append(results, r)
	}
	span.SetAttributes(attribute.Int("query.results", len(results)))
	return results, nil
}

type chromaGetRequest struct {
	Include []string `json:"include"`
}

type chromaGetResponse struct {
	Metadatas []map[string]any `json:"metadatas"`
}

func (s *ChromaStore) ListSources(ctx context.Context) ([]string, error) {
	path, err := s.collectionPath(ctx, "/get")
	if err != nil {
		return nil, err
	}
	var resp chromaGetResponse
	if err := s.post(ctx, path, chromaGetRequest{Include: []string{"metadatas"}}, &resp); err != nil {
		return nil, fmt.Errorf("failed to list chroma documents: %w", err)
	}

	seen := make(map[string]bool)
	var sources []string
	for _, meta := range resp.Metadatas {
		repo, _ := meta["repo_name"].(string)
		if repo != "" && !seen[repo] {
			seen[repo] = true
			sources = append(sources, repo)
		}
	}
	return sources, nil
}

type chromaDeleteRequest struct {
	Where map[string]any `json:"where"`
}

func (s *ChromaStore) DeleteBySource(ctx context.Context, repoName string) error {
	path, err := s.collectionPath(ctx, "/delete")
	if err != nil {
		return err
	}
	payload := chromaDeleteRequest{Where: map[string]any{"repo_name": repoName}}
	if err := s.post(ctx, path, payload, nil); err != nil {
		return fmt.Errorf("failed to delete source %q from chroma: %w", repoName, err)
	}
	return nil
}

func (s *ChromaStore) Count(ctx context.Context) (int, error) {
	path, err := s.collectionPath(ctx, "/count")
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create count request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("chroma count failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read chroma count response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("chroma count returned status %d: %s", resp.StatusCode, string(body))
	}
	var count int
	if err := json.Unmarshal(body, &count); err != nil {
		return 0, fmt.Errorf("failed to parse chroma count response: %w", err)
	}
	return count, nil
}

// post sends a JSON POST and optionally decodes the response into out.
func (s *ChromaStore) post(ctx context.Context, path string, payload any, out any) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request for %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, string(body))
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to parse response from %s: %w", path, err)
		}
	}
	return nil
}

func metadataToMap(m Metadata) map[string]any {
	return map[string]any{
		"file_path":  m.FilePath,
		"repo_name":  m.RepoName,
		"file_id":    m.FileID,
		"file_hash":  m.FileHash,
		"file_type":  m.FileType,
		"start_line": m.StartLine,
		"indexed_at": m.IndexedAt,
	}
}

func metadataFromMap(raw map[string]any) Metadata {
	m := Metadata{}
	if v, ok := raw["file_path"].(string); ok {
		m.FilePath = v
	}
	if v, ok := raw["repo_name"].(string); ok {
		m.RepoName = v
	}
	if v, ok := raw["file_id"].(string); ok {
		m.FileID = v
	}
	if v, ok := raw["file_hash"].(string); ok {
		m.FileHash = v
	}
	if v, ok := raw["file_type"].(string); ok {
		m.FileType = v
	}
	if v, ok := raw["start_line"].(float64); ok {
		m.StartLine = int(v)
	}
	if v, ok := raw["indexed_at"].(float64); ok {
		m.IndexedAt = int64(v)
	}
	return m
}

// Compile-time interface check.
var _ Store = (*ChromaStore)(nil)
