// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var weaviateTracer = otel.Tracer("codeassist.vectorstore.weaviate")

// codeChunkClass is the Weaviate class holding indexed code chunks.
const codeChunkClass = "CodeChunk"

// WeaviateStore implements Store on top of a Weaviate instance.
type WeaviateStore struct {
	client *weaviate.Client
}

// NewWeaviateStore creates a store for the Weaviate instance at host.
func NewWeaviateStore(host, scheme string) (*WeaviateStore, error) {
	if host == "" {
		return nil, fmt.Errorf("weaviate host not set")
	}
	if scheme == "" {
		scheme = "http"
	}
	client, err := weaviate.NewClient(weaviate.Config{Host: host, Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	return &WeaviateStore{client: client}, nil
}

func (s *WeaviateStore) Heartbeat(ctx context.Context) error {
	live, err := s.client.Misc().LiveChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate liveness check failed: %w", err)
	}
	if !live {
		return fmt.Errorf("weaviate reports not live")
	}
	return nil
}

// codeChunkSchema returns the class definition for indexed chunks.
// Vectorizer is "none": all embeddings are computed by this service.
func codeChunkSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       codeChunkClass,
		Description: "A chunk of source code or documentation from an indexed repository.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "The chunk text.",
				Tokenization: "word",
			},
			{
				Name:            "file_path",
				DataType:        []string{"text"},
				Description:     "Path of the file within its repository.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "repo_name",
				DataType:        []string{"text"},
				Description:     "The repository the chunk came from.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "file_id",
				DataType:        []string{"text"},
				Description:     "repo:path:hash identity used for change tracking.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "file_hash",
				DataType:        []string{"text"},
				Description:     "SHA-256 of the source file contents.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "file_type",
				DataType:        []string{"text"},
				Description:     "File extension without the leading dot.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "start_line",
				DataType:        []string{"int"},
				Description:     "Approximate starting line of the chunk.",
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "indexed_at",
				DataType:        []string{"number"},
				Description:     "Unix milliseconds when the chunk was indexed.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

func (s *WeaviateStore) EnsureCollection(ctx context.Context) error {
	class := codeChunkSchema()
	_, err := s.client.Schema().ClassGetter().WithClassName(class.Class).Do(ctx)
	if err == nil {
		slog.Info("Schema already exists", "class", class.Class)
		return nil
	}
	slog.Info("Schema not found, creating it...", "class", class.Class)
	if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create schema for class %s: %w", class.Class, err)
	}
	slog.Info("Successfully created schema", "class", class.Class)
	return nil
}

func (s *WeaviateStore) AddDocuments(ctx context.Context, docs []Document) error {
	ctx, span := weaviateTracer.Start(ctx, "WeaviateStore.AddDocuments")
	defer span.End()
	span.SetAttributes(attribute.Int("documents.count", len(docs)))

	if len(docs) == 0 {
		return nil
	}

	objects := make([]*models.Object, len(docs))
	for i, doc := range docs {
		if len(doc.Vector) == 0 {
			return fmt.Errorf("document %s has no embedding", doc.ID)
		}
		objects[i] = &models.Object{
			Class:  codeChunkClass,
			ID:     strfmt.UUID(doc.ID),
			Vector: doc.Vector,
			Properties: map[string]interface{}{
				"content":    doc.Content,
				"file_path":  doc.Metadata.FilePath,
				"repo_name":  doc.Metadata.RepoName,
				"file_id":    doc.Metadata.FileID,
				"file_hash":  doc.Metadata.FileHash,
				"file_type":  doc.Metadata.FileType,
				"start_line": doc.Metadata.StartLine,
				"indexed_at": doc.Metadata.IndexedAt,
			},
		}
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to batch import to weaviate: %w", err)
	}
	for _, item := range resp {
		if item.Result != nil && item.Result.Errors != nil {
			for _, errItem := range item.Result.Errors.Error {
				slog.Warn("Error in weaviate batch item", "error", errItem.Message)
			}
		}
	}
	return nil
}

// codeChunkQueryResponse mirrors the GraphQL Get response shape.
type codeChunkQueryResponse struct {
	Get struct {
		CodeChunk []struct {
			Content    string  `json:"content"`
			FilePath   string  `json:"file_path"`
			RepoName   string  `json:"repo_name"`
			FileID     string  `json:"file_id"`
			FileHash   string  `json:"file_hash"`
			FileType   string  `json:"file_type"`
			StartLine  int     `json:"start_line"`
			IndexedAt  float64 `json:"indexed_at"`
			Additional struct {
				Certainty float64 `json:"certainty"`
			} `json:"_additional"`
		} `json:"CodeChunk"`
	} `json:"Get"`
}

func (s *WeaviateStore) Query(ctx context.Context, vector []float32, topK int) ([]Result, error) {
	ctx, span := weaviateTracer.Start(ctx, "WeaviateStore.Query")
	defer span.End()
	span.SetAttributes(attribute.Int("query.top_k", topK))

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "file_path"},
		{Name: "repo_name"},
		{Name: "file_id"},
		{Name: "file_hash"},
		{Name: "file_type"},
		{Name: "start_line"},
		{Name: "indexed_at"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(codeChunkClass).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}

	parsed, err := parseGraphQLResponse[codeChunkQueryResponse](result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse weaviate results: %w", err)
	}

	results := make([]Result, 0, len(parsed.Get.CodeChunk))
	for _, chunk := range parsed.Get.CodeChunk {
		results = append(results, Result{
			Content: chunk.Content,
			Metadata: Metadata{
				FilePath:  chunk.FilePath,
				RepoName:  chunk.RepoName,
				FileID:    chunk.FileID,
				FileHash:  chunk.FileHash,
				FileType:  chunk.FileType,
				StartLine: chunk.StartLine,
				IndexedAt: int64(chunk.IndexedAt),
			},
			Score: chunk.Additional.Certainty,
		})
	}
	return results, nil
}

type codeChunkAggregateResponse struct {
	Aggregate struct {
		CodeChunk []struct {
			GroupedBy struct {
				Value string `json:"value"`
			} `json:"groupedBy"`
			Meta struct {
				Count int `json:"count"`
			} `json:"meta"`
		} `json:"CodeChunk"`
	} `json:"Aggregate"`
}

func (s *WeaviateStore) ListSources(ctx context.Context) ([]string, error) {
	agg, err := s.client.GraphQL().Aggregate().
		WithClassName(codeChunkClass).
		WithGroupBy("repo_name").
		WithFields(graphql.Field{Name: "groupedBy", Fields: []graphql.Field{{Name: "value"}}}).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate weaviate sources: %w", err)
	}

	parsed, err := parseGraphQLResponse[codeChunkAggregateResponse](agg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse weaviate aggregate: %w", err)
	}

	var sources []string
	for _, group := range parsed.Aggregate.CodeChunk {
		if group.GroupedBy.Value != "" {
			sources = append(sources, group.GroupedBy.Value)
		}
	}
	return sources, nil
}

func (s *WeaviateStore) DeleteBySource(ctx context.Context, repoName string) error {
	whereFilter := filters.Where().
		WithPath([]string{"repo_name"}).
		WithOperator(filters.Equal).
		WithValueString(repoName)

	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(codeChunkClass).
		WithOutput("minimal").
		WithWhere(whereFilter).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete source %q from weaviate: %w", repoName, err)
	}
	return nil
}

func (s *WeaviateStore) Count(ctx context.Context) (int, error) {
	agg, err := s.client.GraphQL().Aggregate().
		WithClassName(codeChunkClass).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count weaviate objects: %w", err)
	}

	parsed, err := parseGraphQLResponse[codeChunkAggregateResponse](agg)
	if err != nil {
		return 0, fmt.Errorf("failed to parse weaviate count: %w", err)
	}
	if len(parsed.Aggregate.CodeChunk) == 0 {
		return 0, nil
	}
	return parsed.Aggregate.CodeChunk[0].Meta.Count, nil
}

// parseGraphQLResponse converts Weaviate's dynamic response into a
// typed struct via a marshal/unmarshal round trip.
func parseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}
	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}
	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}
	return &result, nil
}

var _ Store = (*WeaviateStore)(nil)
