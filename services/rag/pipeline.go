// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package rag implements retrieval-augmented generation over the
// indexed code: embed the question, pull the nearest chunks from the
// vector store and hand both to the LLM.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harborml/codeassist/services/assistant/observability"
	"github.com/harborml/codeassist/services/embed"
	"github.com/harborml/codeassist/services/llm"
	"github.com/harborml/codeassist/services/vectorstore"
)

var tracer = otel.Tracer("codeassist.rag")

const (
	// DefaultTopK is how many chunks are retrieved per query.
	DefaultTopK = 5

	// EmptyAnswer is returned without calling the LLM when retrieval
	// finds nothing.
	EmptyAnswer = "No relevant code found for your query."

	retrieveAttempts  = 3
	retrieveBaseDelay = 4 * time.Second
	retrieveMaxDelay  = 10 * time.Second
)

const promptTemplate = `You are a helpful code assistant. Using the provided code context and reasoning abilities, answer the user's query. Provide relevant code snippets when applicable.

Context:
%s

Query:
%s

Answer (include code where applicable):
`

// Answer is the pipeline output.
type Answer struct {
	Text        string
	SourceFiles []string
	Model       string
}

// Pipeline wires the embedder, vector store and LLM into a query path.
type Pipeline struct {
	embedder  embed.Embedder
	store     vectorstore.Store
	client    llm.LLMClient
	topK      int
	baseDelay time.Duration
}

func NewPipeline(embedder embed.Embedder, store vectorstore.Store, client llm.LLMClient) *Pipeline {
	return &Pipeline{
		embedder:  embedder,
		store:     store,
		client:    client,
		topK:      DefaultTopK,
		baseDelay: retrieveBaseDelay,
	}
}

// Query answers a question about the indexed code. A non-nil embedding
// skips the embedding call, for callers that precompute vectors.
func (p *Pipeline) Query(ctx context.Context, query string, embedding []float32) (*Answer, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.Query")
	defer span.End()
	start := time.Now()

	if embedding == nil {
		var err error
		embedding, err = p.embedder.Embed(ctx, query)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			observability.QueriesTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
	}

	results, err := p.retrieve(ctx, embedding)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.QueriesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to retrieve relevant chunks: %w", err)
	}
	span.SetAttributes(attribute.Int("rag.chunks_retrieved", len(results)))

	if len(results) == 0 {
		slog.Info("No relevant chunks found for query")
		observability.QueriesTotal.WithLabelValues("no_results").Inc()
		observability.QueryDurationSeconds.Observe(time.Since(start).Seconds())
		return &Answer{
			Text:        EmptyAnswer,
			SourceFiles: []string{},
			Model:       p.client.Model(),
		}, nil
	}

	prompt := fmt.Sprintf(promptTemplate, prepareContext(results), query)
	answer, err := p.client.Generate(ctx, prompt, llm.GenerationParams{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.QueriesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	observability.QueriesTotal.WithLabelValues("success").Inc()
	observability.QueryDurationSeconds.Observe(time.Since(start).Seconds())
	return &Answer{
		Text:        answer,
		SourceFiles: sourceFiles(results),
		Model:       p.client.Model(),
	}, nil
}

// retrieve queries the vector store with exponential backoff. A cold
// database right after startup is the common transient here.
func (p *Pipeline) retrieve(ctx context.Context, embedding []float32) ([]vectorstore.Result, error) {
	var lastErr error
	delay := p.baseDelay
	for attempt := 1; attempt <= retrieveAttempts; attempt++ {
		results, err := p.store.Query(ctx, embedding, p.topK)
		if err == nil {
			return results, nil
		}
		lastErr = err
		slog.Warn("Vector store query failed", "attempt", attempt, "error", err)
		if attempt == retrieveAttempts {
			break
		}
		observability.RetrievalRetriesTotal.Inc()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > retrieveMaxDelay {
			delay = retrieveMaxDelay
		}
	}
	return nil, lastErr
}

// prepareContext formats retrieved chunks for the prompt.
func prepareContext(results []vectorstore.Result) string {
	parts := make([]string, len(results))
	for i, res := range results {
		parts[i] = fmt.Sprintf("File: %s\nRepository: %s\nContent:\n%s\n",
			res.Metadata.FilePath, res.Metadata.RepoName, res.Content)
	}
	return strings.Join(parts, "\n---\n")
}

// sourceFiles returns the distinct file paths behind the results, in
// retrieval order.
func sourceFiles(results []vectorstore.Result) []string {
	seen := make(map[string]bool, len(results))
	files := make([]string, 0, len(results))
	for _, res := range results {
		if seen[res.Metadata.FilePath] {
			continue
		}
		seen[res.Metadata.FilePath] = true
		files = append(files, res.Metadata.FilePath)
	}
	return files
}
