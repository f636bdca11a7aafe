// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the assistant
// service. All metrics are registered on the default registry via
// promauto and exposed on /metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "codeassist"

var (
	// QueriesTotal counts RAG queries by outcome.
	// Labels: status (success, no_results, error)
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "rag",
		Name:      "queries_total",
		Help:      "RAG queries processed, by outcome.",
	}, []string{"status"})

	// QueryDurationSeconds measures end-to-end query latency including
	// retrieval and generation.
	QueryDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "rag",
		Name:      "query_duration_seconds",
		Help:      "End-to-end RAG query latency.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	// RetrievalRetriesTotal counts vector store retrieval retries.
	RetrievalRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "rag",
		Name:      "retrieval_retries_total",
		Help:      "Vector store retrieval attempts beyond the first.",
	})

	// IndexRunsTotal counts indexing runs by outcome.
	// Labels: status (success, error)
	IndexRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "indexer",
		Name:      "runs_total",
		Help:      "Repository indexing runs, by outcome.",
	}, []string{"status"})

	// IndexRunDurationSeconds measures full indexing run duration.
	IndexRunDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "indexer",
		Name:      "run_duration_seconds",
		Help:      "Duration of a full repository indexing run.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
	})

	// FilesIndexedTotal counts files that produced chunks.
	FilesIndexedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "indexer",
		Name:      "files_indexed_total",
		Help:      "Files successfully chunked and embedded.",
	})

	// FilesSkippedTotal counts files skipped during indexing.
	// Labels: reason (extension, decode, duplicate, error)
	FilesSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "indexer",
		Name:      "files_skipped_total",
		Help:      "Files skipped during indexing, by reason.",
	}, []string{"reason"})

	// ChunksIndexedTotal counts chunks written to the vector store.
	ChunksIndexedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "indexer",
		Name:      "chunks_indexed_total",
		Help:      "Chunks written to the vector store.",
	})
)
