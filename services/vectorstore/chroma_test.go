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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newChromaTestServer fakes the slice of the Chroma v1 API the store uses.
func newChromaTestServer(t *testing.T) (*httptest.Server, *[]chromaAddRequest) {
	t.Helper()
	var added []chromaAddRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int64{"nanosecond heartbeat": time.Now().UnixNano()})
	})
	mux.HandleFunc("/api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		var req chromaCollectionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.GetOrCreate)
		json.NewEncoder(w).Encode(chromaCollectionResponse{ID: "col-1", Name: req.Name})
	})
	mux.HandleFunc("/api/v1/collections/col-1/add", func(w http.ResponseWriter, r *http.Request) {
		var req chromaAddRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		added = append(added, req)
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("/api/v1/collections/col-1/query", func(w http.ResponseWriter, r *http.Request) {
		var req chromaQueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := chromaQueryResponse{
			IDs:       [][]string{{"id-1"}},
			Documents: [][]string{{"func main() {}"}},
			Metadatas: [][]map[string]any{{{
				"file_path": "cmd/main.go",
				"repo_name": "tools/infra",
				"file_type": "go",
			}}},
			Distances: [][]float64{{0.4}},
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/v1/collections/col-1/get", func(w http.ResponseWriter, r *http.Request) {
		resp := chromaGetResponse{Metadatas: []map[string]any{
			{"repo_name": "tools/infra"},
			{"repo_name": "tools/infra"},
			{"repo_name": "backstage"},
		}}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/v1/collections/col-1/delete", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("[]"))
	})
	mux.HandleFunc("/api/v1/collections/col-1/count", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("42"))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &added
}

func TestChromaStoreHeartbeat(t *testing.T) {
	server, _ := newChromaTestServer(t)
	store, err := NewChromaStore(server.URL, "default")
	require.NoError(t, err)
	assert.NoError(t, store.Heartbeat(context.Background()))
}

func TestChromaStoreHeartbeatDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	store, err := NewChromaStore(server.URL, "default")
	require.NoError(t, err)
	assert.Error(t, store.Heartbeat(context.Background()))
}

func TestChromaStoreAddDocuments(t *testing.T) {
	server, added := newChromaTestServer(t)
	store, err := NewChromaStore(server.URL, "default")
	require.NoError(t, err)

	docs := []Document{
		{
			ID:      "id-1",
			Content: "package main",
			Vector:  []float32{0.1, 0.2},
			Metadata: Metadata{
				FilePath: "main.go",
				RepoName: "tools/infra",
				FileType: "go",
			},
		},
	}
	require.NoError(t, store.AddDocuments(context.Background(), docs))
	require.Len(t, *added, 1)
	assert.Equal(t, []string{"id-1"}, (*added)[0].IDs)
	assert.Equal(t, "package main", (*added)[0].Documents[0])
	assert.Equal(t, "tools/infra", (*added)[0].Metadatas[0]["repo_name"])
}

func TestChromaStoreAddRejectsMissingVector(t *testing.T) {
	server, _ := newChromaTestServer(t)
	store, err := NewChromaStore(server.URL, "default")
	require.NoError(t, err)

	err = store.AddDocuments(context.Background(), []Document{{ID: "x", Content: "y"}})
	assert.Error(t, err)
}

func TestChromaStoreQuery(t *testing.T) {
	server, _ := newChromaTestServer(t)
	store, err := NewChromaStore(server.URL, "default")
	require.NoError(t, err)

	results, err := store.Query(context.Background(), []float32{0.1, 0.2}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "func main() {}", results[0].Content)
	assert.Equal(t, "cmd/main.go", results[0].Metadata.FilePath)
	assert.Equal(t, "tools/infra", results[0].Metadata.RepoName)
	assert.InDelta(t, 0.8, results[0].Score, 1e-9)
}

func TestChromaStoreListSources(t *testing.T) {
	server, _ := newChromaTestServer(t)
	store, err := NewChromaStore(server.URL, "default")
	require.NoError(t, err)

	sources, err := store.ListSources(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tools/infra", "backstage"}, sources)
}

func TestChromaStoreCount(t *testing.T) {
	server, _ := newChromaTestServer(t)
	store, err := NewChromaStore(server.URL, "default")
	require.NoError(t, err)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}

func TestChromaStoreRejectsBadCollection(t *testing.T) {
	_, err := NewChromaStore("http://localhost:8000", "bad name!")
	assert.Error(t, err)
}

func TestChromaStoreWaitReadyEventually(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "starting", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"nanosecond heartbeat": 1}`))
	}))
	defer server.Close()

	store, err := NewChromaStore(server.URL, "default")
	require.NoError(t, err)

	err = store.WaitReady(context.Background(), 5, time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}
