// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChromemStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore("", "default")
	require.NoError(t, err)
	return store
}

func testDoc(id, content, repo string, vector []float32) Document {
	return Document{
		ID:      id,
		Content: content,
		Vector:  vector,
		Metadata: Metadata{
			FilePath:  "src/" + id + ".go",
			RepoName:  repo,
			FileType:  "go",
			StartLine: 1,
		},
	}
}

func TestChromemStoreRoundTrip(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddDocuments(ctx, []Document{
		testDoc("a", "func Add(a, b int) int", "tools/infra", []float32{1, 0, 0}),
		testDoc("b", "SELECT * FROM users", "tools/infra", []float32{0, 1, 0}),
		testDoc("c", "def hello(): pass", "backstage", []float32{0, 0, 1}),
	}))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := store.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "func Add(a, b int) int", results[0].Content)
	assert.Equal(t, "tools/infra", results[0].Metadata.RepoName)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestChromemStoreQueryEmpty(t *testing.T) {
	store := newTestChromemStore(t)
	results, err := store.Query(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemStoreTopKClamped(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddDocuments(ctx, []Document{
		testDoc("a", "one", "repo", []float32{1, 0}),
	}))

	// Asking for more results than documents must not error.
	results, err := store.Query(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestChromemStoreListAndDeleteSources(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddDocuments(ctx, []Document{
		testDoc("a", "one", "tools/infra", []float32{1, 0}),
		testDoc("b", "two", "backstage", []float32{0, 1}),
	}))

	sources, err := store.ListSources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"backstage", "tools/infra"}, sources)

	require.NoError(t, store.DeleteBySource(ctx, "backstage"))

	sources, err = store.ListSources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tools/infra"}, sources)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestChromemStoreRejectsMissingVector(t *testing.T) {
	store := newTestChromemStore(t)
	err := store.AddDocuments(context.Background(), []Document{{ID: "x", Content: "y"}})
	assert.Error(t, err)
}

func TestChromemStoreMetadataRoundTrip(t *testing.T) {
	doc := Metadata{
		FilePath:  "a/b.go",
		RepoName:  "repo",
		FileID:    "repo:a/b.go:abcd",
		FileHash:  "abcd",
		FileType:  "go",
		StartLine: 17,
		IndexedAt: 1700000000000,
	}
	assert.Equal(t, doc, metadataFromStringMap(metadataToStringMap(doc)))
}
