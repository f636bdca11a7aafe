package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello world", req.Text)
		json.NewEncoder(w).Encode(embedResponse{Vector: []float32{0.1, 0.2, 0.3}, Dim: 3})
	}))
	defer server.Close()

	e, err := NewServiceEmbedder(server.URL)
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestServiceEmbedder_TrimsEmbedSuffix(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(embedResponse{Vector: []float32{1}})
	}))
	defer server.Close()

	// Manifests sometimes configure the full endpoint URL.
	e, err := NewServiceEmbedder(server.URL + "/embed")
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "/embed", gotPath)
}

func TestServiceEmbedder_EmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/batch_embed", r.URL.Path)
		var req batchEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		vectors := make([][]float32, len(req.Texts))
		for i := range req.Texts {
			vectors[i] = []float32{float32(i)}
		}
		json.NewEncoder(w).Encode(batchEmbedResponse{Vectors: vectors, Model: "all-MiniLM-L6-v2"})
	}))
	defer server.Close()

	e, err := NewServiceEmbedder(server.URL)
	require.NoError(t, err)

	vectors, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{2}, vectors[2])
}

func TestServiceEmbedder_EmbedBatchEmpty(t *testing.T) {
	e, err := NewServiceEmbedder("http://localhost:9999")
	require.NoError(t, err)

	vectors, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestServiceEmbedder_VectorCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(batchEmbedResponse{Vectors: [][]float32{{1}}})
	}))
	defer server.Close()

	e, err := NewServiceEmbedder(server.URL)
	require.NoError(t, err)

	_, err = e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 vectors for 2 texts")
}

func TestServiceEmbedder_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	e, err := NewServiceEmbedder(server.URL)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestServiceEmbedder_RequiresURL(t *testing.T) {
	_, err := NewServiceEmbedder("")
	require.Error(t, err)
}

func TestTruncate(t *testing.T) {
	short := "short text"
	assert.Equal(t, short, Truncate(short))

	long := strings.Repeat("a", MaxEmbedLength+100)
	assert.Len(t, Truncate(long), MaxEmbedLength)
}

func TestTruncate_KeepsRuneBoundary(t *testing.T) {
	// Place a multi-byte rune across the cut point; the cut must back
	// up rather than emit a partial encoding.
	long := strings.Repeat("a", MaxEmbedLength-1) + "é" + strings.Repeat("b", 50)
	got := Truncate(long)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", MaxEmbedLength-1), got)

	ascii := strings.Repeat("a", MaxEmbedLength+1)
	assert.Len(t, Truncate(ascii), MaxEmbedLength)
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float64{0.5, 0.25}})
	}))
	defer server.Close()

	e, err := NewOllamaEmbedder(server.URL, "nomic-embed-text")
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, vec)
}

func TestOllamaEmbedder_EmbedBatch(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float64{float64(calls)}})
	}))
	defer server.Close()

	e, err := NewOllamaEmbedder(server.URL, "nomic-embed-text")
	require.NoError(t, err)

	vectors, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, [][]float32{{1}, {2}}, vectors)
}

func TestOllamaEmbedder_EmptyEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{})
	}))
	defer server.Close()

	e, err := NewOllamaEmbedder(server.URL, "nomic-embed-text")
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty embedding")
}

func TestOllamaEmbedder_RequiresModel(t *testing.T) {
	_, err := NewOllamaEmbedder("http://localhost:11434", "")
	require.Error(t, err)
}
