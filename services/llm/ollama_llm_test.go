package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborml/codeassist/services/assistant/datatypes"
)

func TestOllamaClient_Generate(t *testing.T) {
	var gotReq ollamaGenerateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(ollamaGenerateResponse{
			Model:    "codellama",
			Response: "Use a sync.Mutex.",
			Done:     true,
		})
	}))
	defer server.Close()

	client, err := NewOllamaClient(server.URL, "codellama")
	require.NoError(t, err)

	answer, err := client.Generate(context.Background(), "how do I lock?", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "Use a sync.Mutex.", answer)
	assert.Equal(t, "codellama", gotReq.Model)
	assert.False(t, gotReq.Stream)
}

func TestOllamaClient_GenerateDefaults(t *testing.T) {
	options := buildOptions(GenerationParams{})
	assert.Equal(t, float32(0.2), options["temperature"])
	assert.Equal(t, 20, options["top_k"])
	assert.Equal(t, float32(0.9), options["top_p"])
	assert.Equal(t, 8192, options["num_predict"])
	assert.NotContains(t, options, "stop")
}

func TestOllamaClient_GenerateParamOverrides(t *testing.T) {
	temp := float32(0.7)
	topK := 40
	maxTokens := 256
	options := buildOptions(GenerationParams{
		Temperature: &temp,
		TopK:        &topK,
		MaxTokens:   &maxTokens,
		Stop:        []string{"```"},
	})
	assert.Equal(t, float32(0.7), options["temperature"])
	assert.Equal(t, 40, options["top_k"])
	assert.Equal(t, 256, options["num_predict"])
	assert.Equal(t, []string{"```"}, options["stop"])
}

func TestOllamaClient_ModelNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "model 'codellama' not found, try pulling it first",
		})
	}))
	defer server.Close()

	client, err := NewOllamaClient(server.URL, "codellama")
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "hi", GenerationParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama pull codellama")
}

func TestOllamaClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "out of memory", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewOllamaClient(server.URL, "codellama")
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "hi", GenerationParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestOllamaClient_Chat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: datatypes.Message{Role: "assistant", Content: "Sure."},
			Done:    true,
		})
	}))
	defer server.Close()

	client, err := NewOllamaClient(server.URL, "codellama")
	require.NoError(t, err)

	answer, err := client.Chat(context.Background(), []datatypes.Message{
		{Role: "system", Content: "You are helpful."},
		{Role: "user", Content: "Explain this function."},
	}, GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "Sure.", answer)
}

func TestNewOllamaClient_RequiresBaseURL(t *testing.T) {
	_, err := NewOllamaClient("", "codellama")
	require.Error(t, err)
}
