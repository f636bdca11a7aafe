// Copyright (C) 2026 HarborML (oss@harborml.dev)
// Tests for the CLI's HTTP client

package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborml/codeassist/services/assistant/datatypes"
)

func TestAPIClient_Call(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/query", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req datatypes.QueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "how?", req.Query)

		json.NewEncoder(w).Encode(datatypes.QueryResponse{Answer: "like this", Model: "codellama"})
	}))
	defer server.Close()

	client := newAPIClient(server.URL)
	var resp datatypes.QueryResponse
	err := client.call("POST", "/api/v1/query", datatypes.QueryRequest{Query: "how?"}, &resp)
	require.NoError(t, err)
	assert.Equal(t, "like this", resp.Answer)
}

func TestAPIClient_SurfacesServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(datatypes.ErrorResponse{Error: "Indexing is already in progress"})
	}))
	defer server.Close()

	client := newAPIClient(server.URL)
	err := client.call("POST", "/api/v1/index", struct{}{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Indexing is already in progress")
	assert.Contains(t, err.Error(), "409")
}

func TestAPIClient_UnreachableServer(t *testing.T) {
	client := newAPIClient("http://127.0.0.1:1")
	err := client.call("GET", "/health", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not reach the assistant service")
}

func TestAPIClient_DiscardsBodyWithNilOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"status":"indexing scheduled"}`))
	}))
	defer server.Close()

	client := newAPIClient(server.URL)
	assert.NoError(t, client.call("POST", "/api/v1/index", struct{}{}, nil))
}
