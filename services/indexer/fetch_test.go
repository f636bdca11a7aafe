// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package indexer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGerritClient_ListProjects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/a/projects/", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "ci-bot", user)
		assert.Equal(t, "secret", pass)
		// Gerrit responses carry the XSSI prefix.
		w.Write([]byte(")]}'\n{\"tools/build\":{},\"platform/core\":{},\"../evil\":{}}"))
	}))
	defer server.Close()

	client, err := NewGerritClient(server.URL, "ci-bot", "secret")
	require.NoError(t, err)

	projects, err := client.ListProjects(context.Background())
	require.NoError(t, err)
	// Sorted, with the unsafe name filtered out.
	assert.Equal(t, []string{"platform/core", "tools/build"}, projects)
}

func TestGerritClient_FetchArchive(t *testing.T) {
	payload := buildTarGz(t, map[string]string{"main.py": "pass\n"})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/a/plugins/gitiles/tools/build/+archive/refs/heads/master.tar.gz", r.URL.Path)
		w.Write(payload)
	}))
	defer server.Close()

	client, err := NewGerritClient(server.URL, "ci-bot", "secret")
	require.NoError(t, err)

	content, err := client.FetchArchive(context.Background(), "tools/build", "")
	require.NoError(t, err)
	assert.Equal(t, payload, content)
}

func TestGerritClient_FetchArchiveRejectsUnsafeName(t *testing.T) {
	client, err := NewGerritClient("http://gerrit.example.com", "", "")
	require.NoError(t, err)

	_, err = client.FetchArchive(context.Background(), "../../etc", "")
	require.Error(t, err)
}

func TestGerritClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	client, err := NewGerritClient(server.URL, "ci-bot", "wrong")
	require.NoError(t, err)

	_, err = client.ListProjects(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestGitHubClient_FallsBackToMain(t *testing.T) {
	payload := buildZip(t, map[string]string{"repo-main/app.py": "pass\n"})
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/org/repo/archive/refs/heads/main.zip" {
			w.Write(payload)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewGitHubClient()
	content, err := client.FetchArchive(context.Background(), server.URL+"/org/repo")
	require.NoError(t, err)
	assert.Equal(t, payload, content)
	assert.Equal(t, []string{
		"/org/repo/archive/refs/heads/master.zip",
		"/org/repo/archive/refs/heads/main.zip",
	}, paths)
}

func TestGitHubClient_BothBranchesMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(http.NotFound))
	defer server.Close()

	client := NewGitHubClient()
	_, err := client.FetchArchive(context.Background(), server.URL+"/org/gone")
	require.Error(t, err)
}

func TestGitHubClient_RejectsInvalidURL(t *testing.T) {
	client := NewGitHubClient()
	_, err := client.FetchArchive(context.Background(), "not a url")
	require.Error(t, err)
}
