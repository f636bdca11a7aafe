// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/harborml/codeassist/pkg/validation"
)

// gerritXSSIPrefix is prepended to every Gerrit JSON response and must
// be stripped before parsing.
const gerritXSSIPrefix = ")]}'"

// GerritClient fetches project lists and repository archives from a
// Gerrit instance through its authenticated REST API and the gitiles
// plugin.
type GerritClient struct {
	httpClient *http.Client
	baseURL    string
	username   string
	token      string
}

func NewGerritClient(baseURL, username, token string) (*GerritClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("gerrit base URL not set")
	}
	return &GerritClient{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		username:   username,
		token:      token,
	}, nil
}

func (g *GerritClient) do(req *http.Request) (*http.Response, error) {
	if g.username != "" {
		req.SetBasicAuth(g.username, g.token)
	}
	return g.httpClient.Do(req)
}

// ListProjects returns the names of all projects visible to the
// configured account, sorted for deterministic indexing order.
func (g *GerritClient) ListProjects(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/a/projects/", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create gerrit projects request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := g.do(req)
	if err != nil {
		return nil, fmt.Errorf("gerrit projects call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gerrit projects response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gerrit projects returned status %d: %s", resp.StatusCode, string(body))
	}

	body = bytes.TrimPrefix(body, []byte(gerritXSSIPrefix))
	var projects map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(body), &projects); err != nil {
		return nil, fmt.Errorf("failed to parse gerrit projects response: %w", err)
	}

	names := make([]string, 0, len(projects))
	for name := range projects {
		if err := validation.ValidateRepoName(name); err != nil {
			slog.Warn("Skipping gerrit project with unsafe name", "project", name, "error", err)
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// FetchArchive downloads a project's tree as a tar.gz archive via the
// gitiles +archive endpoint. An empty ref means the master branch.
func (g *GerritClient) FetchArchive(ctx context.Context, project, ref string) ([]byte, error) {
	if err := validation.ValidateRepoName(project); err != nil {
		return nil, err
	}
	if ref == "" {
		ref = "master"
	}
	archiveURL := fmt.Sprintf("%s/a/plugins/gitiles/%s/+archive/refs/heads/%s.tar.gz",
		g.baseURL, project, ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create gerrit archive request: %w", err)
	}

	resp, err := g.do(req)
	if err != nil {
		return nil, fmt.Errorf("gerrit archive call failed for %s: %w", project, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("gerrit archive for %s returned status %d: %s",
			project, resp.StatusCode, string(body))
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gerrit archive for %s: %w", project, err)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("empty archive received for %s", project)
	}
	slog.Debug("Fetched gerrit archive", "project", project, "bytes", len(content))
	return content, nil
}
