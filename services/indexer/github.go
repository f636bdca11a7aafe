// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package indexer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/harborml/codeassist/pkg/validation"
)

// GitHubClient downloads repository snapshots as zip archives through
// the codeload endpoint, no API token required for public repos.
type GitHubClient struct {
	httpClient *http.Client
}

func NewGitHubClient() *GitHubClient {
	return &GitHubClient{httpClient: &http.Client{Timeout: 5 * time.Minute}}
}

// FetchArchive downloads the default-branch zip for repoURL. Older
// repositories use "master" as the default branch and newer ones use
// "main", so both are tried in that order.
func (g *GitHubClient) FetchArchive(ctx context.Context, repoURL string) ([]byte, error) {
	if err := validation.ValidateRepoURL(repoURL); err != nil {
		return nil, err
	}
	repoURL = strings.TrimSuffix(strings.TrimSuffix(repoURL, "/"), ".git")

	var lastErr error
	for _, branch := range []string{"master", "main"} {
		zipURL := fmt.Sprintf("%s/archive/refs/heads/%s.zip", repoURL, branch)
		content, err := g.download(ctx, zipURL)
		if err == nil {
			slog.Debug("Fetched github archive", "repo", repoURL, "branch", branch,
				"bytes", len(content))
			return content, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to download %s: %w", repoURL, lastErr)
}

func (g *GitHubClient) download(ctx context.Context, zipURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, zipURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive body: %w", err)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("empty archive body")
	}
	return content, nil
}
