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
	"log/slog"

	"github.com/go-git/go-git/v5"
	"github.com/harborml/codeassist/pkg/validation"
)

// CloneRepository makes a shallow clone of repoURL into destDir. Used
// for plain git remotes that offer neither a gitiles archive endpoint
// nor GitHub-style zip downloads.
func CloneRepository(ctx context.Context, repoURL, destDir string) error {
	if err := validation.ValidateRepoURL(repoURL); err != nil {
		return err
	}
	slog.Info("Cloning repository", "url", repoURL)
	_, err := git.PlainCloneContext(ctx, destDir, false, &git.CloneOptions{
		URL:          repoURL,
		Depth:        1,
		SingleBranch: true,
		Tags:         git.NoTags,
	})
	if err != nil {
		return fmt.Errorf("failed to clone %s: %w", repoURL, err)
	}
	return nil
}
