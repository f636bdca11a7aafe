// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for security-critical values.
//
// Repository names end up in gitiles archive URLs, collection names end up
// in vector store requests, and source paths end up in delete filters.
// Validating them here prevents path traversal and query injection.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// repoNamePattern matches Gerrit project names: path segments of
// word characters, dots and hyphens, separated by single slashes.
var repoNamePattern = regexp.MustCompile(`^[\w.\-]+(/[\w.\-]+)*$`)

// collectionPattern matches vector store collection names.
var collectionPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._\-]{0,62}$`)

// ValidateRepoName validates a Gerrit project name before it is
// interpolated into an archive URL.
func ValidateRepoName(name string) error {
	if name == "" {
		return fmt.Errorf("repository name cannot be empty")
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("repository name %q contains a parent reference", name)
	}
	if !repoNamePattern.MatchString(name) {
		return fmt.Errorf("invalid repository name: %q", name)
	}
	return nil
}

// ValidateRepoURL validates a remote repository URL (GitHub archive
// download or generic git clone). Only http(s) remotes are accepted.
func ValidateRepoURL(rawURL string) error {
	if err := validate.Var(rawURL, "required,http_url"); err != nil {
		return fmt.Errorf("invalid repository URL %q: %w", rawURL, err)
	}
	return nil
}

// ValidateCollectionName validates a vector store collection name.
func ValidateCollectionName(name string) error {
	if !collectionPattern.MatchString(name) {
		return fmt.Errorf("invalid collection name: %q (must be 1-63 alphanumeric chars, dots, underscores, or hyphens, starting alphanumeric)", name)
	}
	return nil
}
