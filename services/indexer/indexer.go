// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/harborml/codeassist/pkg/config"
	"github.com/harborml/codeassist/services/assistant/observability"
	"github.com/harborml/codeassist/services/embed"
	"github.com/harborml/codeassist/services/vectorstore"
)

// indexableExtensions is the allowlist of file types worth embedding.
var indexableExtensions = map[string]bool{
	".py": true, ".java": true, ".cpp": true, ".js": true, ".ts": true,
	".tsx": true, ".jsx": true, ".css": true, ".html": true, ".yaml": true,
	".yml": true, ".json": true, ".xml": true, ".log": true, ".txt": true,
	".config": true, ".env": true, ".md": true, ".go": true, ".rs": true,
	".c": true, ".h": true, ".hpp": true, ".rb": true, ".php": true,
	".cs": true, ".sh": true,
}

// embedBatchSize bounds a single /batch_embed call.
const embedBatchSize = 64

// Indexer walks repository snapshots and writes embedded chunks into
// the vector store. Files whose content hash was seen in a previous
// run are skipped, so steady-state runs only touch changed files.
type Indexer struct {
	gerrit   *GerritClient
	github   *GitHubClient
	chunker  *Chunker
	embedder embed.Embedder
	store    vectorstore.Store
	workers  int

	mu      sync.Mutex
	indexed map[string]bool
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithGerrit enables indexing of all projects on a Gerrit instance.
func WithGerrit(client *GerritClient) Option {
	return func(ix *Indexer) { ix.gerrit = client }
}

// WithWorkers sets the number of repositories indexed concurrently.
func WithWorkers(n int) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.workers = n
		}
	}
}

func New(embedder embed.Embedder, store vectorstore.Store, opts ...Option) *Indexer {
	ix := &Indexer{
		github:   NewGitHubClient(),
		chunker:  NewChunker(),
		embedder: embedder,
		store:    store,
		workers:  5,
		indexed:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// IndexAll indexes every configured repository: all Gerrit projects
// when a Gerrit client is configured, plus the GitHub and plain-git
// lists. Per-repository failures are logged and counted but do not
// abort the run; the returned error reflects only the first failure so
// a partially successful run still schedules a retry.
func (ix *Indexer) IndexAll(ctx context.Context, repos *config.ReposFile) error {
	start := time.Now()
	slog.Info("Starting repository indexing")

	sem := semaphore.NewWeighted(int64(ix.workers))
	g, ctx := errgroup.WithContext(ctx)

	var failMu sync.Mutex
	var firstErr error
	recordFailure := func(repo string, err error) {
		slog.Error("Failed to index repository", "repo", repo, "error", err)
		failMu.Lock()
		if firstErr == nil {
			firstErr = fmt.Errorf("indexing %s: %w", repo, err)
		}
		failMu.Unlock()
	}
	run := func(repo string, fn func(context.Context) error) {
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			if err := fn(ctx); err != nil {
				recordFailure(repo, err)
			}
			return nil
		})
	}

	if ix.gerrit != nil {
		projects, err := ix.gerrit.ListProjects(ctx)
		if err != nil {
			recordFailure("gerrit", err)
		}
		for _, project := range projects {
			run(project, func(ctx context.Context) error {
				return ix.indexGerritProject(ctx, project)
			})
		}
	}
	for _, repoURL := range repos.GitHub {
		run(repoURL, func(ctx context.Context) error {
			return ix.indexGitHubRepository(ctx, repoURL)
		})
	}
	for _, repoURL := range repos.Git {
		run(repoURL, func(ctx context.Context) error {
			return ix.indexGitRepository(ctx, repoURL)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	elapsed := time.Since(start)
	observability.IndexRunDurationSeconds.Observe(elapsed.Seconds())
	if firstErr != nil {
		observability.IndexRunsTotal.WithLabelValues("error").Inc()
		return firstErr
	}
	observability.IndexRunsTotal.WithLabelValues("success").Inc()
	slog.Info("Repository indexing completed", "duration", elapsed.String())
	return nil
}

func (ix *Indexer) indexGerritProject(ctx context.Context, project string) error {
	slog.Info("Indexing gerrit project", "project", project)
	archive, err := ix.gerrit.FetchArchive(ctx, project, "")
	if err != nil {
		return err
	}
	return ix.indexArchive(ctx, project, archive, "tar.gz")
}

func (ix *Indexer) indexGitHubRepository(ctx context.Context, repoURL string) error {
	slog.Info("Indexing github repository", "repo", repoURL)
	archive, err := ix.github.FetchArchive(ctx, repoURL)
	if err != nil {
		return err
	}
	return ix.indexArchive(ctx, repoURL, archive, "zip")
}

func (ix *Indexer) indexGitRepository(ctx context.Context, repoURL string) error {
	slog.Info("Indexing git repository", "repo", repoURL)
	tempDir, err := os.MkdirTemp("", "codeassist-clone-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	if err := CloneRepository(ctx, repoURL, tempDir); err != nil {
		return err
	}
	return ix.indexTree(ctx, repoURL, tempDir)
}

func (ix *Indexer) indexArchive(ctx context.Context, repoName string, archive []byte, format string) error {
	tempDir, err := os.MkdirTemp("", "codeassist-extract-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	if err := ExtractArchive(archive, format, tempDir); err != nil {
		return err
	}
	return ix.indexTree(ctx, repoName, tempDir)
}

// indexTree walks an extracted repository and indexes each regular
// file. Per-file errors are logged and skipped.
func (ix *Indexer) indexTree(ctx context.Context, repoName, root string) error {
	var files, chunks int
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			relPath = path
		}
		n, err := ix.processFile(ctx, repoName, path, relPath)
		if err != nil {
			slog.Error("Error processing file", "repo", repoName, "file", relPath, "error", err)
			observability.FilesSkippedTotal.WithLabelValues("error").Inc()
			return nil
		}
		if n > 0 {
			files++
			chunks += n
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", repoName, err)
	}
	slog.Info("Indexed repository tree", "repo", repoName, "files", files, "chunks", chunks)
	return nil
}

// processFile chunks, embeds and stores one file. Returns the number
// of chunks written, zero when the file was skipped.
func (ix *Indexer) processFile(ctx context.Context, repoName, absPath, relPath string) (int, error) {
	if !indexableExtensions[strings.ToLower(filepath.Ext(relPath))] {
		observability.FilesSkippedTotal.WithLabelValues("extension").Inc()
		return 0, nil
	}

	raw, err := os.ReadFile(absPath)
	if err != nil {
		return 0, fmt.Errorf("failed to read file: %w", err)
	}
	content, ok := decodeText(raw)
	if !ok {
		slog.Warn("Unable to decode file, skipping", "file", relPath)
		observability.FilesSkippedTotal.WithLabelValues("decode").Inc()
		return 0, nil
	}

	fileHash := sha256.Sum256(raw)
	hashHex := hex.EncodeToString(fileHash[:])
	fileID := fmt.Sprintf("%s:%s:%s", repoName, relPath, hashHex)

	ix.mu.Lock()
	seen := ix.indexed[fileID]
	ix.mu.Unlock()
	if seen {
		slog.Debug("Skipping already indexed file", "file", relPath)
		observability.FilesSkippedTotal.WithLabelValues("duplicate").Inc()
		return 0, nil
	}

	chunks, err := ix.chunker.ChunkFile(content, relPath)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	docs, err := ix.embedChunks(ctx, repoName, relPath, fileID, hashHex, chunks)
	if err != nil {
		return 0, err
	}
	if err := ix.store.AddDocuments(ctx, docs); err != nil {
		return 0, fmt.Errorf("failed to store documents: %w", err)
	}

	ix.mu.Lock()
	ix.indexed[fileID] = true
	ix.mu.Unlock()

	observability.FilesIndexedTotal.Inc()
	observability.ChunksIndexedTotal.Add(float64(len(docs)))
	return len(docs), nil
}

func (ix *Indexer) embedChunks(ctx context.Context, repoName, relPath, fileID, hashHex string,
	chunks []Chunk) ([]vectorstore.Document, error) {

	fileType := strings.TrimPrefix(filepath.Ext(relPath), ".")
	indexedAt := time.Now().UnixMilli()

	docs := make([]vectorstore.Document, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}
		vectors, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks: %w", err)
		}

		for i, chunk := range batch {
			docs = append(docs, vectorstore.Document{
				ID:      chunkID(fileID, start+i),
				Content: chunk.Content,
				Vector:  vectors[i],
				Metadata: vectorstore.Metadata{
					FilePath:  relPath,
					RepoName:  repoName,
					FileID:    fileID,
					FileHash:  hashHex,
					FileType:  fileType,
					StartLine: chunk.StartLine,
					IndexedAt: indexedAt,
				},
			})
		}
	}
	return docs, nil
}

// chunkID derives a stable document ID from the file identity and the
// chunk's position, so reindexing an unchanged file overwrites rather
// than duplicates.
func chunkID(fileID string, ordinal int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", fileID, ordinal)))
	return hex.EncodeToString(sum[:16])
}

// decodeText interprets raw bytes as UTF-8, falling back to Latin-1.
// Returns false for content that looks binary.
func decodeText(raw []byte) (string, bool) {
	if isBinary(raw) {
		return "", false
	}
	if utf8.Valid(raw) {
		return string(raw), true
	}
	// Latin-1: every byte maps directly to the code point of the same
	// value.
	runes := make([]rune, len(raw))
	for i, b := range raw {
		runes[i] = rune(b)
	}
	return string(runes), true
}

func isBinary(raw []byte) bool {
	limit := min(len(raw), 8000)
	for _, b := range raw[:limit] {
		if b == 0 {
			return true
		}
	}
	return false
}
