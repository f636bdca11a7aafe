// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package indexer

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// maxExtractedFileSize caps a single extracted file. Source files past
// this size are almost always generated artifacts.
const maxExtractedFileSize = 16 << 20

// ExtractArchive unpacks a tar.gz or zip archive into destDir. Entries
// with absolute paths or ".." components are skipped, not fatal, so a
// single hostile entry cannot block a whole repository.
func ExtractArchive(archive []byte, format, destDir string) error {
	switch format {
	case "tar.gz":
		return extractTarGz(archive, destDir)
	case "zip":
		return extractZip(archive, destDir)
	default:
		return fmt.Errorf("unsupported archive format: %s", format)
	}
}

func unsafeEntryName(name string) bool {
	return strings.HasPrefix(name, "/") || strings.Contains(name, "..")
}

func extractTarGz(archive []byte, destDir string) error {
	gz, err := gzip.NewReader(bytes.NewReader(archive))
	if err != nil {
		return fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry: %w", err)
		}
		if unsafeEntryName(header.Name) {
			slog.Warn("Suspicious path in tar, skipping", "name", header.Name)
			continue
		}

		target := filepath.Join(destDir, header.Name)
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeExtractedFile(target, tr, header.Size); err != nil {
				return err
			}
		}
		// Symlinks and other special entries are dropped.
	}
}

func extractZip(archive []byte, destDir string) error {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return fmt.Errorf("failed to open zip archive: %w", err)
	}

	for _, file := range zr.File {
		if unsafeEntryName(file.Name) {
			slog.Warn("Suspicious path in zip, skipping", "name", file.Name)
			continue
		}

		target := filepath.Join(destDir, file.Name)
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("failed to open zip entry %s: %w", file.Name, err)
		}
		err = writeExtractedFile(target, rc, int64(file.UncompressedSize64))
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeExtractedFile(target string, r io.Reader, declaredSize int64) error {
	if declaredSize > maxExtractedFileSize {
		slog.Warn("Oversized archive entry, skipping", "target", target, "size", declaredSize)
		io.Copy(io.Discard, r)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory for %s: %w", target, err)
	}
	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	_, err = io.Copy(out, io.LimitReader(r, maxExtractedFileSize+1))
	closeErr := out.Close()
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return closeErr
}
