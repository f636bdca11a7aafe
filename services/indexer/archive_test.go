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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractArchive_TarGz(t *testing.T) {
	archive := buildTarGz(t, map[string]string{
		"repo/main.py":   "print('hi')\n",
		"repo/README.md": "# Repo\n",
	})
	dest := t.TempDir()
	require.NoError(t, ExtractArchive(archive, "tar.gz", dest))

	content, err := os.ReadFile(filepath.Join(dest, "repo", "main.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", string(content))
}

func TestExtractArchive_Zip(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"repo-master/app.js": "console.log(1)\n",
	})
	dest := t.TempDir()
	require.NoError(t, ExtractArchive(archive, "zip", dest))

	content, err := os.ReadFile(filepath.Join(dest, "repo-master", "app.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)\n", string(content))
}

func TestExtractArchive_SkipsTraversalEntries(t *testing.T) {
	archive := buildTarGz(t, map[string]string{
		"../escape.txt":   "bad",
		"/abs/escape.txt": "bad",
		"repo/ok.txt":     "good",
	})
	dest := t.TempDir()
	require.NoError(t, ExtractArchive(archive, "tar.gz", dest))

	_, err := os.Stat(filepath.Join(dest, "repo", "ok.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(dest), "escape.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractArchive_ZipSkipsTraversalEntries(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"../escape.txt": "bad",
		"repo/ok.txt":   "good",
	})
	dest := t.TempDir()
	require.NoError(t, ExtractArchive(archive, "zip", dest))

	_, err := os.Stat(filepath.Join(dest, "repo", "ok.txt"))
	assert.NoError(t, err)
}

func TestExtractArchive_UnsupportedFormat(t *testing.T) {
	err := ExtractArchive([]byte("x"), "rar", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported archive format")
}

func TestExtractArchive_CorruptTarGz(t *testing.T) {
	err := ExtractArchive([]byte("not a gzip stream"), "tar.gz", t.TempDir())
	require.Error(t, err)
}
