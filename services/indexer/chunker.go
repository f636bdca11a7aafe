// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package indexer fetches source repositories, chunks their files and
// writes embedded chunks into the vector store.
package indexer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

var (
	CHUNK_SIZE        = 1000
	CHUNK_OVERLAP     = 200
	defaultSeparators = []string{"\n\n", "\n", " ", ""}
	pythonSeparators  = []string{"\nclass ", "\ndef ", "\n\t", "\n", " "}
	cStyleSeparators  = []string{
		"\nfunction ", "\nclass ", "\ninterface ",
		"\npublic ", "\nprivate ", "\nprotected ",
		"\nfunc", "\ntype",
		"\n\n", "\n", " ", "",
	}
	markdownSeparators = []string{
		"\n# ", "\n## ", "\n### ", "\n#### ", "\n##### ", "\n###### ",
		"\n\n", "\n", " ", "",
	}
	// Line-oriented formats split poorly on prose separators.
	lineSeparators = []string{"\n", ""}
)

// Chunk is one splitter output with enough position info for metadata.
type Chunk struct {
	Content   string
	StartLine int
}

// Chunker splits file content into overlapping chunks sized for
// embedding. Python and Go sources are pre-split on function and type
// boundaries so chunks do not straddle declarations.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

func NewChunker() *Chunker {
	return &Chunker{chunkSize: CHUNK_SIZE, chunkOverlap: CHUNK_OVERLAP}
}

// ChunkFile splits content according to the file's type.
func (c *Chunker) ChunkFile(content, filePath string) ([]Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	// Structure-aware path: split on declaration boundaries first, then
	// let the recursive splitter size each block.
	if boundaries := declarationBoundaries(content, filePath); len(boundaries) > 0 {
		return c.chunkBlocks(content, boundaries)
	}

	splitter := c.splitterForFile(filePath)
	pieces, err := splitter.SplitText(content)
	if err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", filePath, err)
	}
	return locateChunks(content, pieces), nil
}

// chunkBlocks splits content at the given byte offsets and sizes each
// block with the default splitter.
func (c *Chunker) chunkBlocks(content string, boundaries []int) ([]Chunk, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.chunkSize),
		textsplitter.WithChunkOverlap(c.chunkOverlap),
		textsplitter.WithSeparators(defaultSeparators),
	)

	var chunks []Chunk
	prev := 0
	offsets := append(boundaries, len(content))
	for _, off := range offsets {
		if off <= prev {
			continue
		}
		block := content[prev:off]
		startLine := strings.Count(content[:prev], "\n") + 1
		if len(block) <= c.chunkSize {
			if strings.TrimSpace(block) != "" {
				chunks = append(chunks, Chunk{Content: block, StartLine: startLine})
			}
		} else {
			pieces, err := splitter.SplitText(block)
			if err != nil {
				return nil, fmt.Errorf("failed to split block: %w", err)
			}
			for _, piece := range locateChunks(block, pieces) {
				piece.StartLine += startLine - 1
				chunks = append(chunks, piece)
			}
		}
		prev = off
	}
	return chunks, nil
}

// locateChunks finds each piece's line number in the original content.
// The splitter trims whitespace, so pieces are searched in order from
// the end of the previous match.
func locateChunks(content string, pieces []string) []Chunk {
	chunks := make([]Chunk, 0, len(pieces))
	searchFrom := 0
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		startLine := 1
		if idx := strings.Index(content[searchFrom:], piece); idx >= 0 {
			pos := searchFrom + idx
			startLine = strings.Count(content[:pos], "\n") + 1
			// Overlapping chunks share text; only advance past the
			// non-overlapping prefix.
			searchFrom = pos + 1
		}
		chunks = append(chunks, Chunk{Content: piece, StartLine: startLine})
	}
	return chunks
}

func (c *Chunker) splitterForFile(filename string) textsplitter.TextSplitter {
	switch filepath.Ext(filename) {
	case ".md":
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(c.chunkSize),
			textsplitter.WithChunkOverlap(c.chunkOverlap),
			textsplitter.WithSeparators(markdownSeparators),
		)

	case ".py":
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(c.chunkSize),
			textsplitter.WithChunkOverlap(c.chunkOverlap),
			textsplitter.WithSeparators(pythonSeparators),
		)

	case ".js", ".ts", ".tsx", ".jsx", ".java", ".c", ".cpp", ".h", ".hpp", ".cs", ".rb", ".php", ".rs", ".go":
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(c.chunkSize),
			textsplitter.WithChunkOverlap(c.chunkOverlap),
			textsplitter.WithSeparators(cStyleSeparators),
		)

	case ".log", ".csv", ".json", ".xml", ".yaml", ".yml":
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(c.chunkSize),
			textsplitter.WithChunkOverlap(c.chunkOverlap),
			textsplitter.WithSeparators(lineSeparators),
		)

	default:
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(c.chunkSize),
			textsplitter.WithChunkOverlap(c.chunkOverlap),
			textsplitter.WithSeparators(defaultSeparators),
		)
	}
}
