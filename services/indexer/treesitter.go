// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package indexer

import (
	"context"
	"log/slog"
	"path/filepath"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"
)

// declarationNodeTypes maps a language's top-level declaration node
// types to the cut points used for structure-aware chunking.
var declarationNodeTypes = map[string]map[string]bool{
	".py": {
		"function_definition":  true,
		"class_definition":     true,
		"decorated_definition": true,
	},
	".go": {
		"function_declaration": true,
		"method_declaration":   true,
		"type_declaration":     true,
	},
}

// declarationBoundaries returns sorted byte offsets of top-level
// declarations in content. Returns nil for unsupported file types or
// when parsing fails, in which case the caller falls back to
// separator-based splitting.
func declarationBoundaries(content, filePath string) []int {
	ext := filepath.Ext(filePath)
	nodeTypes, ok := declarationNodeTypes[ext]
	if !ok {
		return nil
	}

	parser := sitter.NewParser()
	switch ext {
	case ".py":
		parser.SetLanguage(python.GetLanguage())
	case ".go":
		parser.SetLanguage(golang.GetLanguage())
	}
	defer parser.Close()

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(content))
	if err != nil {
		slog.Debug("Failed to parse file for boundary detection", "file", filePath, "error", err)
		return nil
	}
	defer tree.Close()

	root := tree.RootNode()
	var boundaries []int
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if !nodeTypes[child.Type()] {
			continue
		}
		if off := int(child.StartByte()); off > 0 {
			boundaries = append(boundaries, off)
		}
	}
	return boundaries
}
