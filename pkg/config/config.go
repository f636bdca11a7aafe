// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the service configuration from the environment.
//
// Every knob the service exposes is an environment variable with a sane
// default, so a bare `codeassist serve` works against a local stack. The
// repository list for indexing lives in a small YAML file because a list
// of URLs does not map cleanly onto a single variable.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings for the assistant service.
type Config struct {
	// Server settings.
	Port int    `env:"PORT" envDefault:"8080"`
	Host string `env:"HOST" envDefault:"0.0.0.0"`

	// Vector DB settings. ChromaServerHost/Port are the names the
	// orchestration manifest injects; they win over VectordbHost/Port
	// when both are set.
	VectordbImpl       string `env:"CHROMA_DB_IMPL" envDefault:"chroma"`
	VectordbHost       string `env:"VECTORDB_HOST" envDefault:"0.0.0.0"`
	VectordbPort       int    `env:"VECTORDB_PORT" envDefault:"8000"`
	ChromaServerHost   string `env:"CHROMA_SERVER_HOST"`
	ChromaServerPort   int    `env:"CHROMA_SERVER_PORT"`
	VectordbCollection string `env:"VECTORDB_COLLECTION" envDefault:"default"`
	PersistDirectory   string `env:"PERSIST_DIRECTORY" envDefault:"/data/chroma"`

	// LLM settings.
	LLMType       string `env:"LLM_TYPE" envDefault:"ollama"`
	LLMModel      string `env:"LLM_MODEL" envDefault:"codellama"`
	OllamaBaseURL string `env:"OLLAMA_BASE_URL" envDefault:"http://host.docker.internal:11434"`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL"`

	// Embedding settings.
	EmbeddingProvider   string `env:"EMBEDDING_PROVIDER" envDefault:"service"`
	EmbeddingServiceURL string `env:"EMBEDDING_SERVICE_URL"`
	EmbeddingModel      string `env:"EMBEDDING_MODEL" envDefault:"all-mpnet-base-v2"`

	// Gerrit settings.
	GerritURL      string `env:"GERRIT_URL"`
	GerritToken    string `env:"GERRIT_TOKEN"`
	GerritUsername string `env:"GERRIT_USERNAME"`

	// Indexing settings.
	IndexInterval      time.Duration `env:"INDEX_INTERVAL" envDefault:"6h"`
	IndexRetryInterval time.Duration `env:"INDEX_RETRY_INTERVAL" envDefault:"15m"`
	IndexWorkers       int           `env:"INDEX_WORKERS" envDefault:"5"`
	ReposConfig        string        `env:"REPOS_CONFIG"`
}

// ReposFile is the on-disk shape of the repository list.
//
// Example:
//
//	github:
//	  - https://github.com/backstage/backstage
//	git:
//	  - https://git.example.com/tools/infra.git
type ReposFile struct {
	GitHub []string `yaml:"github"`
	Git    []string `yaml:"git"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.ChromaServerHost != "" {
		cfg.VectordbHost = cfg.ChromaServerHost
	}
	if cfg.ChromaServerPort != 0 {
		cfg.VectordbPort = cfg.ChromaServerPort
	}
	if cfg.IndexWorkers < 1 {
		cfg.IndexWorkers = 1
	}
	return &cfg, nil
}

// VectordbURL returns the base URL of the vector database HTTP API.
func (c *Config) VectordbURL() string {
	return fmt.Sprintf("http://%s:%d", c.VectordbHost, c.VectordbPort)
}

// LoadRepos reads the repository list referenced by ReposConfig.
// A missing path is not an error; indexing simply has no repositories
// beyond what Gerrit provides.
func (c *Config) LoadRepos() (*ReposFile, error) {
	if c.ReposConfig == "" {
		return &ReposFile{}, nil
	}
	raw, err := os.ReadFile(c.ReposConfig)
	if err != nil {
		if os.IsNotExist(err) {
			return &ReposFile{}, nil
		}
		return nil, fmt.Errorf("failed to read repos config %s: %w", c.ReposConfig, err)
	}
	var repos ReposFile
	if err := yaml.Unmarshal(raw, &repos); err != nil {
		return nil, fmt.Errorf("failed to parse repos config %s: %w", c.ReposConfig, err)
	}
	return &repos, nil
}
