// Copyright (C) 2026 HarborML (oss@harborml.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/harborml/codeassist/pkg/config"
	"github.com/harborml/codeassist/services/assistant/middleware"
	"github.com/harborml/codeassist/services/assistant/routes"
	"github.com/harborml/codeassist/services/embed"
	"github.com/harborml/codeassist/services/indexer"
	"github.com/harborml/codeassist/services/llm"
	"github.com/harborml/codeassist/services/rag"
	"github.com/harborml/codeassist/services/vectorstore"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		// Tracing stays off unless a collector is configured.
		return func(context.Context) {}, nil
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("codeassist-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// buildStore picks the vector database backend from CHROMA_DB_IMPL.
func buildStore(cfg *config.Config) (vectorstore.Store, error) {
	switch cfg.VectordbImpl {
	case "chromem":
		slog.Info("Using embedded chromem vector store", "path", cfg.PersistDirectory)
		return vectorstore.NewChromemStore(cfg.PersistDirectory, cfg.VectordbCollection)
	case "weaviate":
		slog.Info("Using Weaviate vector store", "host", cfg.VectordbHost)
		return vectorstore.NewWeaviateStore(
			fmt.Sprintf("%s:%d", cfg.VectordbHost, cfg.VectordbPort), "http")
	default:
		slog.Info("Using Chroma vector store", "url", cfg.VectordbURL())
		return vectorstore.NewChromaStore(cfg.VectordbURL(), cfg.VectordbCollection)
	}
}

func buildEmbedder(cfg *config.Config) (embed.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "ollama":
		slog.Info("Using Ollama embeddings", "model", cfg.EmbeddingModel)
		return embed.NewOllamaEmbedder(cfg.OllamaBaseURL, cfg.EmbeddingModel)
	default:
		slog.Info("Using embedding service", "url", cfg.EmbeddingServiceURL)
		return embed.NewServiceEmbedder(cfg.EmbeddingServiceURL)
	}
}

func buildLLM(cfg *config.Config) (llm.LLMClient, error) {
	switch cfg.LLMType {
	case "openai":
		slog.Info("Using OpenAI LLM backend")
		return llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	case "ollama":
		slog.Info("Using Ollama LLM backend")
		return llm.NewOllamaClient(cfg.OllamaBaseURL, cfg.LLMModel)
	default:
		slog.Warn("LLM_TYPE not set or invalid, defaulting to ollama", "llm_type", cfg.LLMType)
		return llm.NewOllamaClient(cfg.OllamaBaseURL, cfg.LLMModel)
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	store, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("Failed to create vector store: %v", err)
	}
	// The database container can start slower than this service.
	if chroma, ok := store.(*vectorstore.ChromaStore); ok {
		if err := chroma.WaitReady(context.Background(), 30, 2*time.Second); err != nil {
			log.Fatalf("Vector database never became ready: %v", err)
		}
	}
	if err := store.EnsureCollection(context.Background()); err != nil {
		log.Fatalf("Failed to ensure collection: %v", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}
	llmClient, err := buildLLM(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	repos, err := cfg.LoadRepos()
	if err != nil {
		log.Fatalf("Failed to load repository list: %v", err)
	}

	var indexerOpts []indexer.Option
	indexerOpts = append(indexerOpts, indexer.WithWorkers(cfg.IndexWorkers))
	if cfg.GerritURL != "" {
		gerrit, err := indexer.NewGerritClient(cfg.GerritURL, cfg.GerritUsername, cfg.GerritToken)
		if err != nil {
			log.Fatalf("Failed to create Gerrit client: %v", err)
		}
		indexerOpts = append(indexerOpts, indexer.WithGerrit(gerrit))
	} else {
		slog.Info("GERRIT_URL not set, indexing GitHub and git repositories only")
	}

	ix := indexer.New(embedder, store, indexerOpts...)
	manager := indexer.NewManager(ix, repos, cfg.IndexInterval, cfg.IndexRetryInterval)
	manager.Start(context.Background())

	pipeline := rag.NewPipeline(embedder, store, llmClient)

	router := gin.Default()
	router.Use(otelgin.Middleware("codeassist-service"))
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	routes.SetupRoutes(router, store, pipeline, manager)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{Addr: addr, Handler: router}

	go func() {
		slog.Info("Starting the assistant server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("Shutting down")
	manager.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Forced shutdown", "error", err)
	}
}
