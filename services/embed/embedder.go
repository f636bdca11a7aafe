// Package embed computes text embeddings through an external provider.
//
// The embedding model itself never runs in this process. The default
// provider calls the embedding sidecar's /embed and /batch_embed
// endpoints; the alternative uses Ollama's embeddings API so a minimal
// stack needs only Ollama.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("codeassist.embed")

// MaxEmbedLength caps the text sent for embedding. Longer inputs are
// truncated; the tail contributes little to the vector anyway.
const MaxEmbedLength = 8192

// Embedder converts text into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ServiceEmbedder calls the HTTP embedding sidecar.
type ServiceEmbedder struct {
	httpClient *http.Client
	baseURL    string
}

// NewServiceEmbedder creates an embedder for the sidecar at baseURL.
// The URL may point at the /embed endpoint or the service root; both
// spellings appear in deployment manifests.
func NewServiceEmbedder(baseURL string) (*ServiceEmbedder, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("EMBEDDING_SERVICE_URL environment variable not set")
	}
	baseURL = strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/embed")
	return &ServiceEmbedder{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    baseURL,
	}, nil
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Id        string    `json:"id"`
	Timestamp int64     `json:"timestamp"`
	Text      string    `json:"text"`
	Vector    []float32 `json:"vector"`
	Dim       int       `json:"dim"`
}

type batchEmbedRequest struct {
	Texts []string `json:"texts"`
}

type batchEmbedResponse struct {
	Id        string      `json:"id"`
	Timestamp int64       `json:"timestamp"`
	Vectors   [][]float32 `json:"vectors"`
	Model     string      `json:"model"`
	Dim       int         `json:"dim"`
}

func (e *ServiceEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := tracer.Start(ctx, "ServiceEmbedder.Embed")
	defer span.End()

	var resp embedResponse
	if err := e.post(ctx, "/embed", embedRequest{Text: Truncate(text)}, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(resp.Vector) == 0 {
		return nil, fmt.Errorf("embedding service returned an empty vector")
	}
	return resp.Vector, nil
}

func (e *ServiceEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := tracer.Start(ctx, "ServiceEmbedder.EmbedBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("embed.batch_size", len(texts)))

	if len(texts) == 0 {
		return nil, nil
	}
	truncated := make([]string, len(texts))
	for i, t := range texts {
		truncated[i] = Truncate(t)
	}

	var resp batchEmbedResponse
	if err := e.post(ctx, "/batch_embed", batchEmbedRequest{Texts: truncated}, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(resp.Vectors) != len(texts) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d texts",
			len(resp.Vectors), len(texts))
	}
	return resp.Vectors, nil
}

func (e *ServiceEmbedder) post(ctx context.Context, path string, payload any, out any) error {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("embedding service call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read embedding service response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse embedding service response: %w", err)
	}
	return nil
}

// Truncate limits text to MaxEmbedLength bytes, backing up to a rune
// boundary so the cut never produces invalid UTF-8.
func Truncate(text string) string {
	if len(text) <= MaxEmbedLength {
		return text
	}
	cut := MaxEmbedLength
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

var _ Embedder = (*ServiceEmbedder)(nil)
