// Copyright (C) 2026 HarborML (oss@harborml.dev)
// Tests for route registration

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborml/codeassist/services/indexer"
	"github.com/harborml/codeassist/services/rag"
	"github.com/harborml/codeassist/services/vectorstore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubPipeline struct{}

func (stubPipeline) Query(context.Context, string, []float32) (*rag.Answer, error) {
	return &rag.Answer{Text: "stub"}, nil
}

type stubManager struct{}

func (stubManager) Trigger() bool          { return true }
func (stubManager) Status() indexer.Status { return indexer.Status{State: indexer.StateIdle} }

type stubStore struct{ vectorstore.Store }

func (stubStore) ListSources(context.Context) ([]string, error) { return nil, nil }
func (stubStore) Count(context.Context) (int, error)            { return 0, nil }

func newRouter() *gin.Engine {
	router := gin.New()
	SetupRoutes(router, stubStore{}, stubPipeline{}, stubManager{})
	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestRoutes_Health(t *testing.T) {
	w := get(newRouter(), "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestRoutes_Metrics(t *testing.T) {
	w := get(newRouter(), "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_IndexStatus(t *testing.T) {
	w := get(newRouter(), "/api/v1/index/status")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_Documents(t *testing.T) {
	w := get(newRouter(), "/api/v1/documents")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_UnknownPath(t *testing.T) {
	w := get(newRouter(), "/api/v2/nothing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
