package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/ragline/ragline/internal/ai"
	"github.com/ragline/ragline/internal/embedcache"
	"github.com/ragline/ragline/internal/handler"
	"github.com/ragline/ragline/internal/index"
	"github.com/ragline/ragline/internal/memory"
	"github.com/ragline/ragline/internal/middleware"
	"github.com/ragline/ragline/internal/pkg/errcode"
	"github.com/ragline/ragline/internal/repo"
	"github.com/ragline/ragline/internal/retrieval"
	"github.com/ragline/ragline/internal/service"
)

type fixedEmbedder struct {
	down bool
}

func (f *fixedEmbedder) ModelName() string { return "test-embed" }

func (f *fixedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.down {
		return nil, fmt.Errorf("%w: dial tcp: refused", ai.ErrUnavailable)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type fixedGenerator struct{}

func (fixedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "generated answer", nil
}

func setupRouter(t *testing.T, embDown bool) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := repo.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cache := embedcache.New(ctx, repo.NewEmbeddingCacheRepo(db), embedcache.Options{})
	batcher := embedcache.NewBatcher(&fixedEmbedder{down: embDown}, cache, 10)
	idx := index.NewMemoryIndex(repo.NewChunkRepo(db))
	retriever := retrieval.NewRetriever(idx, 2, retrieval.DefaultWeights)

	chatService := service.NewChatService(batcher, retriever, fixedGenerator{}, memory.New(10), cache, service.ChatConfig{})
	ingestService := service.NewIngestService(batcher, idx)

	deps := handler.RouterDeps{
		Chat:      handler.NewChatHandler(chatService),
		Documents: handler.NewDocumentHandler(ingestService),
		Stats:     handler.NewStatsHandler(chatService),
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return engine
}

type apiResponse struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	var parsed apiResponse
	_ = json.Unmarshal(resp.Body.Bytes(), &parsed)
	return resp, parsed
}

func TestChatEndpoint(t *testing.T) {
	router := setupRouter(t, false)

	_, parsed := doJSON(t, router, http.MethodPost, "/api/v1/documents", map[string]interface{}{
		"chunks": []map[string]interface{}{
			{"id": "c1", "text": "the refund policy allows returns within thirty days"},
		},
	})
	require.Equal(t, 0, parsed.Code)

	resp, parsed := doJSON(t, router, http.MethodPost, "/api/v1/chat", map[string]string{
		"question": "what is the refund policy?",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 0, parsed.Code)
	require.Equal(t, "generated answer", parsed.Data["answer"])
}

func TestChatEndpointGreeting(t *testing.T) {
	router := setupRouter(t, true) // even with the embedder down

	resp, parsed := doJSON(t, router, http.MethodPost, "/api/v1/chat", map[string]string{
		"question": "hello",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 0, parsed.Code)
	require.Equal(t, service.GreetingResponse, parsed.Data["answer"])
}

func TestChatEndpointUnavailable(t *testing.T) {
	router := setupRouter(t, true)

	resp, parsed := doJSON(t, router, http.MethodPost, "/api/v1/chat", map[string]string{
		"question": "a real question about documents",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, errcode.ErrAIUnavailable, parsed.Code)
}

func TestChatEndpointBadRequest(t *testing.T) {
	router := setupRouter(t, false)
	_, parsed := doJSON(t, router, http.MethodPost, "/api/v1/chat", map[string]string{"question": "  "})
	require.Equal(t, errcode.ErrInvalid, parsed.Code)
}

func TestStatsAndCacheEndpoints(t *testing.T) {
	router := setupRouter(t, false)

	_, _ = doJSON(t, router, http.MethodPost, "/api/v1/chat", map[string]string{
		"question": "what is in the documents?",
	})

	resp, parsed := doJSON(t, router, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.EqualValues(t, 1, parsed.Data["queries"])

	resp, parsed = doJSON(t, router, http.MethodDelete, "/api/v1/cache", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 0, parsed.Code)

	resp, parsed = doJSON(t, router, http.MethodDelete, "/api/v1/chat/memory", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 0, parsed.Code)
}

func TestIngestValidation(t *testing.T) {
	router := setupRouter(t, false)

	_, parsed := doJSON(t, router, http.MethodPost, "/api/v1/documents", map[string]interface{}{
		"chunks": []map[string]interface{}{},
	})
	require.Equal(t, errcode.ErrInvalid, parsed.Code)

	_, parsed = doJSON(t, router, http.MethodPost, "/api/v1/documents", map[string]interface{}{
		"chunks": []map[string]interface{}{{"id": "c1", "text": "   "}},
	})
	require.Equal(t, errcode.ErrInvalid, parsed.Code)
}
