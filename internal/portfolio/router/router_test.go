package router

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/biz"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/handler"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/metrics"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/model"
	"github.com/smaxiso/portfolio-rag/pkg/auth/jwt"
	"github.com/smaxiso/portfolio-rag/pkg/authz"
	"github.com/smaxiso/portfolio-rag/pkg/infra/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRetriever struct{}

func (stubRetriever) Retrieve(context.Context, string) (*biz.RetrievalResult, error) {
	return &biz.RetrievalResult{}, nil
}

type stubResponder struct{}

func (stubResponder) ShouldDecline(string, *biz.RetrievalResult) bool { return false }

func (stubResponder) Respond(context.Context, string, []model.Turn, *biz.RetrievalResult) <-chan biz.Fragment {
	ch := make(chan biz.Fragment, 1)
	ch <- biz.Fragment{Text: "hello"}
	close(ch)
	return ch
}

type stubIngestion struct{}

func (stubIngestion) Trigger(context.Context) (*biz.Run, error) { return &biz.Run{ID: "run-1"}, nil }

func (stubIngestion) Status(context.Context) (biz.Status, error) { return biz.IdleStatus(), nil }

func newEngine(t *testing.T, withAuth bool) (*gin.Engine, *jwt.JWT) {
	t.Helper()
	m := metrics.New()
	limiter := middleware.NewMemoryRateLimiter(2, time.Minute)
	t.Cleanup(limiter.Stop)

	routes := Routes{
		Chat:      handler.NewChatHandler(stubRetriever{}, stubResponder{}, m),
		Ingest:    handler.NewIngestHandler(stubIngestion{}),
		Metrics:   m.Handler(),
		RateLimit: middleware.RateLimit(middleware.RateLimitConfig{Limiter: limiter}),
	}

	signer, err := jwt.New(jwt.WithKey("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	if withAuth {
		authorizer, err := authz.NewAllowList(AdminResource, []string{"admin@example.com"})
		require.NoError(t, err)
		routes.AdminAuth = func(action string) gin.HandlerFunc {
			return middleware.AdminAuth(signer, authorizer, AdminResource, action)
		}
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	Register(engine, routes)
	return engine, signer
}

func do(engine *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.1:5555"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestChatRouteIsRateLimited(t *testing.T) {
	engine, _ := newEngine(t, true)

	for i := 0; i < 2; i++ {
		w := do(engine, http.MethodPost, "/v1/chat", `{"message":"hi"}`, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "hello", w.Body.String())
	}
	w := do(engine, http.MethodPost, "/v1/chat", `{"message":"hi"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	engine, signer := newEngine(t, true)

	assert.Equal(t, http.StatusUnauthorized, do(engine, http.MethodPost, "/v1/admin/ingest", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(engine, http.MethodGet, "/v1/admin/ingest/status", "", "").Code)

	token, _, err := signer.Sign(context.Background(), "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, do(engine, http.MethodPost, "/v1/admin/ingest", "", token).Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/v1/admin/ingest/status", "", token).Code)
}

func TestAdminRoutesOpenWhenAuthDisabled(t *testing.T) {
	engine, _ := newEngine(t, false)

	assert.Equal(t, http.StatusAccepted, do(engine, http.MethodPost, "/v1/admin/ingest", "", "").Code)
}

func TestOperationalRoutes(t *testing.T) {
	engine, _ := newEngine(t, true)

	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, do(engine, http.MethodGet, "/version", "", "").Code)

	do(engine, http.MethodPost, "/v1/chat", `{"message":"hi"}`, "")
	w := do(engine, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `portfolio_rag_chat_requests_total{outcome="answered"} 1`)
}
