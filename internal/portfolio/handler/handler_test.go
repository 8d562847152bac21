package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/biz"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/metrics"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/model"
	apierrors "github.com/smaxiso/portfolio-rag/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRetriever struct {
	result *biz.RetrievalResult
	err    error
	got    string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string) (*biz.RetrievalResult, error) {
	f.got = query
	return f.result, f.err
}

type fakeResponder struct {
	fragments   []biz.Fragment
	decline     bool
	gotHistory  []model.Turn
	gotRetrieve *biz.RetrievalResult
}

func (f *fakeResponder) ShouldDecline(string, *biz.RetrievalResult) bool { return f.decline }

func (f *fakeResponder) Respond(_ context.Context, _ string, history []model.Turn, retrieval *biz.RetrievalResult) <-chan biz.Fragment {
	f.gotHistory = history
	f.gotRetrieve = retrieval
	ch := make(chan biz.Fragment, len(f.fragments))
	for _, frag := range f.fragments {
		ch <- frag
	}
	close(ch)
	return ch
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e), w.Body.String())
	return e
}

func postChat(h *ChatHandler, body string) *httptest.ResponseRecorder {
	r := gin.New()
	r.POST("/v1/chat", h.Chat)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return w.Body.String()
}

func relevant() *biz.RetrievalResult {
	return &biz.RetrievalResult{Context: "---\nGo\n---", HasRelevantContext: true}
}

func TestChatStreamsFragments(t *testing.T) {
	m := metrics.New()
	retriever := &fakeRetriever{result: relevant()}
	responder := &fakeResponder{fragments: []biz.Fragment{{Text: "Yes, "}, {Text: "Sumit knows Go."}}}
	h := NewChatHandler(retriever, responder, m)

	w := postChat(h, `{"message":"Does Sumit know Go?","history":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "Yes, Sumit knows Go.", w.Body.String())
	assert.Equal(t, "Does Sumit know Go?", retriever.got)
	assert.Equal(t, []model.Turn{
		{Role: model.RoleUser, Content: "hi"},
		{Role: model.RoleAssistant, Content: "hello"},
	}, responder.gotHistory)
	assert.Same(t, retriever.result, responder.gotRetrieve)
	assert.Contains(t, scrape(t, m), `portfolio_rag_chat_requests_total{outcome="answered"} 1`)
}

func TestChatDeclinedIsCounted(t *testing.T) {
	m := metrics.New()
	responder := &fakeResponder{decline: true, fragments: []biz.Fragment{{Text: biz.DeclineMessage}}}
	h := NewChatHandler(&fakeRetriever{result: &biz.RetrievalResult{}}, responder, m)

	w := postChat(h, `{"message":"what is the capital of France?"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, biz.DeclineMessage, w.Body.String())
	assert.Contains(t, scrape(t, m), `portfolio_rag_chat_requests_total{outcome="declined"} 1`)
}

func TestChatInterruptedStream(t *testing.T) {
	responder := &fakeResponder{fragments: []biz.Fragment{
		{Text: "Sumit has worked "},
		{Err: errors.New("upstream reset")},
	}}
	h := NewChatHandler(&fakeRetriever{result: relevant()}, responder, nil)

	w := postChat(h, `{"message":"Where has Sumit worked?"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Sumit has worked "+StreamErrorTail, w.Body.String())
	assert.NotContains(t, w.Body.String(), "upstream reset")
}

func TestChatFailureBeforeFirstByte(t *testing.T) {
	responder := &fakeResponder{fragments: []biz.Fragment{{Err: errors.New("quota exceeded")}}}
	h := NewChatHandler(&fakeRetriever{result: relevant()}, responder, nil)

	w := postChat(h, `{"message":"Where has Sumit worked?"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	e := decode(t, w)
	assert.Equal(t, apierrors.ErrChatFailed.Code, e.Code)
	assert.NotContains(t, w.Body.String(), "quota")
}

func TestChatEmptyStream(t *testing.T) {
	h := NewChatHandler(&fakeRetriever{result: relevant()}, &fakeResponder{}, nil)

	w := postChat(h, `{"message":"hi"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestChatErrors(t *testing.T) {
	tests := []struct {
		name      string
		retriever Retriever
		responder Responder
		body      string
		status    int
		code      int
		message   string
	}{
		{
			name:      "missing message",
			retriever: &fakeRetriever{},
			responder: &fakeResponder{},
			body:      `{"history":[]}`,
			status:    http.StatusBadRequest,
			code:      apierrors.ErrInvalidParam.Code,
			message:   "message is required",
		},
		{
			name:      "blank message",
			retriever: &fakeRetriever{},
			responder: &fakeResponder{},
			body:      `{"message":"   "}`,
			status:    http.StatusBadRequest,
			code:      apierrors.ErrInvalidParam.Code,
			message:   "message must not be blank",
		},
		{
			name:      "history turn without role",
			retriever: &fakeRetriever{},
			responder: &fakeResponder{},
			body:      `{"message":"hi","history":[{"content":"x"}]}`,
			status:    http.StatusBadRequest,
			code:      apierrors.ErrInvalidParam.Code,
			message:   "history[0].role is required",
		},
		{
			name:      "malformed json",
			retriever: &fakeRetriever{},
			responder: &fakeResponder{},
			body:      `{"message":`,
			status:    http.StatusBadRequest,
			code:      apierrors.ErrInvalidParam.Code,
			message:   "request body must be JSON with a message field",
		},
		{
			name:    "not configured",
			body:    `{"message":"hi"}`,
			status:  http.StatusServiceUnavailable,
			code:    apierrors.ErrChatNotConfigured.Code,
			message: "AI services not configured",
		},
		{
			name:      "embedding failure",
			retriever: &fakeRetriever{err: biz.ErrQueryEmbedding},
			responder: &fakeResponder{},
			body:      `{"message":"hi"}`,
			status:    http.StatusInternalServerError,
			code:      apierrors.ErrEmbedQuery.Code,
			message:   "Failed to embed query",
		},
		{
			name:      "index failure",
			retriever: &fakeRetriever{err: errors.New("milvus: connection refused")},
			responder: &fakeResponder{},
			body:      `{"message":"hi"}`,
			status:    http.StatusInternalServerError,
			code:      apierrors.ErrChatFailed.Code,
			message:   "Failed to answer the question",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewChatHandler(tt.retriever, tt.responder, nil)
			w := postChat(h, tt.body)

			assert.Equal(t, tt.status, w.Code)
			e := decode(t, w)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.message, e.Message)
		})
	}
}

type fakeIngestion struct {
	run       *biz.Run
	err       error
	status    biz.Status
	statusErr error
}

func (f *fakeIngestion) Trigger(context.Context) (*biz.Run, error) { return f.run, f.err }

func (f *fakeIngestion) Status(context.Context) (biz.Status, error) { return f.status, f.statusErr }

func serveIngest(h *IngestHandler, method, path string) *httptest.ResponseRecorder {
	r := gin.New()
	r.POST("/v1/admin/ingest", h.Trigger)
	r.GET("/v1/admin/ingest/status", h.Status)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestIngestTrigger(t *testing.T) {
	tests := []struct {
		name   string
		fake   *fakeIngestion
		status int
		code   int
	}{
		{"scheduled", &fakeIngestion{run: &biz.Run{ID: "01HRUN"}}, http.StatusAccepted, 0},
		{"already running", &fakeIngestion{err: biz.ErrIngestionRunning}, http.StatusConflict, apierrors.ErrIngestRunning.Code},
		{"pool full", &fakeIngestion{err: biz.ErrSubmitFailed}, http.StatusServiceUnavailable, apierrors.ErrIngestSubmit.Code},
		{"status store down", &fakeIngestion{err: errors.New("redis down")}, http.StatusInternalServerError, apierrors.ErrInternal.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serveIngest(NewIngestHandler(tt.fake), http.MethodPost, "/v1/admin/ingest")
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode(t, w).Code)
		})
	}

	w := serveIngest(NewIngestHandler(nil), http.MethodPost, "/v1/admin/ingest")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = serveIngest(NewIngestHandler(&fakeIngestion{run: &biz.Run{ID: "01HRUN"}}), http.MethodPost, "/v1/admin/ingest")
	var data TriggerResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, TriggerResponse{Status: biz.StateRunning, RunID: "01HRUN"}, data)
}

func TestIngestStatus(t *testing.T) {
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := "collect: boom"
	fake := &fakeIngestion{status: biz.Status{State: biz.StateFailed, LastRun: &last, Error: &msg}}

	w := serveIngest(NewIngestHandler(fake), http.MethodGet, "/v1/admin/ingest/status")
	require.Equal(t, http.StatusOK, w.Code)

	var data map[string]any
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, "failed", data["status"])
	assert.Equal(t, "collect: boom", data["error"])
	assert.Equal(t, "2026-03-01T12:00:00Z", data["lastRun"])
	assert.Nil(t, data["lastCompleted"])

	fake.statusErr = errors.New("redis down")
	w = serveIngest(NewIngestHandler(fake), http.MethodGet, "/v1/admin/ingest/status")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealthAndVersion(t *testing.T) {
	r := gin.New()
	r.GET("/healthz", Healthz)
	r.GET("/version", Version)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, string(decode(t, w).Data))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(decode(t, w).Data), "gitVersion")
}
