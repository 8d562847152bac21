package portfolio

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/biz"
	"github.com/smaxiso/portfolio-rag/internal/portfolio/content"
	contentopts "github.com/smaxiso/portfolio-rag/pkg/options/content"
	geminiopts "github.com/smaxiso/portfolio-rag/pkg/options/gemini"
	httpopts "github.com/smaxiso/portfolio-rag/pkg/options/http"
	jwtopts "github.com/smaxiso/portfolio-rag/pkg/options/jwt"
	logopts "github.com/smaxiso/portfolio-rag/pkg/options/logger"
	milvusopts "github.com/smaxiso/portfolio-rag/pkg/options/milvus"
	qdrantopts "github.com/smaxiso/portfolio-rag/pkg/options/qdrant"
	ragopts "github.com/smaxiso/portfolio-rag/pkg/options/rag"
	ratelimitopts "github.com/smaxiso/portfolio-rag/pkg/options/ratelimit"
	redisopts "github.com/smaxiso/portfolio-rag/pkg/options/redis"
	storeopts "github.com/smaxiso/portfolio-rag/pkg/options/store"
	tracingopts "github.com/smaxiso/portfolio-rag/pkg/options/tracing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// fakeGemini serves embedContent with a constant vector and streams a fixed
// two-part answer, recording the last prompt it was given.
type fakeGemini struct {
	mu     sync.Mutex
	prompt string
	embeds int
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	switch {
	case strings.HasSuffix(r.URL.Path, ":embedContent"):
		f.mu.Lock()
		f.embeds++
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"embedding":{"values":[0.5,0.5,0.5,0.5]}}`)
	case strings.HasSuffix(r.URL.Path, ":streamGenerateContent"):
		f.mu.Lock()
		f.prompt = string(body)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Yes, ", "see Demo Project."} {
			_, _ = io.WriteString(w, `data: {"candidates":[{"content":{"parts":[{"text":"`+part+`"}]}}]}`+"\n\n")
		}
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeGemini) embedCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embeds
}

func (f *fakeGemini) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompt
}

func newTestConfig(t *testing.T, geminiURL string) *Config {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "portfolio.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(content.AllModels()...))
	require.NoError(t, db.Create(&content.Project{
		ID:           "p1",
		Title:        "Demo Project",
		Description:  "A chat assistant answering questions about a portfolio.",
		Category:     "project",
		Technologies: []string{"Go", "Redis"},
	}).Error)
	require.NoError(t, db.Create(&content.Skill{Category: "backend", Name: "Go", Level: "expert"}).Error)
	require.NoError(t, content.Close(db))

	cfg := &Config{
		HTTPOptions:      httpopts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		RAGOptions:       ragopts.NewOptions(),
		StoreOptions:     storeopts.NewOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		QdrantOptions:    qdrantopts.NewOptions(),
		GeminiOptions:    geminiopts.NewOptions(),
		RedisOptions:     redisopts.NewOptions(),
		ContentOptions:   contentopts.NewOptions(),
		RateLimitOptions: ratelimitopts.NewOptions(),
		TracingOptions:   tracingopts.NewOptions(),
		JWTOptions:       jwtopts.NewOptions(),
	}
	cfg.HTTPOptions.Addr = "127.0.0.1:0"
	cfg.HTTPOptions.Mode = "test"
	cfg.HTTPOptions.ShutdownTimeout = 5 * time.Second
	cfg.RAGOptions.Dimension = 4
	cfg.RAGOptions.ResumePath = filepath.Join(t.TempDir(), "missing.pdf")
	cfg.StoreOptions.Backend = storeopts.BackendMemory
	cfg.ContentOptions.DSN = dsn
	cfg.GeminiOptions.BaseURL = geminiURL
	cfg.GeminiOptions.APIKey = "test-key"
	cfg.GeminiOptions.MaxRetries = 0
	cfg.JWTOptions.Key = testSecret
	cfg.JWTOptions.AdminEmails = []string{"admin@example.com"}
	return cfg
}

func TestRunIngestionRequiresCredentials(t *testing.T) {
	cfg := newTestConfig(t, "http://127.0.0.1:1")
	cfg.GeminiOptions.APIKey = ""

	_, err := cfg.RunIngestion(t.Context())

	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestRunIngestionIndexesDatabaseContent(t *testing.T) {
	fake := &fakeGemini{}
	gemini := httptest.NewServer(fake)
	defer gemini.Close()

	status, err := newTestConfig(t, gemini.URL).RunIngestion(t.Context())

	require.NoError(t, err)
	assert.Equal(t, biz.StateCompleted, status.State)
	assert.Positive(t, status.Vectors)
	assert.Nil(t, status.Error)
	assert.GreaterOrEqual(t, fake.embedCalls(), status.Vectors)
}

func TestMintAdminTokenOnlyForAdmins(t *testing.T) {
	cfg := newTestConfig(t, "http://127.0.0.1:1")

	token, expires, err := cfg.MintAdminToken(t.Context(), "Admin@Example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expires.After(time.Now()))

	_, _, err = cfg.MintAdminToken(t.Context(), "someone@example.com")
	assert.Error(t, err)
}

type envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
}

func doRequest(t *testing.T, method, url, token, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestServerIngestsAndAnswers(t *testing.T) {
	fake := &fakeGemini{}
	gemini := httptest.NewServer(fake)
	defer gemini.Close()

	cfg := newTestConfig(t, gemini.URL)
	srv, err := cfg.NewServer(t.Context())
	require.NoError(t, err)
	require.NoError(t, srv.Start(t.Context()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, srv.Stop(ctx))
	}()
	base := "http://" + srv.Addr()

	resp, _ := doRequest(t, http.MethodPost, base+"/v1/admin/ingest", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, _, err := cfg.MintAdminToken(t.Context(), "admin@example.com")
	require.NoError(t, err)

	resp, _ = doRequest(t, http.MethodPost, base+"/v1/admin/ingest", token, "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	assert.Eventually(t, func() bool {
		req, _ := http.NewRequest(http.MethodGet, base+"/v1/admin/ingest/status", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var env envelope
		if json.NewDecoder(resp.Body).Decode(&env) != nil {
			return false
		}
		var status biz.Status
		return json.Unmarshal(env.Data, &status) == nil && status.State == biz.StateCompleted
	}, 5*time.Second, 20*time.Millisecond)

	resp, body := doRequest(t, http.MethodPost, base+"/v1/chat", "", `{"message":"What has Sumit built with Go?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Yes, see Demo Project.", string(body))
	assert.Contains(t, fake.lastPrompt(), "Demo Project")
	assert.Contains(t, fake.lastPrompt(), "What has Sumit built with Go?")
}

func TestServerWithoutCredentialsAnswers503(t *testing.T) {
	cfg := newTestConfig(t, "http://127.0.0.1:1")
	cfg.GeminiOptions.APIKey = ""
	cfg.JWTOptions.DisableAuth = true

	srv, err := cfg.NewServer(t.Context())
	require.NoError(t, err)
	require.NoError(t, srv.Start(t.Context()))
	defer func() { assert.NoError(t, srv.Stop(context.Background())) }()
	base := "http://" + srv.Addr()

	resp, _ := doRequest(t, http.MethodPost, base+"/v1/chat", "", `{"message":"hello there"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = doRequest(t, http.MethodPost, base+"/v1/admin/ingest", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, _ = doRequest(t, http.MethodGet, base+"/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
