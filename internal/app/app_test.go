package app

import (
	"bytes"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lostfound/lostfound/internal/observability"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 24*time.Hour, cfg.JWTTTL)
	require.Equal(t, time.Minute, cfg.CatalogRefreshInterval)
	require.Equal(t, "user", cfg.DefaultRole)
	require.Equal(t, 5, cfg.WorkerConcurrency)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsWeakSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&Config{LogFormat: "json"}, &buf).Info("hello", slog.Int("n", 1))
	require.True(t, strings.HasPrefix(buf.String(), "{"))

	buf.Reset()
	newLogger(&Config{LogFormat: "pretty"}, &buf).Info("hello")
	require.Contains(t, buf.String(), "msg=hello")
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv("LOSTFOUND_TEST_MODE", "1")
	RefreshTestMode()
	require.True(t, InTestMode())
	t.Setenv("LOSTFOUND_TEST_MODE", "0")
	RefreshTestMode()
	require.False(t, InTestMode())
}

func newTestRouter() http.Handler {
	return NewRouter(RouterParams{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:  &Config{AppRequestTimeout: time.Second, RateLimitPerMinute: 1000},
		Metrics: observability.NewMetrics(),
	})
}

func TestRouterPublicEndpoints(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "lostfound_http_requests_total")
}

func TestRouterRequiresPrincipal(t *testing.T) {
	router := newTestRouter()
	for _, path := range []string{"/items/", "/interests/mine"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestAccessLogRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json"}, &buf)
	handler := accessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/7", nil))
	require.Contains(t, buf.String(), `"path":"/items/7"`)
	require.Contains(t, buf.String(), `"status":418`)
}

func TestRouterLogsEachRequestOnce(t *testing.T) {
	var stdlog bytes.Buffer
	log.SetOutput(&stdlog)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	var buf bytes.Buffer
	router := NewRouter(RouterParams{
		Logger: newLogger(&Config{LogFormat: "json"}, &buf),
		Config: &Config{AppRequestTimeout: time.Second, RateLimitPerMinute: 1000},
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, 1, strings.Count(buf.String(), `"msg":"http request"`))
	require.Empty(t, stdlog.String())
}
