package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crawlkit/fetchd/internal/dispatcher"
	"github.com/crawlkit/fetchd/internal/fetch"
	"github.com/crawlkit/fetchd/internal/outcome"
	"github.com/crawlkit/fetchd/internal/pool"
	"github.com/crawlkit/fetchd/internal/results/memory"
)

type stubFetcher struct{}

func (stubFetcher) Fetch(_ context.Context, url string) (fetch.Payload, error) {
	return fetch.Payload{URL: url, StatusCode: http.StatusOK, FetchedAt: time.Now()}, nil
}

type stubClock struct{}

func (stubClock) Now() time.Time { return time.Now().UTC() }

type stubIDGen struct{}

func (stubIDGen) NewID() (string, error) { return "test-id", nil }

func newTestServer(t *testing.T) (*Server, *memory.Sink) {
	t.Helper()

	workers, err := pool.New(context.Background(), 2)
	require.NoError(t, err)
	t.Cleanup(workers.Close)

	sink := memory.New()
	d, err := dispatcher.New(workers, stubFetcher{}, outcome.New(), sink, stubClock{}, dispatcher.Config{}, zap.NewNop())
	require.NoError(t, err)

	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return NewServer(d, stubIDGen{}, metricsHandler, time.Second, zap.NewNop()), sink
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatsSnapshot(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var stats statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Zero(t, stats.ActiveFetches)
	assert.Zero(t, stats.FetchesPerSec)
}

func TestSubmitFetchAccepted(t *testing.T) {
	t.Parallel()

	srv, sink := newTestServer(t)
	body := strings.NewReader(`{"url":"http://example.com/page","crawl_delay_ms":500}`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/fetch", body))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var accepted fetchAccepted
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	assert.Equal(t, "test-id", accepted.RequestID)
	assert.Equal(t, "http://example.com", accepted.DomainKey)

	require.Eventually(t, func() bool { return sink.Len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSubmitFetchRejectsBadInput(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"empty body", ``},
		{"missing url", `{}`},
		{"relative url", `{"url":"/no-scheme"}`},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/fetch", strings.NewReader(tc.body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.name)
	}
}

func TestMetricsRouteUsesInjectedHandler(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
