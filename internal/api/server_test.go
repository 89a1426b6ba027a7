package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aaronlmathis/mesos-stats/internal/timeseries"
	"github.com/aaronlmathis/mesos-stats/internal/version"
)

func serve(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Healthz(t *testing.T) {
	s := NewServer(zaptest.NewLogger(t), "127.0.0.1:0", Options{})

	rec := serve(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_Readyz(t *testing.T) {
	var lag error
	s := NewServer(zaptest.NewLogger(t), "127.0.0.1:0", Options{Ready: func() error { return lag }})

	assert.Equal(t, http.StatusOK, serve(t, s, "/readyz").Code)

	lag = errors.New("no collection cycle finished in 3m5s")
	rec := serve(t, s, "/readyz?full=1")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "collection-cycle")
}

func TestServer_Version(t *testing.T) {
	s := NewServer(zaptest.NewLogger(t), "127.0.0.1:0", Options{})

	rec := serve(t, s, "/version")
	require.Equal(t, http.StatusOK, rec.Code)

	var info version.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, version.Get(), info)
}

func TestServer_Status(t *testing.T) {
	finished := time.Date(2018, 2, 9, 8, 41, 0, 0, time.UTC)
	snap := timeseries.HealthSnapshot{TotalAdded: 120, TotalDrained: 120, Limit: 1000}
	s := NewServer(zaptest.NewLogger(t), "127.0.0.1:0", Options{
		Status: func() Status {
			return Status{LastCycle: finished, LastOutcome: "ok", Queue: snap}
		},
	})

	rec := serve(t, s, "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status      string                    `json:"status"`
		LastCycle   time.Time                 `json:"last_cycle"`
		LastOutcome string                    `json:"last_outcome"`
		Queue       timeseries.HealthSnapshot `json:"queue"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.True(t, finished.Equal(body.LastCycle))
	assert.Equal(t, "ok", body.LastOutcome)
	assert.Equal(t, int64(120), body.Queue.TotalAdded)

	snap.Depth = 950
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, s, "/status").Code)
}

func TestServer_StatusDisabled(t *testing.T) {
	s := NewServer(zaptest.NewLogger(t), "127.0.0.1:0", Options{})
	assert.Equal(t, http.StatusNotFound, serve(t, s, "/status").Code)
}

func TestServer_Metrics(t *testing.T) {
	s := NewServer(zaptest.NewLogger(t), "127.0.0.1:0", Options{})

	// Record at least one request so the admin counters exist.
	serve(t, s, "/healthz")
	rec := serve(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mesos_stats_http_requests_total")
}

func TestServer_StartStop(t *testing.T) {
	s := NewServer(zaptest.NewLogger(t), "127.0.0.1:0", Options{})
	require.NoError(t, s.Start())

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop(context.Background()))
}
