package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// newTestFetcher creates a Fetcher with a short timeout for tests.
func newTestFetcher(t *testing.T, timeout time.Duration) *Fetcher {
	t.Helper()
	return New(zaptest.NewLogger(t), Config{Timeout: timeout})
}

func TestGetJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/metrics/snapshot" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept header = %q", r.Header.Get("Accept"))
		}
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "mesos-stats/") {
			t.Errorf("User-Agent header = %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"master/elected": 1, "master/cpus_total": 32}`))
	}))
	defer srv.Close()

	f := newTestFetcher(t, 5*time.Second)
	var out map[string]any
	require.NoError(t, f.GetJSON(context.Background(), srv.URL+"/metrics/snapshot", &out))
	assert.Equal(t, 1.0, out["master/elected"])
	assert.Equal(t, 32.0, out["master/cpus_total"])
}

func TestGetJSON_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"success": false}`))
	}))
	defer srv.Close()

	f := newTestFetcher(t, 5*time.Second)
	var out map[string]any
	err := f.GetJSON(context.Background(), srv.URL+"/api/state", &out)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "success")
}

func TestGetJSON_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`response`))
	}))
	defer srv.Close()

	f := newTestFetcher(t, 5*time.Second)
	var out map[string]any
	err := f.GetJSON(context.Background(), srv.URL+"/slaves", &out)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestGetJSON_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := newTestFetcher(t, 100*time.Millisecond)
	var out map[string]any
	start := time.Now()
	err := f.GetJSON(context.Background(), srv.URL+"/metrics/snapshot", &out)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestGetJSON_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	f := newTestFetcher(t, 2*time.Second)
	var out map[string]any
	err := f.GetJSON(context.Background(), addr+"/metrics/snapshot", &out)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestGetJSON_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	f := New(zaptest.NewLogger(t), Config{Timeout: time.Second, RequestsPerSecond: 20, Burst: 1})
	start := time.Now()
	for i := 0; i < 3; i++ {
		var out map[string]any
		require.NoError(t, f.GetJSON(context.Background(), srv.URL+"/x", &out))
	}
	// Burst of one at 20/s spaces the second and third requests by ~50ms each.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestNew_Defaults(t *testing.T) {
	f := New(zaptest.NewLogger(t), Config{})
	assert.Equal(t, 20*time.Second, f.http.Timeout)
	assert.Nil(t, f.limiter)
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		address     string
		defaultPort string
		want        string
	}{
		{"mesos1", "5050", "http://mesos1:5050"},
		{"mesos1:5051", "5050", "http://mesos1:5051"},
		{"http://mesos1:5050/", "5050", "http://mesos1:5050"},
		{"https://singularity.example.com", "", "https://singularity.example.com"},
		{"slave1:5051", "", "http://slave1:5051"},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			assert.Equal(t, tt.want, BaseURL(tt.address, tt.defaultPort))
		})
	}
}

func TestNumericMap(t *testing.T) {
	raw := map[string]any{
		"activeTasks":          817.0,
		"authDatastoreHealthy": "true",
		"maintenanceMode":      "false",
		"status":               "green",
		"generatedAt":          "1516279668086",
		"elected":              true,
		"nested":               map[string]any{"a": 1.0},
	}

	got := NumericMap(raw)
	assert.Equal(t, map[string]float64{
		"activeTasks":          817,
		"authDatastoreHealthy": 1,
		"maintenanceMode":      0,
		"generatedAt":          1516279668086,
		"elected":              1,
	}, got)
}
