package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/aaronlmathis/mesos-stats/internal/metrics"
	"github.com/aaronlmathis/mesos-stats/internal/version"
)

// Error classes returned by GetJSON. Callers match them with errors.Is.
var (
	ErrTransport = errors.New("transport failure")
	ErrTimeout   = errors.New("request timed out")
	ErrDecode    = errors.New("malformed JSON body")
)

// StatusError reports a non-2xx response
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Config holds configuration for a Fetcher
type Config struct {
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 disables pacing
	Burst             int           `yaml:"burst"`
	MaxResponseBytes  int64         `yaml:"max_response_bytes"`
}

// DefaultConfig returns the default fetch configuration
func DefaultConfig() Config {
	return Config{
		Timeout:          20 * time.Second,
		Burst:            10,
		MaxResponseBytes: 64 * 1024 * 1024,
	}
}

// Fetcher performs single JSON GET requests with a fixed timeout
type Fetcher struct {
	logger  *zap.Logger
	http    *http.Client
	limiter *rate.Limiter
	config  Config
}

// New creates a Fetcher from the given config
func New(logger *zap.Logger, cfg Config) *Fetcher {
	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = defaults.MaxResponseBytes
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaults.Burst
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}

	return &Fetcher{
		logger: logger,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		limiter: limiter,
		config:  cfg,
	}
}

// GetJSON fetches rawURL and decodes its JSON body into out.
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, out any) error {
	start := time.Now()
	target := targetLabel(rawURL)

	err := f.getJSON(ctx, rawURL, out)
	metrics.RecordFetch(target, time.Since(start), err != nil)

	if err != nil {
		f.logger.Debug("GET failed",
			zap.String("url", rawURL),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return err
	}

	f.logger.Debug("GET finished",
		zap.String("url", rawURL),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (f *Fetcher) getJSON(ctx context.Context, rawURL string, out any) error {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("GET %s: %w: %v", rawURL, ErrTimeout, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("GET %s: create request: %w", rawURL, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.Get().UserAgent())

	resp, err := f.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("GET %s: %w after %s", rawURL, ErrTimeout, f.config.Timeout)
		}
		return fmt.Errorf("GET %s: %w: %v", rawURL, ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxResponseBytes))
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("GET %s: %w reading body", rawURL, ErrTimeout)
		}
		return fmt.Errorf("GET %s: %w: read body: %v", rawURL, ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Body: truncate(body, 200)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("GET %s: %w: %v", rawURL, ErrDecode, err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// targetLabel reduces a URL to its path so metric labels stay bounded.
func targetLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "unknown"
	}
	return u.Path
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// BaseURL turns "host", "host:port" or a full URL into "scheme://host:port"
// without a trailing slash. defaultPort is used when no port is given.
func BaseURL(address, defaultPort string) string {
	address = strings.TrimSpace(address)
	scheme := "http"
	if i := strings.Index(address, "://"); i >= 0 {
		scheme = address[:i]
		address = address[i+3:]
	}
	address = strings.TrimRight(address, "/")

	if defaultPort != "" {
		if _, _, err := net.SplitHostPort(address); err != nil {
			address = net.JoinHostPort(address, defaultPort)
		}
	}
	return scheme + "://" + address
}
