// Package ollama is a minimal client for the parts of the Ollama HTTP API the
// memory service depends on: embeddings, the model catalog and model details.
package ollama

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/recall/internal/httputil"
	"github.com/blueberrycongee/recall/internal/metrics"
	"github.com/blueberrycongee/recall/internal/observability"
	llmerrors "github.com/blueberrycongee/recall/pkg/errors"
)

const (
	// DefaultBaseURL is the default Ollama API endpoint.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultTimeout bounds every call. Large models can take minutes to
	// load on first use.
	DefaultTimeout = 300 * time.Second
)

// API paths.
const (
	PathEmbeddings = "/api/embeddings"
	PathTags       = "/api/tags"
	PathShow       = "/api/show"
	PathChat       = "/api/chat"
)

// Config holds configuration for the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// MaxResponseBytes caps response bodies; zero uses the httputil default.
	MaxResponseBytes int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:          DefaultBaseURL,
		Timeout:          DefaultTimeout,
		MaxResponseBytes: httputil.DefaultMaxResponseBodyBytes,
	}
}

// Client talks to a single Ollama runtime. It holds no state besides its
// HTTP client and is safe for concurrent use.
type Client struct {
	client   *http.Client
	baseURL  string
	maxBytes int64
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = httputil.DefaultMaxResponseBodyBytes
	}
	return &Client{
		client:   &http.Client{Timeout: cfg.Timeout},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		maxBytes: cfg.MaxResponseBytes,
	}
}

// BaseURL returns the runtime base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient returns the underlying HTTP client.
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// call performs a JSON request and decodes a 200 response into out.
// Any other outcome is returned as an upstream error.
func (c *Client) call(ctx context.Context, method, path string, in, out any, attrs ...attribute.KeyValue) error {
	op := "ollama" + strings.ReplaceAll(path, "/", ".")
	ctx, span := observability.StartSpan(ctx, op, trace.SpanKindClient,
		append(attrs, attribute.String("http.request.method", method), attribute.String("url.path", path))...)
	defer span.End()

	start := time.Now()
	status := "error"
	defer func() {
		metrics.RecordOllamaRequest(path, status, time.Since(start))
	}()

	err := c.doCall(ctx, method, path, in, out, &status)
	if err != nil {
		observability.RecordError(span, err)
		return llmerrors.NewUpstreamError(op, "model runtime request failed", err)
	}
	return nil
}

func (c *Client) doCall(ctx context.Context, method, path string, in, out any, status *string) error {
	var body *bytes.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()
	*status = strconv.Itoa(resp.StatusCode)

	data, err := httputil.ReadLimitedBody(resp.Body, c.maxBytes)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s failed: status=%d, body=%s", path, resp.StatusCode, truncate(string(data), 256))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
