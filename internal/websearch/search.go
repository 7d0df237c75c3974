// Package websearch queries DuckDuckGo's HTML front ends and extracts the
// organic results.
package websearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/recall/internal/observability"
	"github.com/blueberrycongee/recall/pkg/types"
)

// Default endpoints.
const (
	DefaultHTMLEndpoint = "https://html.duckduckgo.com/html/"
	DefaultLiteEndpoint = "https://lite.duckduckgo.com/lite/"
	DefaultMaxResults   = 5

	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxPageBytes     = 2 << 20
)

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("Search query is required")

// NoResultsMessage is returned when every backend came back empty.
const NoResultsMessage = "No search results found. The search service might be blocked or unavailable."

// Config configures a Searcher.
type Config struct {
	// BaseURL, when set, replaces both endpoints with BaseURL+"/html/" and
	// BaseURL+"/lite/".
	BaseURL    string
	MaxResults int
	Timeout    time.Duration
	UserAgent  string
}

type backend struct {
	name     string
	endpoint string
	parse    func(io.Reader, int) ([]types.WebSearchResult, error)
}

// Searcher runs a query against each backend in order until one returns
// results.
type Searcher struct {
	client     *http.Client
	backends   []backend
	maxResults int
	userAgent  string
	logger     *slog.Logger
}

// New creates a Searcher.
func New(cfg Config, logger *slog.Logger) *Searcher {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = slog.Default()
	}

	htmlEndpoint, liteEndpoint := DefaultHTMLEndpoint, DefaultLiteEndpoint
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		htmlEndpoint, liteEndpoint = base+"/html/", base+"/lite/"
	}

	return &Searcher{
		client: &http.Client{Timeout: cfg.Timeout},
		backends: []backend{
			{name: "html", endpoint: htmlEndpoint, parse: parseHTMLResults},
			{name: "lite", endpoint: liteEndpoint, parse: parseLiteResults},
		},
		maxResults: cfg.MaxResults,
		userAgent:  cfg.UserAgent,
		logger:     logger,
	}
}

// Search returns up to MaxResults hits for query.
func (s *Searcher) Search(ctx context.Context, query string) ([]types.WebSearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	ctx, span := observability.StartSpan(ctx, "websearch.Search", trace.SpanKindClient,
		attribute.Int("websearch.max_results", s.maxResults),
	)
	defer span.End()

	var lastErr error
	for _, b := range s.backends {
		results, err := s.query(ctx, b, query)
		if err != nil {
			s.logger.Warn("web search backend failed", "backend", b.name, "error", err)
			lastErr = err
			continue
		}
		if len(results) > 0 {
			span.SetAttributes(
				attribute.String("websearch.backend", b.name),
				attribute.Int("websearch.results", len(results)),
			)
			return results, nil
		}
	}

	msg := NoResultsMessage
	if lastErr != nil {
		msg += " Last error: " + lastErr.Error()
	}
	err := errors.New(msg)
	observability.RecordError(span, err)
	return nil, err
}

func (s *Searcher) query(ctx context.Context, b backend, query string) ([]types.WebSearchResult, error) {
	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.name, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPageBytes))
		return nil, fmt.Errorf("%s: unexpected status %d", b.name, resp.StatusCode)
	}

	results, err := b.parse(io.LimitReader(resp.Body, maxPageBytes), s.maxResults)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.name, err)
	}
	return results, nil
}
