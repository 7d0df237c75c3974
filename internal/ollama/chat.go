package ollama

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/recall/internal/metrics"
	"github.com/blueberrycongee/recall/internal/observability"
	llmerrors "github.com/blueberrycongee/recall/pkg/errors"
)

// Chat forwards a raw /api/chat request body and returns the runtime's
// response unread. The caller must close the body. A non-nil error means no
// response was received at all.
func (c *Client) Chat(ctx context.Context, body []byte) (*http.Response, error) {
	ctx, span := observability.StartSpan(ctx, "ollama.api.chat", trace.SpanKindClient,
		attribute.String("url.path", PathChat))
	defer span.End()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PathChat, bytes.NewReader(body))
	if err != nil {
		return nil, llmerrors.NewInternalError("ollama.api.chat", fmt.Sprintf("create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordOllamaRequest(PathChat, "error", time.Since(start))
		observability.RecordError(span, err)
		return nil, llmerrors.NewUpstreamError("ollama.api.chat", "connection failed", err)
	}
	// Latency here is time to first byte; the body may still be streaming.
	metrics.RecordOllamaRequest(PathChat, strconv.Itoa(resp.StatusCode), time.Since(start))
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	return resp, nil
}
