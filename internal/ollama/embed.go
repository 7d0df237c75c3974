package ollama

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	llmerrors "github.com/blueberrycongee/recall/pkg/errors"
	"github.com/blueberrycongee/recall/pkg/types"
)

// ErrEmptyEmbedding is returned when the runtime answers 200 without a vector.
var ErrEmptyEmbedding = errors.New("response has no embedding")

// Embed returns the embedding of text produced by model.
func (c *Client) Embed(ctx context.Context, text, model string) ([]float32, error) {
	var resp types.EmbeddingResponse
	err := c.call(ctx, "POST", PathEmbeddings,
		types.EmbeddingRequest{Model: model, Prompt: text}, &resp,
		attribute.String("ollama.model", model),
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, llmerrors.NewUpstreamError("ollama.api.embeddings", "embedding unavailable", ErrEmptyEmbedding)
	}

	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
