package ollama

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/blueberrycongee/recall/pkg/types"
)

// ListModels returns the names of all locally available models in catalog order.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	var resp types.TagsResponse
	if err := c.call(ctx, "GET", PathTags, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Names(), nil
}

// Show returns the metadata of a single model.
func (c *Client) Show(ctx context.Context, name string) (*types.ShowResponse, error) {
	var resp types.ShowResponse
	err := c.call(ctx, "POST", PathShow, types.ShowRequest{Name: name}, &resp,
		attribute.String("ollama.model", name),
	)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
