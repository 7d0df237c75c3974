package resolver

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
)

// EmbeddingPriority lists well-known embedding models, best first.
var EmbeddingPriority = []string{
	"nomic-embed-text",
	"mxbai-embed-large",
	"all-minilm",
	"snowflake-arctic-embed",
}

// ToolPriority lists model families known to support tool calling, best
// first.
var ToolPriority = []string{
	"llama3.1",
	"llama3.2",
	"qwen2.5",
	"mistral-nemo",
	"mistral",
	"gemma2",
	"firefunction",
	"hermes",
}

// Template markers that signal tool support.
var (
	toolTemplateMarkers      = []string{"{{ .Tools }}", "{{.Tools}}"}
	toolTemplateMarkersLoose = []string{"{{ .Tools }}", "{{.Tools}}", "<tool>"}
)

var embeddingPhases = []phase{
	{name: "capability", pick: pickEmbeddingByCapability},
	{name: "priority", pick: pickEmbeddingByPriority},
	{name: "name", pick: pickEmbeddingByName},
	{name: "first", pick: pickFirst},
}

var toolPhases = []phase{
	{name: "priority", pick: pickToolByPriority},
	{name: "template", pick: pickToolByTemplate},
}

// pickEmbeddingByCapability selects the first model whose details declare
// a BERT family or the embedding capability.
func pickEmbeddingByCapability(ctx context.Context, c *candidates) (string, bool) {
	for _, m := range c.models {
		d := c.show(ctx, m)
		if d == nil {
			continue
		}
		if d.HasFamily("bert", "nomic-bert") || d.HasCapability("embedding") {
			return m, true
		}
	}
	return "", false
}

func pickEmbeddingByPriority(ctx context.Context, c *candidates) (string, bool) {
	for _, p := range EmbeddingPriority {
		for _, m := range c.models {
			if strings.Contains(m, p) {
				return m, true
			}
		}
	}
	return "", false
}

// pickEmbeddingByName also covers names containing "embedding".
func pickEmbeddingByName(ctx context.Context, c *candidates) (string, bool) {
	for _, m := range c.models {
		if strings.Contains(m, "embed") {
			return m, true
		}
	}
	return "", false
}

func pickFirst(ctx context.Context, c *candidates) (string, bool) {
	if len(c.models) == 0 {
		return "", false
	}
	return c.models[0], true
}

// pickToolByPriority walks ToolPriority and, within each entry, the catalog
// in order. A candidate needs readable details and either a tool-aware
// template or a llama3.1 name.
func pickToolByPriority(ctx context.Context, c *candidates) (string, bool) {
	fold := cases.Fold()
	folded := make([]string, len(c.models))
	for i, m := range c.models {
		folded[i] = fold.String(m)
	}

	for _, p := range ToolPriority {
		for i, m := range c.models {
			if !strings.Contains(folded[i], p) {
				continue
			}
			d := c.show(ctx, m)
			if d == nil {
				continue
			}
			if d.TemplateContains(toolTemplateMarkersLoose...) {
				return m, true
			}
			if strings.Contains(m, "llama3.1") {
				return m, true
			}
		}
	}
	return "", false
}

func pickToolByTemplate(ctx context.Context, c *candidates) (string, bool) {
	for _, m := range c.models {
		d := c.show(ctx, m)
		if d != nil && d.TemplateContains(toolTemplateMarkers...) {
			return m, true
		}
	}
	return "", false
}
