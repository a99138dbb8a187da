package engine

import (
	"context"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/microcosm-cc/bluemonday"

	"github.com/gestaozabele/conversor/internal/artifact"
)

// htmlConverter sanitiza o HTML antes de convertê-lo, removendo scripts,
// handlers de evento e URLs javascript:.
type htmlConverter struct {
	policy    *bluemonday.Policy
	converter *md.Converter
}

func newHTMLConverter() *htmlConverter {
	policy := bluemonday.UGCPolicy()
	policy.AllowDataURIImages()
	return &htmlConverter{
		policy:    policy,
		converter: md.NewConverter("", true, nil),
	}
}

func (c *htmlConverter) Convert(ctx context.Context, input []byte) (string, error) {
	sanitized := c.policy.Sanitize(decodeText(input))

	markdown, err := c.converter.ConvertString(sanitized)
	if err != nil {
		return "", fmt.Errorf("%w: html: %w", artifact.ErrUnsupportedContent, err)
	}
	return strings.TrimSpace(markdown), nil
}

func (c *htmlConverter) SupportedExtensions() []string { return []string{"html", "htm"} }

func (c *htmlConverter) Name() string { return "html" }
