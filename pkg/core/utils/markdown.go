package utils

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
)

// RenderHTML converts a markdown answer to HTML for callers that asked for
// format=html. Answers are plain sentences with the occasional list, so
// default goldmark is enough.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render answer markdown: %w", err)
	}
	return buf.String(), nil
}
