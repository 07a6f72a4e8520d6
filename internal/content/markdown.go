package content

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// MarkdownConverter turns chapter HTML into markdown. Input is sanitized
// before conversion.
type MarkdownConverter struct {
	sanitizer *Sanitizer
	converter *md.Converter
}

// NewMarkdownConverter creates a converter.
func NewMarkdownConverter() *MarkdownConverter {
	return &MarkdownConverter{
		sanitizer: NewSanitizer(),
		converter: md.NewConverter("", true, nil),
	}
}

// ToMarkdown converts html to markdown. Plain text passes through unchanged.
func (c *MarkdownConverter) ToMarkdown(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}
	out, err := c.converter.ConvertString(c.sanitizer.Sanitize(html))
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}
	return strings.TrimSpace(out), nil
}
