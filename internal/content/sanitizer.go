package content

import (
	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips scripts, event handlers and javascript: URLs from chapter
// HTML while keeping formatting, tables and images.
//
// Safe for concurrent use.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer creates a sanitizer with the user-generated-content policy.
func NewSanitizer() *Sanitizer {
	policy := bluemonday.UGCPolicy()
	// Generated images are sometimes inlined as data URIs
	policy.AllowDataURIImages()
	return &Sanitizer{policy: policy}
}

// NewStrictSanitizer creates a sanitizer that removes every tag.
func NewStrictSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize returns html with unsafe markup removed.
func (s *Sanitizer) Sanitize(html string) string {
	return s.policy.Sanitize(html)
}
