package content

import (
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	s := NewSanitizer()

	tests := []struct {
		name    string
		input   string
		keep    string
		dropped string
	}{
		{"script removed", `<p>正文</p><script>alert(1)</script>`, "<p>正文</p>", "<script>"},
		{"event handler removed", `<img src="a.png" onerror="steal()">`, `src="a.png"`, "onerror"},
		{"javascript url removed", `<a href="javascript:alert(1)">x</a>`, "x", "javascript:"},
		{"table kept", `<table><tr><td>1</td></tr></table>`, "<td>1</td>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Sanitize(tt.input)
			if !strings.Contains(got, tt.keep) {
				t.Errorf("Sanitize() = %q, want it to contain %q", got, tt.keep)
			}
			if tt.dropped != "" && strings.Contains(got, tt.dropped) {
				t.Errorf("Sanitize() = %q still contains %q", got, tt.dropped)
			}
		})
	}
}

func TestStrictSanitizer(t *testing.T) {
	if got := NewStrictSanitizer().Sanitize("<b>加粗</b>"); got != "加粗" {
		t.Errorf("Sanitize() = %q, want plain text", got)
	}
}

func TestToMarkdown(t *testing.T) {
	c := NewMarkdownConverter()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"heading and emphasis", "<h2>技术方案</h2><p><strong>高可用</strong>设计</p>", []string{"## 技术方案", "**高可用**设计"}},
		{"list", "<ul><li>一</li><li>二</li></ul>", []string{"- 一", "- 二"}},
		{"plain text", "没有标签的内容", []string{"没有标签的内容"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.ToMarkdown(tt.input)
			if err != nil {
				t.Fatalf("ToMarkdown: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("ToMarkdown() = %q, want it to contain %q", got, want)
				}
			}
		})
	}

	if got, err := c.ToMarkdown("   "); err != nil || got != "" {
		t.Errorf("blank input = %q, %v", got, err)
	}
	got, err := c.ToMarkdown(`<p>ok</p><script>alert(1)</script>`)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "alert") {
		t.Errorf("script survived conversion: %q", got)
	}
}
