package outline

import (
	"fmt"
	"strings"

	models "tenderplan/internal/domain/models/outline"
)

// MarkdownConverter turns chapter HTML into markdown.
type MarkdownConverter interface {
	ToMarkdown(html string) (string, error)
}

const maxHeadingLevel = 6

// ExportMarkdown renders the outline as one markdown document. Sections become
// headings by depth, their integrated content follows the heading and tasks
// are listed as a checklist.
func ExportMarkdown(o *models.Outline, conv MarkdownConverter) (string, error) {
	var b strings.Builder
	if o == nil {
		return "", nil
	}

	var walk func(list []*models.Section, depth int) error
	walk = func(list []*models.Section, depth int) error {
		for _, s := range list {
			level := depth + 1
			if level > maxHeadingLevel {
				level = maxHeadingLevel
			}
			fmt.Fprintf(&b, "%s %s\n\n", strings.Repeat("#", level), s.Title)

			if s.HasContent() {
				text, err := conv.ToMarkdown(*s.Content)
				if err != nil {
					return fmt.Errorf("section %s: %w", s.ID, err)
				}
				if text != "" {
					b.WriteString(text)
					b.WriteString("\n\n")
				}
			}

			if len(s.Tasks) > 0 {
				for _, t := range s.Tasks {
					mark := " "
					if t.Status == models.TaskStatusCompleted {
						mark = "x"
					}
					fmt.Fprintf(&b, "- [%s] %s\n", mark, t.RequirementText)
				}
				b.WriteString("\n")
			}

			if err := walk(s.Children, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(o.Chapters, 0); err != nil {
		return "", err
	}
	return strings.TrimRight(b.String(), "\n") + "\n", nil
}
