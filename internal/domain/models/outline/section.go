package outline

import "time"

// GenerationMethod records how a section or task came into existence.
type GenerationMethod string

const (
	GenerationMethodManual   GenerationMethod = "manual"
	GenerationMethodAIGen    GenerationMethod = "ai_gen"
	GenerationMethodTemplate GenerationMethod = "template"
)

// Citation points at a passage of a source document.
type Citation struct {
	SourceID string `json:"source_id"`
	Page     *int   `json:"page,omitempty"`
	Quote    string `json:"quote,omitempty"`
	Title    string `json:"title,omitempty"`
}

// Section is a chapter (ParentID == nil) or a nested sub-chapter.
// Children and Tasks are derived at load time and never persisted.
type Section struct {
	ID               string           `json:"id" db:"id"`
	ProjectID        string           `json:"project_id" db:"project_id"`
	ParentID         *string          `json:"parent_id" db:"parent_id"` // NULL = chapter
	Title            string           `json:"title" db:"title"`
	OrderIndex       float64          `json:"order_index" db:"order_index"`
	Content          *string          `json:"content,omitempty" db:"content"`
	GenerationMethod GenerationMethod `json:"generation_method" db:"generation_method"`
	IsModified       bool             `json:"is_modified" db:"is_modified"`
	LastIntegratedAt *time.Time       `json:"last_integrated_at,omitempty" db:"last_integrated_at"`
	Citations        []Citation       `json:"citations" db:"citations"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`

	Children []*Section `json:"children"`
	Tasks    []*Task    `json:"tasks"`
}

// Order returns the sibling sort key.
func (s *Section) Order() float64 { return s.OrderIndex }

// Key returns the section ID.
func (s *Section) Key() string { return s.ID }

// DisplayTitle returns the title shown in the outline.
func (s *Section) DisplayTitle() string { return s.Title }

// IsChapter reports whether the section sits at the top level.
func (s *Section) IsChapter() bool { return s.ParentID == nil }

// HasContent reports whether the section holds integrated chapter text.
func (s *Section) HasContent() bool { return s.Content != nil && *s.Content != "" }

// SectionPatch is a shallow partial update. Nil fields are left untouched.
type SectionPatch struct {
	Title            *string           `json:"title,omitempty"`
	OrderIndex       *float64          `json:"order_index,omitempty"`
	Content          *string           `json:"content,omitempty"`
	GenerationMethod *GenerationMethod `json:"generation_method,omitempty"`
	IsModified       *bool             `json:"is_modified,omitempty"`
	LastIntegratedAt *time.Time        `json:"last_integrated_at,omitempty"`
	Citations        []Citation        `json:"citations,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p SectionPatch) IsEmpty() bool {
	return p.Title == nil && p.OrderIndex == nil && p.Content == nil &&
		p.GenerationMethod == nil && p.IsModified == nil &&
		p.LastIntegratedAt == nil && p.Citations == nil
}

// Apply returns a copy of s with the patch merged in. Children and Tasks are
// shared with s.
func (p SectionPatch) Apply(s *Section) *Section {
	out := *s
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.OrderIndex != nil {
		out.OrderIndex = *p.OrderIndex
	}
	if p.Content != nil {
		c := *p.Content
		out.Content = &c
	}
	if p.GenerationMethod != nil {
		out.GenerationMethod = *p.GenerationMethod
	}
	if p.IsModified != nil {
		out.IsModified = *p.IsModified
	}
	if p.LastIntegratedAt != nil {
		t := *p.LastIntegratedAt
		out.LastIntegratedAt = &t
	}
	if p.Citations != nil {
		out.Citations = p.Citations
	}
	return &out
}

// SectionOrderUpdate is one entry of a reorder write.
type SectionOrderUpdate struct {
	ID         string  `json:"id"`
	OrderIndex float64 `json:"order_index"`
}
