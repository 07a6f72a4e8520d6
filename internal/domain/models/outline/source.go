package outline

import "time"

// SourceType categorises a reference document.
type SourceType string

const (
	SourceTypeTender   SourceType = "tender"
	SourceTypeInternal SourceType = "internal"
	SourceTypeExternal SourceType = "external"
)

// Source is a reference document. ProjectID == nil marks a global source
// visible to every project.
type Source struct {
	ID        string     `json:"id" db:"id"`
	ProjectID *string    `json:"project_id" db:"project_id"`
	Title     string     `json:"title" db:"title"`
	Type      SourceType `json:"type" db:"type"`
	OriginURL *string    `json:"origin_url,omitempty" db:"origin_url"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// IsGlobal reports whether the source is shared across projects.
func (s Source) IsGlobal() bool { return s.ProjectID == nil }

// Project owns an outline.
type Project struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
