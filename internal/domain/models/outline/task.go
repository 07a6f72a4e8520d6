package outline

import "time"

// TaskStatus is a free-form workflow tag. The constants are the values the
// core itself writes or renders specially.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Task is a unit of writing work attached to exactly one section.
type Task struct {
	ID               string           `json:"id" db:"id"`
	ProjectID        string           `json:"project_id" db:"project_id"`
	SectionID        string           `json:"section_id" db:"section_id"`
	RequirementText  string           `json:"requirement_text" db:"requirement_text"`
	Status           TaskStatus       `json:"status" db:"status"`
	OrderIndex       float64          `json:"order_index" db:"order_index"`
	WorkflowType     string           `json:"workflow_type,omitempty" db:"workflow_type"`
	GenerationMethod GenerationMethod `json:"generation_method" db:"generation_method"`
	IsModified       bool             `json:"is_modified" db:"is_modified"`
	Citations        []Citation       `json:"citations" db:"citations"`
	CitationSourceID *string          `json:"citation_source_id,omitempty" db:"citation_source_id"`
	CitationPage     *int             `json:"citation_page,omitempty" db:"citation_page"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`

	Images  []TaskImage  `json:"images"`
	Content *TaskContent `json:"content,omitempty"` // highest version only
}

// Order returns the sibling sort key.
func (t *Task) Order() float64 { return t.OrderIndex }

// Key returns the task ID.
func (t *Task) Key() string { return t.ID }

// DisplayTitle returns the requirement text.
func (t *Task) DisplayTitle() string { return t.RequirementText }

// TaskImage is an image attached to a task, in creation order.
type TaskImage struct {
	ID        string    `json:"id" db:"id"`
	TaskID    string    `json:"task_id" db:"task_id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	ImageType string    `json:"image_type" db:"image_type"`
	Prompt    *string   `json:"prompt,omitempty" db:"prompt"`
	ImageURL  string    `json:"image_url" db:"image_url"`
	Caption   *string   `json:"caption,omitempty" db:"caption"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TaskContent is one generated draft of a task. Only the highest version
// per task is attached to the tree.
type TaskContent struct {
	TaskID    string    `json:"task_id" db:"task_id"`
	Version   int       `json:"version" db:"version"`
	Content   string    `json:"content" db:"content"`
	WordCount int       `json:"word_count" db:"word_count"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TaskPatch is a shallow partial update. Nil fields are left untouched.
type TaskPatch struct {
	SectionID        *string     `json:"section_id,omitempty"`
	RequirementText  *string     `json:"requirement_text,omitempty"`
	Status           *TaskStatus `json:"status,omitempty"`
	OrderIndex       *float64    `json:"order_index,omitempty"`
	WorkflowType     *string     `json:"workflow_type,omitempty"`
	IsModified       *bool       `json:"is_modified,omitempty"`
	CitationSourceID *string     `json:"citation_source_id,omitempty"`
	CitationPage     *int        `json:"citation_page,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.SectionID == nil && p.RequirementText == nil && p.Status == nil &&
		p.OrderIndex == nil && p.WorkflowType == nil && p.IsModified == nil &&
		p.CitationSourceID == nil && p.CitationPage == nil
}

// Apply returns a copy of t with the patch merged in.
func (p TaskPatch) Apply(t *Task) *Task {
	out := *t
	if p.SectionID != nil {
		out.SectionID = *p.SectionID
	}
	if p.RequirementText != nil {
		out.RequirementText = *p.RequirementText
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.OrderIndex != nil {
		out.OrderIndex = *p.OrderIndex
	}
	if p.WorkflowType != nil {
		out.WorkflowType = *p.WorkflowType
	}
	if p.IsModified != nil {
		out.IsModified = *p.IsModified
	}
	if p.CitationSourceID != nil {
		id := *p.CitationSourceID
		out.CitationSourceID = &id
	}
	if p.CitationPage != nil {
		page := *p.CitationPage
		out.CitationPage = &page
	}
	return &out
}

// TaskMoveUpdate is one entry of a task move write. SectionID is nil when
// the task stays in its section.
type TaskMoveUpdate struct {
	ID         string  `json:"id"`
	SectionID  *string `json:"section_id,omitempty"`
	OrderIndex float64 `json:"order_index"`
}
