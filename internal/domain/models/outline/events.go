package outline

// ChangeOp is the row operation carried by a change notification.
type ChangeOp string

const (
	OpInsert ChangeOp = "INSERT"
	OpUpdate ChangeOp = "UPDATE"
	OpDelete ChangeOp = "DELETE"
)

// Change tables, without environment prefix.
const (
	TableSections       = "sections"
	TableTasks          = "tasks"
	TableProjectSources = "project_sources"
	TableSources        = "sources"
	TableTaskImages     = "task_images"
	TableTaskContents   = "task_contents"
)

// ChangeEvent is a row-level change notification from the store.
type ChangeEvent struct {
	Table     string   `json:"table"`
	Op        ChangeOp `json:"op"`
	ProjectID string   `json:"project_id"`
	RecordID  string   `json:"record_id"`
	SectionID string   `json:"section_id,omitempty"`
}

// IsGlobalSource reports whether the event concerns a source shared by every
// project. Such events carry no project_id.
func (e ChangeEvent) IsGlobalSource() bool {
	return e.Table == TableSources && e.ProjectID == ""
}

// IsTaskInsert reports whether the event announces a new task.
func (e ChangeEvent) IsTaskInsert() bool {
	return e.Table == TableTasks && e.Op == OpInsert
}

// ClientEvent is pushed to browser subscribers of a project.
type ClientEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Client event types
const (
	EventOutlineReloaded = "outline_reloaded"
	EventTaskGenerated   = "task_generated"
	EventProgress        = "progress"
	EventNotification    = "notification"
	EventStreaming       = "streaming"
)

// NotificationLevel is the severity of a user-facing notice.
type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

// Notification is a toast for the user.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message,omitempty"`
}
