package outline

// GenerationKind names a remote generation action.
type GenerationKind string

const (
	// KindStructure generates the whole chapter outline of a project.
	KindStructure GenerationKind = "structure"
	// KindSubsection generates sub-chapters of one section.
	KindSubsection GenerationKind = "subsection"
	// KindTask generates the tasks of one section.
	KindTask GenerationKind = "task"
	// KindContent generates a draft for one task.
	KindContent GenerationKind = "content"
	// KindIntegration merges the task drafts of a chapter into its content.
	KindIntegration GenerationKind = "integration"
	// KindImage generates images for one task.
	KindImage GenerationKind = "image"
)

// AllKinds lists every generation kind.
var AllKinds = []GenerationKind{KindStructure, KindSubsection, KindTask, KindContent, KindIntegration, KindImage}

// Valid reports whether k is a known kind.
func (k GenerationKind) Valid() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// TargetsTask reports whether the kind operates on a task rather than a section.
func (k GenerationKind) TargetsTask() bool {
	return k == KindContent || k == KindImage
}

// Resolution is the user's answer to a generation conflict.
type Resolution string

const (
	ResolutionNone    Resolution = ""
	ResolutionAppend  Resolution = "append"
	ResolutionReplace Resolution = "replace"
	ResolutionCancel  Resolution = "cancel"
)

// WebhookRequest is the JSON body posted to a generation endpoint.
type WebhookRequest struct {
	ProjectID       string   `json:"projectId"`
	SectionID       string   `json:"sectionId,omitempty"`
	SectionTitle    string   `json:"sectionTitle,omitempty"`
	TaskID          string   `json:"taskId,omitempty"`
	SourceIDs       []string `json:"sourceIds"`
	UserDescription string   `json:"userDescription,omitempty"`
	AllSections     []string `json:"allSections,omitempty"`
	Action          string   `json:"action,omitempty"`
}

// WebhookResponse is the JSON body returned by a generation endpoint.
type WebhookResponse struct {
	Message           string `json:"message,omitempty"`
	TotalModules      int    `json:"total_modules,omitempty"`
	Result            any    `json:"result,omitempty"`
	IntegratedContent string `json:"integratedContent,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Progress counts task insertions against the module total announced by
// the generation backend.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}
