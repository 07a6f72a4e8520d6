package outline

import "time"

// Outline is the in-memory tree of one project.
//
// A published Outline is never mutated. Tree operations return a new value
// that shares every untouched subtree with the old one.
type Outline struct {
	ProjectID        string     `json:"project_id"`
	Chapters         []*Section `json:"chapters"`
	Sources          []Source   `json:"sources"`
	DefaultSourceIDs []string   `json:"default_source_ids"` // linked via project_sources
	LoadedAt         time.Time  `json:"loaded_at"`
}

// Empty returns an outline with no chapters.
func Empty(projectID string) *Outline {
	return &Outline{ProjectID: projectID, Chapters: []*Section{}, Sources: []Source{}, DefaultSourceIDs: []string{}}
}

// FlatRow is one visible line of the rendered outline.
type FlatRow struct {
	Section *Section `json:"section"`
	Depth   int      `json:"depth"`
}

// NodeLocation describes where a section sits in the tree.
// Parent is nil for chapters.
type NodeLocation struct {
	Node     *Section
	Parent   *Section
	Siblings []*Section
	Index    int
}
