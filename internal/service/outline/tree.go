package outline

import (
	"sort"

	models "tenderplan/internal/domain/models/outline"
)

// Tree operations are pure: they never modify their input and return the
// original *Outline unchanged when the addressed node does not exist.

// FindNode returns the section with the given ID, or nil.
func FindNode(o *models.Outline, id string) *models.Section {
	if o == nil || id == "" {
		return nil
	}
	return findSection(o.Chapters, id)
}

func findSection(list []*models.Section, id string) *models.Section {
	for _, s := range list {
		if s.ID == id {
			return s
		}
		if found := findSection(s.Children, id); found != nil {
			return found
		}
	}
	return nil
}

// FindNodeWithParent locates a section together with its parent and sibling list.
func FindNodeWithParent(o *models.Outline, id string) (models.NodeLocation, bool) {
	if o == nil || id == "" {
		return models.NodeLocation{}, false
	}
	return locate(o.Chapters, nil, id)
}

func locate(list []*models.Section, parent *models.Section, id string) (models.NodeLocation, bool) {
	for i, s := range list {
		if s.ID == id {
			return models.NodeLocation{Node: s, Parent: parent, Siblings: list, Index: i}, true
		}
		if loc, ok := locate(s.Children, s, id); ok {
			return loc, true
		}
	}
	return models.NodeLocation{}, false
}

// FindTask returns a task and the section holding it.
func FindTask(o *models.Outline, taskID string) (*models.Task, *models.Section) {
	if o == nil || taskID == "" {
		return nil, nil
	}
	return findTask(o.Chapters, taskID)
}

func findTask(list []*models.Section, taskID string) (*models.Task, *models.Section) {
	for _, s := range list {
		for _, t := range s.Tasks {
			if t.ID == taskID {
				return t, s
			}
		}
		if t, owner := findTask(s.Children, taskID); t != nil {
			return t, owner
		}
	}
	return nil, nil
}

// rewrite replaces the first section matching match with fn(section), copying
// every ancestor on the way. fn may return nil to remove the section.
func rewrite(list []*models.Section, match func(*models.Section) bool, fn func(*models.Section) *models.Section) ([]*models.Section, bool) {
	for i, s := range list {
		var replacement *models.Section
		if match(s) {
			replacement = fn(s)
		} else {
			children, ok := rewrite(s.Children, match, fn)
			if !ok {
				continue
			}
			cp := *s
			cp.Children = children
			replacement = &cp
		}

		out := make([]*models.Section, 0, len(list))
		out = append(out, list[:i]...)
		if replacement != nil {
			out = append(out, replacement)
		}
		out = append(out, list[i+1:]...)
		return out, true
	}
	return list, false
}

func withChapters(o *models.Outline, chapters []*models.Section) *models.Outline {
	cp := *o
	cp.Chapters = chapters
	return &cp
}

func byID(id string) func(*models.Section) bool {
	return func(s *models.Section) bool { return s.ID == id }
}

func holdsTask(taskID string) func(*models.Section) bool {
	return func(s *models.Section) bool {
		for _, t := range s.Tasks {
			if t.ID == taskID {
				return true
			}
		}
		return false
	}
}

// UpdateNode returns a new outline with the section's fields shallow-merged
// with patch. Unknown IDs and empty patches return o itself.
func UpdateNode(o *models.Outline, id string, patch models.SectionPatch) *models.Outline {
	if o == nil || patch.IsEmpty() {
		return o
	}
	chapters, ok := rewrite(o.Chapters, byID(id), patch.Apply)
	if !ok {
		return o
	}
	return withChapters(o, chapters)
}

// UpdateTask returns a new outline with the task's fields merged with patch.
// SectionID in the patch is applied to the task value only; use ReplaceTasks
// to move a task between sections.
func UpdateTask(o *models.Outline, taskID string, patch models.TaskPatch) *models.Outline {
	if o == nil || patch.IsEmpty() {
		return o
	}
	return rewriteTask(o, taskID, patch.Apply)
}

// RemoveTask returns a new outline without the task.
func RemoveTask(o *models.Outline, taskID string) *models.Outline {
	if o == nil {
		return o
	}
	chapters, ok := rewrite(o.Chapters, holdsTask(taskID), func(s *models.Section) *models.Section {
		cp := *s
		cp.Tasks = make([]*models.Task, 0, len(s.Tasks))
		for _, t := range s.Tasks {
			if t.ID != taskID {
				cp.Tasks = append(cp.Tasks, t)
			}
		}
		return &cp
	})
	if !ok {
		return o
	}
	return withChapters(o, chapters)
}

// RemoveSection returns a new outline without the section and its subtree.
func RemoveSection(o *models.Outline, id string) *models.Outline {
	if o == nil {
		return o
	}
	chapters, ok := rewrite(o.Chapters, byID(id), func(*models.Section) *models.Section { return nil })
	if !ok {
		return o
	}
	return withChapters(o, chapters)
}

// insertOrdered places item after every element whose order is <= its own.
func insertOrdered[T Ordered](list []T, item T) []T {
	idx := sort.Search(len(list), func(i int) bool { return list[i].Order() > item.Order() })
	out := make([]T, 0, len(list)+1)
	out = append(out, list[:idx]...)
	out = append(out, item)
	return append(out, list[idx:]...)
}

// InsertSection returns a new outline containing s under its parent.
// A section whose parent is unknown is not inserted.
func InsertSection(o *models.Outline, s *models.Section) *models.Outline {
	if o == nil || s == nil || FindNode(o, s.ID) != nil {
		return o
	}
	node := *s
	if node.Children == nil {
		node.Children = []*models.Section{}
	}
	if node.Tasks == nil {
		node.Tasks = []*models.Task{}
	}
	if node.ParentID == nil {
		return withChapters(o, insertOrdered(o.Chapters, &node))
	}
	chapters, ok := rewrite(o.Chapters, byID(*node.ParentID), func(p *models.Section) *models.Section {
		cp := *p
		cp.Children = insertOrdered(p.Children, &node)
		return &cp
	})
	if !ok {
		return o
	}
	return withChapters(o, chapters)
}

// InsertTask returns a new outline containing t in its section.
func InsertTask(o *models.Outline, t *models.Task) *models.Outline {
	if o == nil || t == nil {
		return o
	}
	if existing, _ := FindTask(o, t.ID); existing != nil {
		return o
	}
	task := *t
	if task.Images == nil {
		task.Images = []models.TaskImage{}
	}
	chapters, ok := rewrite(o.Chapters, byID(task.SectionID), func(s *models.Section) *models.Section {
		cp := *s
		cp.Tasks = insertOrdered(s.Tasks, &task)
		return &cp
	})
	if !ok {
		return o
	}
	return withChapters(o, chapters)
}

// ReplaceChildren swaps the child list of parentID (chapters when nil).
func ReplaceChildren(o *models.Outline, parentID *string, children []*models.Section) *models.Outline {
	if o == nil {
		return o
	}
	if parentID == nil {
		return withChapters(o, children)
	}
	chapters, ok := rewrite(o.Chapters, byID(*parentID), func(p *models.Section) *models.Section {
		cp := *p
		cp.Children = children
		return &cp
	})
	if !ok {
		return o
	}
	return withChapters(o, chapters)
}

// ReplaceTasks swaps the task lists of the given sections. Unknown section
// IDs are skipped.
func ReplaceTasks(o *models.Outline, tasks map[string][]*models.Task) *models.Outline {
	out := o
	for sectionID, list := range tasks {
		if out == nil {
			return out
		}
		chapters, ok := rewrite(out.Chapters, byID(sectionID), func(s *models.Section) *models.Section {
			cp := *s
			cp.Tasks = list
			return &cp
		})
		if ok {
			out = withChapters(out, chapters)
		}
	}
	return out
}

// Flatten lists visible sections depth-first. A section's children are
// visited only when its ID is in expanded.
func Flatten(o *models.Outline, expanded map[string]bool) []models.FlatRow {
	rows := []models.FlatRow{}
	if o == nil {
		return rows
	}
	var walk func(list []*models.Section, depth int)
	walk = func(list []*models.Section, depth int) {
		for _, s := range list {
			rows = append(rows, models.FlatRow{Section: s, Depth: depth})
			if expanded[s.ID] {
				walk(s.Children, depth+1)
			}
		}
	}
	walk(o.Chapters, 0)
	return rows
}

// AllTitles lists every section title in pre-order, ignoring expansion.
func AllTitles(o *models.Outline) []string {
	titles := []string{}
	if o == nil {
		return titles
	}
	var walk func(list []*models.Section)
	walk = func(list []*models.Section) {
		for _, s := range list {
			titles = append(titles, s.Title)
			walk(s.Children)
		}
	}
	walk(o.Chapters)
	return titles
}

// CountSections counts every section in the outline.
func CountSections(o *models.Outline) int {
	if o == nil {
		return 0
	}
	n := 0
	var walk func(list []*models.Section)
	walk = func(list []*models.Section) {
		for _, s := range list {
			n++
			walk(s.Children)
		}
	}
	walk(o.Chapters)
	return n
}

// BuildInput is the flat row set fetched by a load.
type BuildInput struct {
	ProjectID        string
	Sections         []*models.Section
	Tasks            []*models.Task
	Images           []models.TaskImage
	Contents         []models.TaskContent
	Sources          []models.Source
	DefaultSourceIDs []string
}

// BuildStats reports rows that could not be attached.
type BuildStats struct {
	Sections       int
	Tasks          int
	OrphanSections int
	OrphanTasks    int
}

// Build reconstructs the outline from flat rows. Siblings are ordered by
// order_index with fetch order breaking ties. Sections whose parent chain
// does not reach a chapter, and tasks whose section is not in the tree, are
// dropped.
func Build(in BuildInput) (*models.Outline, BuildStats) {
	sections := make([]*models.Section, len(in.Sections))
	for i, s := range in.Sections {
		cp := *s
		cp.Children = []*models.Section{}
		cp.Tasks = []*models.Task{}
		sections[i] = &cp
	}
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].OrderIndex < sections[j].OrderIndex })

	// First pass: index sections
	sectionMap := make(map[string]*models.Section, len(sections))
	for _, s := range sections {
		if _, dup := sectionMap[s.ID]; !dup {
			sectionMap[s.ID] = s
		}
	}

	// Second pass: link children to parents
	roots := []*models.Section{}
	for _, s := range sections {
		if sectionMap[s.ID] != s {
			continue
		}
		if s.ParentID == nil {
			roots = append(roots, s)
			continue
		}
		if parent, ok := sectionMap[*s.ParentID]; ok && parent != s {
			parent.Children = append(parent.Children, s)
		}
	}

	// Only sections reachable from a chapter survive
	reachable := make(map[string]bool, len(sections))
	var mark func(list []*models.Section)
	mark = func(list []*models.Section) {
		for _, s := range list {
			if reachable[s.ID] {
				continue
			}
			reachable[s.ID] = true
			mark(s.Children)
		}
	}
	mark(roots)

	images := make(map[string][]models.TaskImage)
	for _, img := range in.Images {
		images[img.TaskID] = append(images[img.TaskID], img)
	}
	contents := make(map[string]models.TaskContent)
	for _, c := range in.Contents {
		if cur, ok := contents[c.TaskID]; !ok || c.Version > cur.Version {
			contents[c.TaskID] = c
		}
	}

	// Third pass: attach tasks
	tasks := make([]*models.Task, len(in.Tasks))
	copy(tasks, in.Tasks)
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].OrderIndex < tasks[j].OrderIndex })

	stats := BuildStats{}
	for _, t := range tasks {
		owner, ok := sectionMap[t.SectionID]
		if !ok || !reachable[owner.ID] {
			stats.OrphanTasks++
			continue
		}
		cp := *t
		cp.Images = images[t.ID]
		if cp.Images == nil {
			cp.Images = []models.TaskImage{}
		} else {
			sort.SliceStable(cp.Images, func(i, j int) bool { return cp.Images[i].CreatedAt.Before(cp.Images[j].CreatedAt) })
		}
		if c, ok := contents[t.ID]; ok {
			cp.Content = &c
		}
		owner.Tasks = append(owner.Tasks, &cp)
		stats.Tasks++
	}

	stats.Sections = len(reachable)
	stats.OrphanSections = len(sections) - len(reachable)

	out := models.Empty(in.ProjectID)
	out.Chapters = roots
	if in.Sources != nil {
		out.Sources = in.Sources
	}
	if in.DefaultSourceIDs != nil {
		out.DefaultSourceIDs = in.DefaultSourceIDs
	}
	return out, stats
}

func rewriteTask(o *models.Outline, taskID string, fn func(*models.Task) *models.Task) *models.Outline {
	if o == nil {
		return o
	}
	chapters, ok := rewrite(o.Chapters, holdsTask(taskID), func(s *models.Section) *models.Section {
		cp := *s
		cp.Tasks = make([]*models.Task, len(s.Tasks))
		for i, t := range s.Tasks {
			if t.ID == taskID {
				cp.Tasks[i] = fn(t)
			} else {
				cp.Tasks[i] = t
			}
		}
		return &cp
	})
	if !ok {
		return o
	}
	return withChapters(o, chapters)
}

// SetTaskContent replaces the latest draft attached to a task.
func SetTaskContent(o *models.Outline, taskID string, content *models.TaskContent) *models.Outline {
	return rewriteTask(o, taskID, func(t *models.Task) *models.Task {
		cp := *t
		cp.Content = content
		return &cp
	})
}

// SetTaskImages replaces the images attached to a task.
func SetTaskImages(o *models.Outline, taskID string, images []models.TaskImage) *models.Outline {
	return rewriteTask(o, taskID, func(t *models.Task) *models.Task {
		cp := *t
		cp.Images = images
		return &cp
	})
}
