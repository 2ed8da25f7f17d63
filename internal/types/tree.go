package types

import (
	"fmt"
	"slices"
	"time"
)

// Tree is a full snapshot of one app's specification tree.
//
// EpicIDs is the authoritative root order; the per-parent id slices hold the
// authoritative sibling order below that.
type Tree struct {
	App         App                   `json:"app" yaml:"app"`
	Epics       map[string]*Epic      `json:"epics" yaml:"epics"`
	Features    map[string]*Feature   `json:"features" yaml:"features"`
	UserStories map[string]*UserStory `json:"userStories" yaml:"userStories"`
	Tasks       map[string]*Task      `json:"tasks" yaml:"tasks"`
}

// NewTree returns an empty tree for the given app.
func NewTree(app App) *Tree {
	t := &Tree{
		App:         app,
		Epics:       make(map[string]*Epic),
		Features:    make(map[string]*Feature),
		UserStories: make(map[string]*UserStory),
		Tasks:       make(map[string]*Task),
	}
	if t.App.EpicIDs == nil {
		t.App.EpicIDs = []string{}
	}
	return t
}

// ensureMaps fills nil maps, e.g. after decoding a partial document.
func (t *Tree) ensureMaps() {
	if t.Epics == nil {
		t.Epics = make(map[string]*Epic)
	}
	if t.Features == nil {
		t.Features = make(map[string]*Feature)
	}
	if t.UserStories == nil {
		t.UserStories = make(map[string]*UserStory)
	}
	if t.Tasks == nil {
		t.Tasks = make(map[string]*Task)
	}
}

// Normalize fills nil maps and slices so callers can mutate freely.
func (t *Tree) Normalize() {
	t.ensureMaps()
	if t.App.EpicIDs == nil {
		t.App.EpicIDs = []string{}
	}
}

// Clone returns a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		App:         t.App,
		Epics:       make(map[string]*Epic, len(t.Epics)),
		Features:    make(map[string]*Feature, len(t.Features)),
		UserStories: make(map[string]*UserStory, len(t.UserStories)),
		Tasks:       make(map[string]*Task, len(t.Tasks)),
	}
	c.App.EpicIDs = slices.Clone(t.App.EpicIDs)
	if c.App.EpicIDs == nil {
		c.App.EpicIDs = []string{}
	}
	for id, e := range t.Epics {
		cp := *e
		cp.FeatureIDs = slices.Clone(e.FeatureIDs)
		c.Epics[id] = &cp
	}
	for id, f := range t.Features {
		cp := *f
		cp.UserStoryIDs = slices.Clone(f.UserStoryIDs)
		c.Features[id] = &cp
	}
	for id, s := range t.UserStories {
		cp := *s
		cp.TaskIDs = slices.Clone(s.TaskIDs)
		c.UserStories[id] = &cp
	}
	for id, k := range t.Tasks {
		cp := *k
		c.Tasks[id] = &cp
	}
	return c
}

// Lookup returns a level-agnostic view of the entity, or ErrNotFound.
func (t *Tree) Lookup(itemType ItemType, id string) (Item, error) {
	switch itemType {
	case TypeEpic:
		if e, ok := t.Epics[id]; ok {
			return Item{Type: itemType, ID: e.ID, DocumentID: e.DocumentID, Title: e.Title, Position: e.Position, UpdatedAt: e.UpdatedAt}, nil
		}
	case TypeFeature:
		if f, ok := t.Features[id]; ok {
			return Item{Type: itemType, ID: f.ID, DocumentID: f.DocumentID, Title: f.Title, ParentID: f.ParentEpicID, Position: f.Position, UpdatedAt: f.UpdatedAt}, nil
		}
	case TypeUserStory:
		if s, ok := t.UserStories[id]; ok {
			return Item{Type: itemType, ID: s.ID, DocumentID: s.DocumentID, Title: s.Title, ParentID: s.ParentFeatureID, Position: s.Position, UpdatedAt: s.UpdatedAt}, nil
		}
	case TypeTask:
		if k, ok := t.Tasks[id]; ok {
			return Item{Type: itemType, ID: k.ID, DocumentID: k.DocumentID, Title: k.Title, ParentID: k.ParentUserStoryID, Position: k.Position, UpdatedAt: k.UpdatedAt}, nil
		}
	default:
		return Item{}, fmt.Errorf("%w: %q", ErrInvalidItemType, itemType)
	}
	return Item{}, fmt.Errorf("%s %s: %w", itemType, id, ErrNotFound)
}

// Exists reports whether the entity is present.
func (t *Tree) Exists(itemType ItemType, id string) bool {
	_, err := t.Lookup(itemType, id)
	return err == nil
}

// DocumentIDOf returns the durable id of the entity, falling back to the local
// id when none is recorded (or the entity is unknown).
func (t *Tree) DocumentIDOf(itemType ItemType, id string) string {
	item, err := t.Lookup(itemType, id)
	if err != nil || item.DocumentID == "" {
		return id
	}
	return item.DocumentID
}

// ChildIDs returns the ordered child list that holds items of childType under
// parentID. For epics parentID is ignored and the root order is returned.
func (t *Tree) ChildIDs(childType ItemType, parentID string) ([]string, error) {
	switch childType {
	case TypeEpic:
		return t.App.EpicIDs, nil
	case TypeFeature:
		if e, ok := t.Epics[parentID]; ok {
			return e.FeatureIDs, nil
		}
		return nil, fmt.Errorf("epic %s: %w", parentID, ErrNotFound)
	case TypeUserStory:
		if f, ok := t.Features[parentID]; ok {
			return f.UserStoryIDs, nil
		}
		return nil, fmt.Errorf("feature %s: %w", parentID, ErrNotFound)
	case TypeTask:
		if s, ok := t.UserStories[parentID]; ok {
			return s.TaskIDs, nil
		}
		return nil, fmt.Errorf("user story %s: %w", parentID, ErrNotFound)
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidItemType, childType)
}

// SetChildIDs replaces the ordered child list for childType under parentID.
func (t *Tree) SetChildIDs(childType ItemType, parentID string, ids []string) error {
	switch childType {
	case TypeEpic:
		t.App.EpicIDs = ids
		return nil
	case TypeFeature:
		if e, ok := t.Epics[parentID]; ok {
			e.FeatureIDs = ids
			return nil
		}
		return fmt.Errorf("epic %s: %w", parentID, ErrNotFound)
	case TypeUserStory:
		if f, ok := t.Features[parentID]; ok {
			f.UserStoryIDs = ids
			return nil
		}
		return fmt.Errorf("feature %s: %w", parentID, ErrNotFound)
	case TypeTask:
		if s, ok := t.UserStories[parentID]; ok {
			s.TaskIDs = ids
			return nil
		}
		return fmt.Errorf("user story %s: %w", parentID, ErrNotFound)
	}
	return fmt.Errorf("%w: %q", ErrInvalidItemType, childType)
}

// SetParent points the entity's parent-reference field at parentID.
func (t *Tree) SetParent(itemType ItemType, id, parentID string) error {
	switch itemType {
	case TypeFeature:
		if f, ok := t.Features[id]; ok {
			f.ParentEpicID = parentID
			return nil
		}
	case TypeUserStory:
		if s, ok := t.UserStories[id]; ok {
			s.ParentFeatureID = parentID
			return nil
		}
	case TypeTask:
		if k, ok := t.Tasks[id]; ok {
			k.ParentUserStoryID = parentID
			return nil
		}
	case TypeEpic:
		return fmt.Errorf("epics have no parent: %w", ErrInvalidItemType)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidItemType, itemType)
	}
	return fmt.Errorf("%s %s: %w", itemType, id, ErrNotFound)
}

// SetPosition updates the mirrored ordinal of one entity.
func (t *Tree) SetPosition(itemType ItemType, id string, pos int, now time.Time) {
	switch itemType {
	case TypeEpic:
		if e, ok := t.Epics[id]; ok {
			e.Position, e.UpdatedAt = pos, now
		}
	case TypeFeature:
		if f, ok := t.Features[id]; ok {
			f.Position, f.UpdatedAt = pos, now
		}
	case TypeUserStory:
		if s, ok := t.UserStories[id]; ok {
			s.Position, s.UpdatedAt = pos, now
		}
	case TypeTask:
		if k, ok := t.Tasks[id]; ok {
			k.Position, k.UpdatedAt = pos, now
		}
	}
}

// Renumber rewrites Position for every id in the given sibling list so it
// mirrors the slice order. Only entities whose position changed get a new
// UpdatedAt.
func (t *Tree) Renumber(itemType ItemType, ids []string, now time.Time) {
	for i, id := range ids {
		item, err := t.Lookup(itemType, id)
		if err != nil || item.Position == i {
			continue
		}
		t.SetPosition(itemType, id, i, now)
	}
}

// Count returns the number of entities at one level.
func (t *Tree) Count(itemType ItemType) int {
	switch itemType {
	case TypeEpic:
		return len(t.Epics)
	case TypeFeature:
		return len(t.Features)
	case TypeUserStory:
		return len(t.UserStories)
	case TypeTask:
		return len(t.Tasks)
	}
	return 0
}

// Walk visits every entity in tree order (depth-first, siblings in list
// order). depth is 0 for epics. Returning false from fn stops the walk.
func (t *Tree) Walk(fn func(item Item, depth int) bool) {
	var visit func(itemType ItemType, ids []string, depth int) bool
	visit = func(itemType ItemType, ids []string, depth int) bool {
		for _, id := range ids {
			item, err := t.Lookup(itemType, id)
			if err != nil {
				continue
			}
			if !fn(item, depth) {
				return false
			}
			childType, ok := itemType.ChildType()
			if !ok {
				continue
			}
			children, err := t.ChildIDs(childType, id)
			if err != nil {
				continue
			}
			if !visit(childType, children, depth+1) {
				return false
			}
		}
		return true
	}
	visit(TypeEpic, t.App.EpicIDs, 0)
}

// Validate checks that parent lists and parent-reference fields agree and that
// no child is listed twice.
func (t *Tree) Validate() error {
	seen := make(map[string]bool)
	for _, id := range t.App.EpicIDs {
		if _, ok := t.Epics[id]; !ok {
			return fmt.Errorf("%w: root lists unknown epic %s", ErrInconsistent, id)
		}
		if seen["epic/"+id] {
			return fmt.Errorf("%w: epic %s listed twice", ErrInconsistent, id)
		}
		seen["epic/"+id] = true
	}
	for id := range t.Epics {
		if !seen["epic/"+id] {
			return fmt.Errorf("%w: epic %s missing from root order", ErrInconsistent, id)
		}
	}

	for _, e := range t.Epics {
		for _, fid := range e.FeatureIDs {
			f, ok := t.Features[fid]
			if !ok {
				return fmt.Errorf("%w: epic %s lists unknown feature %s", ErrInconsistent, e.ID, fid)
			}
			if f.ParentEpicID != e.ID {
				return fmt.Errorf("%w: feature %s listed under epic %s but points at %q", ErrInconsistent, fid, e.ID, f.ParentEpicID)
			}
			if seen["feature/"+fid] {
				return fmt.Errorf("%w: feature %s listed twice", ErrInconsistent, fid)
			}
			seen["feature/"+fid] = true
		}
	}
	for id, f := range t.Features {
		if !seen["feature/"+id] {
			return fmt.Errorf("%w: feature %s not listed by parent epic %q", ErrInconsistent, id, f.ParentEpicID)
		}
		for _, sid := range f.UserStoryIDs {
			s, ok := t.UserStories[sid]
			if !ok {
				return fmt.Errorf("%w: feature %s lists unknown user story %s", ErrInconsistent, f.ID, sid)
			}
			if s.ParentFeatureID != f.ID {
				return fmt.Errorf("%w: user story %s listed under feature %s but points at %q", ErrInconsistent, sid, f.ID, s.ParentFeatureID)
			}
			if seen["story/"+sid] {
				return fmt.Errorf("%w: user story %s listed twice", ErrInconsistent, sid)
			}
			seen["story/"+sid] = true
		}
	}
	for id, s := range t.UserStories {
		if !seen["story/"+id] {
			return fmt.Errorf("%w: user story %s not listed by parent feature %q", ErrInconsistent, id, s.ParentFeatureID)
		}
		for _, tid := range s.TaskIDs {
			k, ok := t.Tasks[tid]
			if !ok {
				return fmt.Errorf("%w: user story %s lists unknown task %s", ErrInconsistent, s.ID, tid)
			}
			if k.ParentUserStoryID != s.ID {
				return fmt.Errorf("%w: task %s listed under user story %s but points at %q", ErrInconsistent, tid, s.ID, k.ParentUserStoryID)
			}
			if seen["task/"+tid] {
				return fmt.Errorf("%w: task %s listed twice", ErrInconsistent, tid)
			}
			seen["task/"+tid] = true
		}
	}
	for id, k := range t.Tasks {
		if !seen["task/"+id] {
			return fmt.Errorf("%w: task %s not listed by parent user story %q", ErrInconsistent, id, k.ParentUserStoryID)
		}
	}
	return nil
}
