// Package tree implements the pure state transitions over a specification
// tree snapshot. Every action produces a new *types.Tree; the input snapshot
// is never mutated, so callers can hold on to old snapshots safely.
package tree

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spectree/spectree/internal/types"
)

// ErrIndexOutOfRange is returned when a reorder names a sibling index that does
// not exist in the list.
var ErrIndexOutOfRange = errors.New("index out of range")

// now is swapped in tests for deterministic timestamps.
var now = func() time.Time { return time.Now().UTC() }

// Action is a single state transition.
type Action interface {
	apply(t *types.Tree) error
	// Describe returns a short human-readable summary for logs.
	Describe() string
}

// Apply runs action against a copy of t and returns the copy.
func Apply(t *types.Tree, action Action) (*types.Tree, error) {
	if action == nil {
		return t, nil
	}
	next := t.Clone()
	if err := action.apply(next); err != nil {
		return nil, err
	}
	return next, nil
}

// Reorder moves one item within a single sibling list. When ItemID is set the
// source index is looked up in the list being changed and From is ignored.
type Reorder struct {
	ItemType types.ItemType
	ItemID   string
	ParentID string // ignored for epics
	From     int
	To       int
}

func (a Reorder) Describe() string {
	if a.ItemID != "" {
		return fmt.Sprintf("reorder %s %s under %q: -> %d", a.ItemType, a.ItemID, a.ParentID, a.To)
	}
	return fmt.Sprintf("reorder %s under %q: %d -> %d", a.ItemType, a.ParentID, a.From, a.To)
}

func (a Reorder) apply(t *types.Tree) error {
	ids, err := t.ChildIDs(a.ItemType, a.ParentID)
	if err != nil {
		return err
	}
	from := a.From
	if a.ItemID != "" {
		from = slices.Index(ids, a.ItemID)
		if from < 0 {
			return fmt.Errorf("%w: %s %s not listed under %q", types.ErrInconsistent, a.ItemType, a.ItemID, a.ParentID)
		}
	}
	if from < 0 || from >= len(ids) {
		return fmt.Errorf("%w: from %d (len %d)", ErrIndexOutOfRange, from, len(ids))
	}
	if a.To < 0 || a.To >= len(ids) {
		return fmt.Errorf("%w: to %d (len %d)", ErrIndexOutOfRange, a.To, len(ids))
	}
	if from == a.To {
		return nil
	}
	next := slices.Clone(ids)
	id := next[from]
	next = slices.Delete(next, from, from+1)
	next = slices.Insert(next, a.To, id)
	if err := t.SetChildIDs(a.ItemType, a.ParentID, next); err != nil {
		return err
	}
	t.Renumber(a.ItemType, next, now())
	return nil
}

// Move reparents one item. ToIndex is clamped to the destination list length,
// so a large value appends. The item always leaves the parent it currently
// has; a non-empty FromParentID that disagrees with it is an error.
type Move struct {
	ItemType     types.ItemType
	ItemID       string
	FromParentID string
	ToParentID   string
	ToIndex      int
}

func (a Move) Describe() string {
	return fmt.Sprintf("move %s %s: %q -> %q at %d", a.ItemType, a.ItemID, a.FromParentID, a.ToParentID, a.ToIndex)
}

func (a Move) apply(t *types.Tree) error {
	if a.ItemType == types.TypeEpic {
		return fmt.Errorf("epics cannot be reparented: %w", types.ErrInvalidItemType)
	}
	item, err := t.Lookup(a.ItemType, a.ItemID)
	if err != nil {
		return err
	}
	from := item.ParentID
	if a.FromParentID != "" && a.FromParentID != from {
		return fmt.Errorf("%w: %s %s is under %q, not %q", types.ErrInconsistent, a.ItemType, a.ItemID, from, a.FromParentID)
	}

	src, err := t.ChildIDs(a.ItemType, from)
	if err != nil {
		return err
	}
	dst, err := t.ChildIDs(a.ItemType, a.ToParentID)
	if err != nil {
		return err
	}

	src = slices.DeleteFunc(slices.Clone(src), func(id string) bool { return id == a.ItemID })
	if from == a.ToParentID {
		dst = src
	} else {
		dst = slices.DeleteFunc(slices.Clone(dst), func(id string) bool { return id == a.ItemID })
	}
	idx := min(max(a.ToIndex, 0), len(dst))
	dst = slices.Insert(dst, idx, a.ItemID)

	ts := now()
	if from != a.ToParentID {
		if err := t.SetChildIDs(a.ItemType, from, src); err != nil {
			return err
		}
		t.Renumber(a.ItemType, src, ts)
	}
	if err := t.SetChildIDs(a.ItemType, a.ToParentID, dst); err != nil {
		return err
	}
	if err := t.SetParent(a.ItemType, a.ItemID, a.ToParentID); err != nil {
		return err
	}
	t.Renumber(a.ItemType, dst, ts)
	t.SetPosition(a.ItemType, a.ItemID, idx, ts)
	return nil
}

// Add inserts a new entity at the end of its parent's list. Exactly one of the
// entity fields must be set; its parent field names the parent.
type Add struct {
	Epic      *types.Epic
	Feature   *types.Feature
	UserStory *types.UserStory
	Task      *types.Task
}

func (a Add) Describe() string {
	switch {
	case a.Epic != nil:
		return "add epic " + a.Epic.Title
	case a.Feature != nil:
		return "add feature " + a.Feature.Title
	case a.UserStory != nil:
		return "add user story " + a.UserStory.Title
	case a.Task != nil:
		return "add task " + a.Task.Title
	}
	return "add (empty)"
}

func (a Add) apply(t *types.Tree) error {
	switch {
	case a.Epic != nil:
		e := *a.Epic
		if e.ID == "" {
			e.ID = types.NewID()
		}
		if e.FeatureIDs == nil {
			e.FeatureIDs = []string{}
		}
		if _, dup := t.Epics[e.ID]; dup {
			return fmt.Errorf("epic %s already exists", e.ID)
		}
		e.Position = len(t.App.EpicIDs)
		t.Epics[e.ID] = &e
		t.App.EpicIDs = append(t.App.EpicIDs, e.ID)
	case a.Feature != nil:
		f := *a.Feature
		if f.ID == "" {
			f.ID = types.NewID()
		}
		if f.UserStoryIDs == nil {
			f.UserStoryIDs = []string{}
		}
		parent, ok := t.Epics[f.ParentEpicID]
		if !ok {
			return fmt.Errorf("epic %s: %w", f.ParentEpicID, types.ErrNotFound)
		}
		if _, dup := t.Features[f.ID]; dup {
			return fmt.Errorf("feature %s already exists", f.ID)
		}
		f.Position = len(parent.FeatureIDs)
		t.Features[f.ID] = &f
		parent.FeatureIDs = append(parent.FeatureIDs, f.ID)
	case a.UserStory != nil:
		s := *a.UserStory
		if s.ID == "" {
			s.ID = types.NewID()
		}
		if s.TaskIDs == nil {
			s.TaskIDs = []string{}
		}
		parent, ok := t.Features[s.ParentFeatureID]
		if !ok {
			return fmt.Errorf("feature %s: %w", s.ParentFeatureID, types.ErrNotFound)
		}
		if _, dup := t.UserStories[s.ID]; dup {
			return fmt.Errorf("user story %s already exists", s.ID)
		}
		s.Position = len(parent.UserStoryIDs)
		t.UserStories[s.ID] = &s
		parent.UserStoryIDs = append(parent.UserStoryIDs, s.ID)
	case a.Task != nil:
		k := *a.Task
		if k.ID == "" {
			k.ID = types.NewID()
		}
		parent, ok := t.UserStories[k.ParentUserStoryID]
		if !ok {
			return fmt.Errorf("user story %s: %w", k.ParentUserStoryID, types.ErrNotFound)
		}
		if _, dup := t.Tasks[k.ID]; dup {
			return fmt.Errorf("task %s already exists", k.ID)
		}
		k.Position = len(parent.TaskIDs)
		t.Tasks[k.ID] = &k
		parent.TaskIDs = append(parent.TaskIDs, k.ID)
	default:
		return errors.New("add: no entity given")
	}
	return nil
}

// Fields is a partial update. Nil pointers leave the field unchanged.
type Fields struct {
	Title              *string
	Description        *string
	DocumentID         *string
	Status             *types.Status
	Priority           *types.Priority
	AcceptanceCriteria *string
	StoryPoints        *int
	EstimatedHours     *float64
}

// Update changes scalar fields of one entity. Structural fields (parent, child
// lists, position) are only changed by Reorder and Move.
type Update struct {
	ItemType types.ItemType
	ID       string
	Fields   Fields
}

func (a Update) Describe() string {
	return fmt.Sprintf("update %s %s", a.ItemType, a.ID)
}

func (a Update) apply(t *types.Tree) error {
	var base *types.Base
	f := a.Fields
	switch a.ItemType {
	case types.TypeEpic:
		e, ok := t.Epics[a.ID]
		if !ok {
			return fmt.Errorf("epic %s: %w", a.ID, types.ErrNotFound)
		}
		base = &e.Base
		if f.Status != nil {
			e.Status = *f.Status
		}
		if f.Priority != nil {
			e.Priority = *f.Priority
		}
	case types.TypeFeature:
		ft, ok := t.Features[a.ID]
		if !ok {
			return fmt.Errorf("feature %s: %w", a.ID, types.ErrNotFound)
		}
		base = &ft.Base
		if f.Status != nil {
			ft.Status = *f.Status
		}
		if f.Priority != nil {
			ft.Priority = *f.Priority
		}
	case types.TypeUserStory:
		s, ok := t.UserStories[a.ID]
		if !ok {
			return fmt.Errorf("user story %s: %w", a.ID, types.ErrNotFound)
		}
		base = &s.Base
		if f.AcceptanceCriteria != nil {
			s.AcceptanceCriteria = *f.AcceptanceCriteria
		}
		if f.StoryPoints != nil {
			s.StoryPoints = *f.StoryPoints
		}
	case types.TypeTask:
		k, ok := t.Tasks[a.ID]
		if !ok {
			return fmt.Errorf("task %s: %w", a.ID, types.ErrNotFound)
		}
		base = &k.Base
		if f.Status != nil {
			k.Status = *f.Status
		}
		if f.EstimatedHours != nil {
			k.EstimatedHours = *f.EstimatedHours
		}
	default:
		return fmt.Errorf("%w: %q", types.ErrInvalidItemType, a.ItemType)
	}
	if f.Title != nil {
		base.Title = *f.Title
	}
	if f.Description != nil {
		base.Description = *f.Description
	}
	if f.DocumentID != nil {
		base.DocumentID = *f.DocumentID
	}
	base.UpdatedAt = now()
	return nil
}

// Delete removes one entity, its subtree, and the reference in its parent's
// child list.
type Delete struct {
	ItemType types.ItemType
	ID       string
}

func (a Delete) Describe() string {
	return fmt.Sprintf("delete %s %s", a.ItemType, a.ID)
}

func (a Delete) apply(t *types.Tree) error {
	item, err := t.Lookup(a.ItemType, a.ID)
	if err != nil {
		return err
	}
	siblings, err := t.ChildIDs(a.ItemType, item.ParentID)
	if err != nil {
		return err
	}
	siblings = slices.DeleteFunc(slices.Clone(siblings), func(id string) bool { return id == a.ID })
	if err := t.SetChildIDs(a.ItemType, item.ParentID, siblings); err != nil {
		return err
	}
	t.Renumber(a.ItemType, siblings, now())
	removeSubtree(t, a.ItemType, a.ID)
	return nil
}

func removeSubtree(t *types.Tree, itemType types.ItemType, id string) {
	if childType, ok := itemType.ChildType(); ok {
		children, err := t.ChildIDs(childType, id)
		if err == nil {
			for _, cid := range slices.Clone(children) {
				removeSubtree(t, childType, cid)
			}
		}
	}
	switch itemType {
	case types.TypeEpic:
		delete(t.Epics, id)
	case types.TypeFeature:
		delete(t.Features, id)
	case types.TypeUserStory:
		delete(t.UserStories, id)
	case types.TypeTask:
		delete(t.Tasks, id)
	}
}
