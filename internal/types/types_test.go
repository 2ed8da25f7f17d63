package types

import (
	"errors"
	"testing"
	"time"
)

// sampleTree builds: epic-1{feature-1{story-1{task-1}}}, epic-2{}
func sampleTree() *Tree {
	t := NewTree(App{Base: Base{ID: "app-1", DocumentID: "doc-app-1", Title: "App"}})
	t.App.EpicIDs = []string{"epic-1", "epic-2"}
	t.Epics["epic-1"] = &Epic{Base: Base{ID: "epic-1", DocumentID: "doc-epic-1", Title: "Epic One"}, FeatureIDs: []string{"feature-1"}}
	t.Epics["epic-2"] = &Epic{Base: Base{ID: "epic-2", DocumentID: "doc-epic-2", Title: "Epic Two", Position: 1}, FeatureIDs: []string{}}
	t.Features["feature-1"] = &Feature{Base: Base{ID: "feature-1", DocumentID: "doc-feature-1", Title: "Feature One"}, ParentEpicID: "epic-1", UserStoryIDs: []string{"story-1"}}
	t.UserStories["story-1"] = &UserStory{Base: Base{ID: "story-1", Title: "Story One"}, ParentFeatureID: "feature-1", TaskIDs: []string{"task-1"}}
	t.Tasks["task-1"] = &Task{Base: Base{ID: "task-1", DocumentID: "doc-task-1", Title: "Task One"}, ParentUserStoryID: "story-1"}
	return t
}

func TestParseItemType(t *testing.T) {
	tests := []struct {
		input   string
		want    ItemType
		wantErr bool
	}{
		{"epic", TypeEpic, false},
		{"Feature", TypeFeature, false},
		{"userStory", TypeUserStory, false},
		{"user_story", TypeUserStory, false},
		{"story", TypeUserStory, false},
		{"tasks", TypeTask, false},
		{"bug", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseItemType(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseItemType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidItemType) {
				t.Errorf("expected ErrInvalidItemType, got %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseItemType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestItemTypeNavigation(t *testing.T) {
	if _, ok := TypeEpic.ParentType(); ok {
		t.Error("epic should have no parent type")
	}
	if p, _ := TypeTask.ParentType(); p != TypeUserStory {
		t.Errorf("task parent type = %q, want userStory", p)
	}
	if c, _ := TypeFeature.ChildType(); c != TypeUserStory {
		t.Errorf("feature child type = %q, want userStory", c)
	}
	if _, ok := TypeTask.ChildType(); ok {
		t.Error("task should have no child type")
	}
}

func TestLookup(t *testing.T) {
	tree := sampleTree()

	item, err := tree.Lookup(TypeFeature, "feature-1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if item.ParentID != "epic-1" || item.DocumentID != "doc-feature-1" {
		t.Errorf("unexpected item: %+v", item)
	}

	_, err = tree.Lookup(TypeTask, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_, err = tree.Lookup(ItemType("bogus"), "x")
	if !errors.Is(err, ErrInvalidItemType) {
		t.Errorf("expected ErrInvalidItemType, got %v", err)
	}
}

func TestDocumentIDOf(t *testing.T) {
	tree := sampleTree()

	if got := tree.DocumentIDOf(TypeEpic, "epic-2"); got != "doc-epic-2" {
		t.Errorf("DocumentIDOf(epic-2) = %q, want doc-epic-2", got)
	}
	// story-1 has no durable id recorded
	if got := tree.DocumentIDOf(TypeUserStory, "story-1"); got != "story-1" {
		t.Errorf("DocumentIDOf(story-1) = %q, want local id fallback", got)
	}
	if got := tree.DocumentIDOf(TypeTask, "ghost"); got != "ghost" {
		t.Errorf("DocumentIDOf(ghost) = %q, want local id fallback", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	tree := sampleTree()
	c := tree.Clone()

	c.App.EpicIDs[0] = "changed"
	c.Epics["epic-1"].FeatureIDs = append(c.Epics["epic-1"].FeatureIDs, "feature-x")
	c.Features["feature-1"].Title = "Renamed"

	if tree.App.EpicIDs[0] != "epic-1" {
		t.Error("clone shares root order with original")
	}
	if len(tree.Epics["epic-1"].FeatureIDs) != 1 {
		t.Error("clone shares feature list with original")
	}
	if tree.Features["feature-1"].Title != "Feature One" {
		t.Error("clone shares feature struct with original")
	}
}

func TestValidate(t *testing.T) {
	if err := sampleTree().Validate(); err != nil {
		t.Fatalf("sample tree should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Tree)
	}{
		{"parent field disagrees", func(tr *Tree) { tr.Features["feature-1"].ParentEpicID = "epic-2" }},
		{"child listed twice", func(tr *Tree) {
			tr.Epics["epic-2"].FeatureIDs = []string{"feature-1"}
		}},
		{"orphan task", func(tr *Tree) { tr.UserStories["story-1"].TaskIDs = nil }},
		{"unknown epic in root", func(tr *Tree) { tr.App.EpicIDs = append(tr.App.EpicIDs, "epic-9") }},
		{"epic missing from root", func(tr *Tree) { tr.App.EpicIDs = []string{"epic-1"} }},
		{"unknown story", func(tr *Tree) {
			tr.Features["feature-1"].UserStoryIDs = append(tr.Features["feature-1"].UserStoryIDs, "story-9")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := sampleTree()
			tt.mutate(tr)
			if err := tr.Validate(); !errors.Is(err, ErrInconsistent) {
				t.Errorf("Validate() = %v, want ErrInconsistent", err)
			}
		})
	}
}

func TestRenumber(t *testing.T) {
	tree := sampleTree()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tree.App.EpicIDs = []string{"epic-2", "epic-1"}
	tree.Renumber(TypeEpic, tree.App.EpicIDs, now)

	if tree.Epics["epic-2"].Position != 0 || tree.Epics["epic-1"].Position != 1 {
		t.Errorf("positions = %d,%d, want 0,1", tree.Epics["epic-2"].Position, tree.Epics["epic-1"].Position)
	}
	if !tree.Epics["epic-1"].UpdatedAt.Equal(now) {
		t.Error("moved epic should carry the new UpdatedAt")
	}
}

func TestWalkOrder(t *testing.T) {
	tree := sampleTree()
	var got []string
	tree.Walk(func(item Item, depth int) bool {
		got = append(got, item.ID)
		return true
	})
	want := []string{"epic-1", "feature-1", "story-1", "task-1", "epic-2"}
	if len(got) != len(want) {
		t.Fatalf("Walk visited %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Walk[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
