package tree

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/spectree/spectree/internal/testutil/treefixture"
	"github.com/spectree/spectree/internal/types"
)

var fixedNow = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

func init() {
	now = func() time.Time { return fixedNow }
}

func mustApply(t *testing.T, tr *types.Tree, a Action) *types.Tree {
	t.Helper()
	next, err := Apply(tr, a)
	if err != nil {
		t.Fatalf("Apply(%s) failed: %v", a.Describe(), err)
	}
	if err := next.Validate(); err != nil {
		t.Fatalf("tree inconsistent after %s: %v", a.Describe(), err)
	}
	return next
}

func TestReorderRootEpics(t *testing.T) {
	tr := treefixture.New()
	next := mustApply(t, tr, Reorder{ItemType: types.TypeEpic, From: 0, To: 1})

	if want := []string{"epic-2", "epic-1"}; !slices.Equal(next.App.EpicIDs, want) {
		t.Errorf("EpicIDs = %v, want %v", next.App.EpicIDs, want)
	}
	if next.Epics["epic-1"].Position != 1 || next.Epics["epic-2"].Position != 0 {
		t.Errorf("positions not renumbered: epic-1=%d epic-2=%d", next.Epics["epic-1"].Position, next.Epics["epic-2"].Position)
	}
	// input untouched
	if want := []string{"epic-1", "epic-2"}; !slices.Equal(tr.App.EpicIDs, want) {
		t.Errorf("input mutated: %v", tr.App.EpicIDs)
	}
}

func TestReorderKeepsLength(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     []string
	}{
		{"first to last", 0, 1, []string{"task-2", "task-1"}},
		{"last to first", 1, 0, []string{"task-2", "task-1"}},
		{"same index", 1, 1, []string{"task-1", "task-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := mustApply(t, treefixture.New(), Reorder{ItemType: types.TypeTask, ParentID: "story-1", From: tt.from, To: tt.to})
			got := next.UserStories["story-1"].TaskIDs
			if !slices.Equal(got, tt.want) {
				t.Errorf("TaskIDs = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReorderErrors(t *testing.T) {
	tr := treefixture.New()

	_, err := Apply(tr, Reorder{ItemType: types.TypeFeature, ParentID: "epic-1", From: 0, To: 5})
	if !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
	_, err = Apply(tr, Reorder{ItemType: types.TypeFeature, ParentID: "epic-9", From: 0, To: 0})
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMoveAcrossParents(t *testing.T) {
	tr := treefixture.New()
	next := mustApply(t, tr, Move{ItemType: types.TypeFeature, ItemID: "feature-1", FromParentID: "epic-1", ToParentID: "epic-2", ToIndex: 0})

	if slices.Contains(next.Epics["epic-1"].FeatureIDs, "feature-1") {
		t.Error("feature-1 still listed under epic-1")
	}
	if want := []string{"feature-1", "feature-3"}; !slices.Equal(next.Epics["epic-2"].FeatureIDs, want) {
		t.Errorf("epic-2 features = %v, want %v", next.Epics["epic-2"].FeatureIDs, want)
	}
	if got := next.Features["feature-1"].ParentEpicID; got != "epic-2" {
		t.Errorf("ParentEpicID = %q, want epic-2", got)
	}
	if next.Features["feature-2"].Position != 0 {
		t.Errorf("source siblings not renumbered: feature-2 position = %d", next.Features["feature-2"].Position)
	}
	if next.Features["feature-3"].Position != 1 {
		t.Errorf("destination siblings not renumbered: feature-3 position = %d", next.Features["feature-3"].Position)
	}
	if !next.Features["feature-1"].UpdatedAt.Equal(fixedNow) {
		t.Error("moved item should carry new UpdatedAt")
	}
}

func TestReorderByItemIgnoresStaleFrom(t *testing.T) {
	tr := treefixture.New()
	once := mustApply(t, tr, Reorder{ItemType: types.TypeTask, ItemID: "task-1", ParentID: "story-1", From: 0, To: 1})
	// Same request again; From still says 0 but task-1 now sits at 1.
	twice := mustApply(t, once, Reorder{ItemType: types.TypeTask, ItemID: "task-1", ParentID: "story-1", From: 0, To: 1})

	if want := []string{"task-2", "task-1"}; !slices.Equal(twice.UserStories["story-1"].TaskIDs, want) {
		t.Errorf("TaskIDs = %v, want %v", twice.UserStories["story-1"].TaskIDs, want)
	}

	_, err := Apply(tr, Reorder{ItemType: types.TypeFeature, ItemID: "feature-3", ParentID: "epic-1", To: 0})
	if !errors.Is(err, types.ErrInconsistent) {
		t.Errorf("expected ErrInconsistent for item outside the list, got %v", err)
	}
}

func TestMoveRejectsWrongSourceParent(t *testing.T) {
	tr := treefixture.New()
	tests := []struct {
		name string
		move Move
	}{
		{"stale source", Move{ItemType: types.TypeFeature, ItemID: "feature-1", FromParentID: "epic-2", ToParentID: "epic-2"}},
		{"stale source to third parent", Move{ItemType: types.TypeTask, ItemID: "task-1", FromParentID: "story-9", ToParentID: "story-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(tr, tt.move)
			if !errors.Is(err, types.ErrInconsistent) {
				t.Fatalf("Apply() = %v, want ErrInconsistent", err)
			}
			if err := tr.Validate(); err != nil {
				t.Errorf("input tree changed: %v", err)
			}
		})
	}
}

func TestMoveWithoutSourceUsesCurrentParent(t *testing.T) {
	tr := treefixture.New()
	moved := mustApply(t, tr, Move{ItemType: types.TypeFeature, ItemID: "feature-1", ToParentID: "epic-2", ToIndex: 1})
	if slices.Contains(moved.Epics["epic-1"].FeatureIDs, "feature-1") {
		t.Error("feature-1 still listed under epic-1")
	}
	if want := []string{"feature-3", "feature-1"}; !slices.Equal(moved.Epics["epic-2"].FeatureIDs, want) {
		t.Errorf("epic-2 features = %v, want %v", moved.Epics["epic-2"].FeatureIDs, want)
	}
}

func TestMoveClampsIndex(t *testing.T) {
	next := mustApply(t, treefixture.New(), Move{ItemType: types.TypeTask, ItemID: "task-1", ToParentID: "story-1", ToIndex: 99})
	if want := []string{"task-2", "task-1"}; !slices.Equal(next.UserStories["story-1"].TaskIDs, want) {
		t.Errorf("TaskIDs = %v, want %v", next.UserStories["story-1"].TaskIDs, want)
	}
}

func TestMoveErrors(t *testing.T) {
	tr := treefixture.New()
	tests := []struct {
		name   string
		action Move
		want   error
	}{
		{"epic", Move{ItemType: types.TypeEpic, ItemID: "epic-1", ToParentID: "x"}, types.ErrInvalidItemType},
		{"unknown item", Move{ItemType: types.TypeFeature, ItemID: "nope", ToParentID: "epic-2"}, types.ErrNotFound},
		{"unknown destination", Move{ItemType: types.TypeFeature, ItemID: "feature-1", ToParentID: "epic-9"}, types.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Apply(tr, tt.action); !errors.Is(err, tt.want) {
				t.Errorf("Apply() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAddAndDelete(t *testing.T) {
	tr := treefixture.New()
	next := mustApply(t, tr, Add{Task: &types.Task{Base: types.Base{ID: "task-3", Title: "Docs"}, ParentUserStoryID: "story-1"}})
	if got := next.Tasks["task-3"].Position; got != 2 {
		t.Errorf("new task position = %d, want 2", got)
	}

	next = mustApply(t, next, Delete{ItemType: types.TypeFeature, ID: "feature-1"})
	if _, ok := next.Features["feature-1"]; ok {
		t.Error("feature-1 should be gone")
	}
	if len(next.UserStories) != 0 || len(next.Tasks) != 0 {
		t.Errorf("subtree not cascaded: %d stories, %d tasks", len(next.UserStories), len(next.Tasks))
	}
	if next.Features["feature-2"].Position != 0 {
		t.Errorf("remaining sibling not renumbered: %d", next.Features["feature-2"].Position)
	}

	if _, err := Apply(tr, Add{Feature: &types.Feature{Base: types.Base{Title: "x"}, ParentEpicID: "ghost"}}); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("add under missing parent: got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	title := "Basket"
	status := types.StatusInProgress
	next := mustApply(t, treefixture.New(), Update{ItemType: types.TypeFeature, ID: "feature-1", Fields: Fields{Title: &title, Status: &status}})
	f := next.Features["feature-1"]
	if f.Title != "Basket" || f.Status != types.StatusInProgress {
		t.Errorf("update not applied: %+v", f)
	}
}

func TestValidateMove(t *testing.T) {
	tr := treefixture.New()
	tests := []struct {
		name      string
		itemType  types.ItemType
		itemID    string
		dest      string
		wantValid bool
	}{
		{"valid", types.TypeFeature, "feature-1", "epic-2", true},
		{"same parent", types.TypeFeature, "feature-1", "epic-1", false},
		{"missing destination", types.TypeFeature, "feature-1", "epic-9", false},
		{"empty destination", types.TypeTask, "task-1", "", false},
		{"epic", types.TypeEpic, "epic-1", "epic-2", false},
		{"missing item", types.TypeTask, "task-9", "story-1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateMove(tr, tt.itemType, tt.itemID, tt.dest)
			if got.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v (reason %q)", got.Valid, tt.wantValid, got.Reason)
			}
			if !got.Valid && got.Reason == "" {
				t.Error("invalid result must carry a reason")
			}
		})
	}
}

func TestPotentialParents(t *testing.T) {
	tr := treefixture.New()

	opts := PotentialParents(tr, types.TypeUserStory, "feature-1")
	if len(opts) != 3 {
		t.Fatalf("got %d options, want 3", len(opts))
	}
	if opts[0].ID != "feature-1" || !opts[0].IsCurrent {
		t.Errorf("first option = %+v, want current feature-1", opts[0])
	}
	if opts[0].Path != "Checkout › Cart" {
		t.Errorf("Path = %q, want %q", opts[0].Path, "Checkout › Cart")
	}
	if opts[2].ID != "feature-3" || opts[2].IsCurrent {
		t.Errorf("third option = %+v", opts[2])
	}

	if got := PotentialParents(tr, types.TypeEpic, ""); got != nil {
		t.Errorf("epics should have no potential parents, got %v", got)
	}
}

func TestBreadcrumb(t *testing.T) {
	tr := treefixture.New()
	if got := Breadcrumb(tr, types.TypeTask, "task-2"); got != "Checkout › Cart › Add item › UI button" {
		t.Errorf("Breadcrumb = %q", got)
	}
}
