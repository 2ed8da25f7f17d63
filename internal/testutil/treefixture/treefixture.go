// Package treefixture provides small, fully consistent specification trees for
// tests across packages.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    tr := treefixture.New()
//	    // epic-1 { feature-1 { story-1 { task-1, task-2 } }, feature-2 }
//	    // epic-2 { feature-3 }
//	}
package treefixture

import (
	"time"

	"github.com/spectree/spectree/internal/types"
)

// Created is the timestamp stamped on every fixture entity.
var Created = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func base(id, docID, title string, pos int) types.Base {
	return types.Base{
		ID:         id,
		DocumentID: docID,
		Title:      title,
		Position:   pos,
		CreatedAt:  Created,
		UpdatedAt:  Created,
	}
}

// New returns:
//
//	epic-1 "Checkout"
//	  feature-1 "Cart"
//	    story-1 "Add item"
//	      task-1 "API endpoint"
//	      task-2 "UI button"
//	  feature-2 "Payment"
//	epic-2 "Accounts"
//	  feature-3 "Login"
//
// Every entity except story-1 has a durable id "doc-<id>".
func New() *types.Tree {
	t := types.NewTree(types.App{Base: base("app-1", "doc-app-1", "Shop", 0)})
	t.App.EpicIDs = []string{"epic-1", "epic-2"}

	t.Epics["epic-1"] = &types.Epic{Base: base("epic-1", "doc-epic-1", "Checkout", 0), Priority: types.PriorityHigh, FeatureIDs: []string{"feature-1", "feature-2"}}
	t.Epics["epic-2"] = &types.Epic{Base: base("epic-2", "doc-epic-2", "Accounts", 1), FeatureIDs: []string{"feature-3"}}

	t.Features["feature-1"] = &types.Feature{Base: base("feature-1", "doc-feature-1", "Cart", 0), ParentEpicID: "epic-1", UserStoryIDs: []string{"story-1"}}
	t.Features["feature-2"] = &types.Feature{Base: base("feature-2", "doc-feature-2", "Payment", 1), ParentEpicID: "epic-1", UserStoryIDs: []string{}}
	t.Features["feature-3"] = &types.Feature{Base: base("feature-3", "doc-feature-3", "Login", 0), ParentEpicID: "epic-2", UserStoryIDs: []string{}}

	t.UserStories["story-1"] = &types.UserStory{Base: base("story-1", "", "Add item", 0), AcceptanceCriteria: "Item shows in cart", StoryPoints: 3, ParentFeatureID: "feature-1", TaskIDs: []string{"task-1", "task-2"}}

	t.Tasks["task-1"] = &types.Task{Base: base("task-1", "doc-task-1", "API endpoint", 0), Status: types.StatusTodo, EstimatedHours: 4, ParentUserStoryID: "story-1"}
	t.Tasks["task-2"] = &types.Task{Base: base("task-2", "doc-task-2", "UI button", 1), Status: types.StatusDone, EstimatedHours: 1.5, ParentUserStoryID: "story-1"}
	return t
}

// TwoEpics returns an app with two empty epics, epic-1 and epic-2.
func TwoEpics() *types.Tree {
	t := types.NewTree(types.App{Base: base("app-1", "doc-app-1", "Shop", 0)})
	t.App.EpicIDs = []string{"epic-1", "epic-2"}
	t.Epics["epic-1"] = &types.Epic{Base: base("epic-1", "doc-epic-1", "First", 0), FeatureIDs: []string{}}
	t.Epics["epic-2"] = &types.Epic{Base: base("epic-2", "doc-epic-2", "Second", 1), FeatureIDs: []string{}}
	return t
}
