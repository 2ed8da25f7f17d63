package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spectree/spectree/internal/strapi"
	"github.com/spectree/spectree/internal/tree"
	"github.com/spectree/spectree/internal/types"
	"github.com/spectree/spectree/internal/ui"
)

// addedItem describes one item created by add or generate.
type addedItem struct {
	Type       types.ItemType `json:"type"`
	ID         string         `json:"id"`
	DocumentID string         `json:"documentId,omitempty"`
	ParentID   string         `json:"parentId,omitempty"`
	Title      string         `json:"title"`
}

var addCmd = &cobra.Command{
	Use:     "add <type> [parent-id]",
	GroupID: "tree",
	Short:   "Add an epic, feature, user story or task",
	Long: `Add a new item at the end of its parent's list.

Epics need no parent; every other level takes the parent's id. Without
--title an interactive form asks for the fields.

Examples:
  spectree add epic --title "Checkout"
  spectree add task s4 --title "Write API handler"`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		itemType, err := types.ParseItemType(args[0])
		if err != nil {
			FatalError("%v", err)
		}
		var parentID string
		if len(args) == 2 {
			parentID = args[1]
		}
		if _, nested := itemType.ParentType(); nested && parentID == "" {
			FatalErrorWithHint(itemType.Label()+" needs a parent id", "see 'spectree parents "+string(itemType)+"'")
		}

		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		priority, _ := cmd.Flags().GetString("priority")

		ctx := getRootContext()
		if strings.TrimSpace(title) == "" {
			in, err := ui.AskItem(ctx, itemType)
			if errors.Is(err, ui.ErrCancelled) {
				fmt.Fprintln(os.Stderr, "Add cancelled.")
				return
			}
			if err != nil {
				FatalError("%v", err)
			}
			title, description, priority = in.Title, in.Description, in.Priority
		}

		sess := mustOpenSession(ctx)
		defer sess.close(ctx)

		action, err := newAddAction(itemType, parentID, title, description, types.Priority(priority))
		if err != nil {
			FatalError("%v", err)
		}
		added, err := sess.addItems(ctx, []tree.Action{action})
		if err != nil {
			FatalError("%v", err)
		}
		printAdded(added)
	},
}

func init() {
	addCmd.Flags().String("title", "", "Title (interactive form when empty)")
	addCmd.Flags().String("description", "", "Description")
	addCmd.Flags().String("priority", string(types.PriorityMedium), "Priority for epics and features (low, medium, high)")
	rootCmd.AddCommand(addCmd)
}

// newAddAction builds a tree.Add for one new item.
func newAddAction(itemType types.ItemType, parentID, title, description string, priority types.Priority) (tree.Add, error) {
	base := types.NewBase(strings.TrimSpace(title))
	base.Description = description
	switch priority {
	case types.PriorityLow, types.PriorityMedium, types.PriorityHigh:
	default:
		return tree.Add{}, fmt.Errorf("invalid priority %q (want low, medium or high)", priority)
	}
	switch itemType {
	case types.TypeEpic:
		return tree.Add{Epic: &types.Epic{Base: base, Status: types.StatusTodo, Priority: priority}}, nil
	case types.TypeFeature:
		return tree.Add{Feature: &types.Feature{Base: base, Status: types.StatusTodo, Priority: priority, ParentEpicID: parentID}}, nil
	case types.TypeUserStory:
		return tree.Add{UserStory: &types.UserStory{Base: base, ParentFeatureID: parentID}}, nil
	case types.TypeTask:
		return tree.Add{Task: &types.Task{Base: base, Status: types.StatusTodo, ParentUserStoryID: parentID}}, nil
	}
	return tree.Add{}, fmt.Errorf("%w: %q", types.ErrInvalidItemType, itemType)
}

// addedRef returns the level, id and parent id an Add action creates.
func addedRef(a tree.Add) (types.ItemType, string, string) {
	switch {
	case a.Epic != nil:
		return types.TypeEpic, a.Epic.ID, ""
	case a.Feature != nil:
		return types.TypeFeature, a.Feature.ID, a.Feature.ParentEpicID
	case a.UserStory != nil:
		return types.TypeUserStory, a.UserStory.ID, a.UserStory.ParentFeatureID
	case a.Task != nil:
		return types.TypeTask, a.Task.ID, a.Task.ParentUserStoryID
	}
	return "", "", ""
}

// attributesOf maps an entity in t to CMS attributes.
func attributesOf(t *types.Tree, itemType types.ItemType, id string) strapi.Attributes {
	switch itemType {
	case types.TypeEpic:
		return strapi.EpicAttributes(t.Epics[id])
	case types.TypeFeature:
		return strapi.FeatureAttributes(t.Features[id])
	case types.TypeUserStory:
		return strapi.UserStoryAttributes(t.UserStories[id])
	case types.TypeTask:
		return strapi.TaskAttributes(t.Tasks[id])
	}
	return nil
}

// addItems applies Add actions locally and, when online, creates each item
// in the CMS and records its documentId. A failed remote create is reported
// and leaves the local item without a documentId.
func (s *session) addItems(ctx context.Context, actions []tree.Action) ([]addedItem, error) {
	out := make([]addedItem, 0, len(actions))
	for _, action := range actions {
		add, ok := action.(tree.Add)
		if !ok {
			return out, fmt.Errorf("unexpected action %s", action.Describe())
		}
		t, err := s.store.Dispatch(add)
		if err != nil {
			return out, err
		}
		itemType, id, parentID := addedRef(add)
		item, _ := t.Lookup(itemType, id)
		added := addedItem{Type: itemType, ID: id, ParentID: parentID, Title: item.Title}

		if s.online() {
			parentDoc := s.appID
			if parentType, nested := itemType.ParentType(); nested {
				parentDoc = t.DocumentIDOf(parentType, parentID)
			}
			docID, err := s.client.Create(ctx, itemType, parentDoc, attributesOf(t, itemType, id))
			if err != nil {
				WarnError("%s %q kept locally: %v", itemType.Label(), item.Title, err)
			} else {
				if _, err := s.store.Dispatch(tree.Update{ItemType: itemType, ID: id, Fields: tree.Fields{DocumentID: &docID}}); err != nil {
					return out, err
				}
				added.DocumentID = docID
			}
		}
		out = append(out, added)
	}
	return out, nil
}

func printAdded(items []addedItem) {
	if jsonOutput {
		outputJSON(items)
		return
	}
	for _, it := range items {
		suffix := ui.RenderMuted("(local only)")
		if it.DocumentID != "" {
			suffix = ui.RenderMuted("(" + it.DocumentID + ")")
		}
		fmt.Printf("%s Added %s %s %s\n", ui.RenderPassIcon(), it.Type.Label(), it.Title, suffix)
	}
}
