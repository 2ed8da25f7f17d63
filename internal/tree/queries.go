package tree

import (
	"fmt"
	"strings"

	"github.com/spectree/spectree/internal/types"
)

// BreadcrumbSeparator joins ancestor titles in a breadcrumb path.
const BreadcrumbSeparator = " › "

// MoveValidation is the advisory result of ValidateMove.
type MoveValidation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// ValidateMove checks that destParentID exists one level above itemType and
// differs from the item's current parent. Nothing calls this implicitly before
// a move; it is meant for pickers that want to pre-check a choice.
func ValidateMove(t *types.Tree, itemType types.ItemType, itemID, destParentID string) MoveValidation {
	parentType, ok := itemType.ParentType()
	if !ok {
		return MoveValidation{Reason: fmt.Sprintf("%s items cannot be moved to a parent", itemType.Label())}
	}
	item, err := t.Lookup(itemType, itemID)
	if err != nil {
		return MoveValidation{Reason: fmt.Sprintf("%s %q not found", itemType.Label(), itemID)}
	}
	if destParentID == "" {
		return MoveValidation{Reason: "destination parent is required"}
	}
	if !t.Exists(parentType, destParentID) {
		return MoveValidation{Reason: fmt.Sprintf("destination %s %q does not exist", parentType.Label(), destParentID)}
	}
	if item.ParentID == destParentID {
		return MoveValidation{Reason: fmt.Sprintf("%s is already in this %s", itemType.Label(), parentType.Label())}
	}
	return MoveValidation{Valid: true}
}

// ParentOption is one candidate destination for a move.
type ParentOption struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"documentId,omitempty"`
	Type       types.ItemType `json:"type"`
	Title      string         `json:"title"`
	Path       string         `json:"path"`
	IsCurrent  bool           `json:"isCurrent"`
}

// PotentialParents lists every entity one level above itemType in tree order,
// each with a breadcrumb path and a flag for the current parent. Epics have no
// potential parents.
func PotentialParents(t *types.Tree, itemType types.ItemType, currentParentID string) []ParentOption {
	parentType, ok := itemType.ParentType()
	if !ok {
		return nil
	}
	var out []ParentOption
	t.Walk(func(item types.Item, _ int) bool {
		if item.Type != parentType {
			return true
		}
		out = append(out, ParentOption{
			ID:         item.ID,
			DocumentID: item.DocumentID,
			Type:       item.Type,
			Title:      item.Title,
			Path:       Breadcrumb(t, item.Type, item.ID),
			IsCurrent:  item.ID == currentParentID,
		})
		return true
	})
	return out
}

// Breadcrumb returns the titles from the root epic down to the entity.
func Breadcrumb(t *types.Tree, itemType types.ItemType, id string) string {
	var parts []string
	for {
		item, err := t.Lookup(itemType, id)
		if err != nil {
			break
		}
		parts = append(parts, item.Title)
		parentType, ok := itemType.ParentType()
		if !ok || item.ParentID == "" {
			break
		}
		itemType, id = parentType, item.ParentID
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, BreadcrumbSeparator)
}
