// Package reorder turns a drag-and-drop result into an optimistic local tree
// update plus a best-effort remote position write.
//
// The work is split in two:
//
//   - NewPlan is pure: (snapshot, payload) -> (local action, remote effect).
//   - Coordinator is the shell: it dispatches the action, runs the effect
//     against a Persister, and owns the in-progress/error state, user
//     notification and callbacks.
//
// The local update always happens first and is never rolled back. A failed
// remote write leaves local state ahead of the backend until the next full
// load (or an explicit reconcile, see WithRefetcher).
package reorder

import (
	"fmt"
	"slices"

	"github.com/spectree/spectree/internal/tree"
	"github.com/spectree/spectree/internal/types"
)

// Payload describes one drop event.
type Payload struct {
	ItemID              string         `json:"itemId"`
	ItemType            types.ItemType `json:"itemType"`
	SourceIndex         int            `json:"sourceIndex"`
	DestinationIndex    int            `json:"destinationIndex"`
	SourceParentID      string         `json:"sourceParentId,omitempty"`      // empty for epics
	DestinationParentID string         `json:"destinationParentId,omitempty"` // empty for epics
}

// IsNoop reports whether the drop landed where it started.
func (p Payload) IsNoop() bool {
	return p.SourceIndex == p.DestinationIndex && p.SourceParentID == p.DestinationParentID
}

// IsMove reports whether the drop changes the item's parent.
func (p Payload) IsMove() bool {
	return p.SourceParentID != p.DestinationParentID
}

// PositionUpdate is the remote side effect of a reorder or move.
type PositionUpdate struct {
	ItemType   types.ItemType `json:"itemType"`
	DocumentID string         `json:"documentId"`
	Position   int            `json:"position"`
	// ParentDocumentID is empty for root-level items (epics).
	ParentDocumentID string `json:"parentDocumentId,omitempty"`
	// Reparent is true when the item changed parent.
	Reparent bool `json:"reparent,omitempty"`
}

// Plan is the outcome of NewPlan.
type Plan struct {
	Noop   bool
	Action tree.Action
	Effect *PositionUpdate
}

// NewPlan computes the local action and remote effect for p against snapshot.
// It returns types.ErrNotFound when the item or a named parent is missing.
func NewPlan(snapshot *types.Tree, p Payload) (Plan, error) {
	if p.IsNoop() {
		return Plan{Noop: true}, nil
	}
	if !p.ItemType.IsValid() {
		return Plan{}, fmt.Errorf("%w: %q", types.ErrInvalidItemType, p.ItemType)
	}
	if _, err := snapshot.Lookup(p.ItemType, p.ItemID); err != nil {
		return Plan{}, err
	}
	if p.ItemType == types.TypeEpic && (p.SourceParentID != "" || p.DestinationParentID != "") {
		return Plan{}, fmt.Errorf("epics have no parent: %w", types.ErrInvalidItemType)
	}

	siblings, err := snapshot.ChildIDs(p.ItemType, p.SourceParentID)
	if err != nil {
		return Plan{}, err
	}
	from := p.SourceIndex
	if from < 0 || from >= len(siblings) || siblings[from] != p.ItemID {
		// The drop index is stale; trust the snapshot instead.
		from = slices.Index(siblings, p.ItemID)
		if from < 0 {
			return Plan{}, fmt.Errorf("%s %s not listed under %q: %w", p.ItemType, p.ItemID, p.SourceParentID, types.ErrInconsistent)
		}
	}

	effect := &PositionUpdate{
		ItemType:   p.ItemType,
		DocumentID: snapshot.DocumentIDOf(p.ItemType, p.ItemID),
		Position:   p.DestinationIndex,
	}
	parentType, nested := p.ItemType.ParentType()

	if !p.IsMove() {
		if nested {
			effect.ParentDocumentID = snapshot.DocumentIDOf(parentType, p.SourceParentID)
		}
		return Plan{
			Action: tree.Reorder{ItemType: p.ItemType, ItemID: p.ItemID, ParentID: p.SourceParentID, From: from, To: p.DestinationIndex},
			Effect: effect,
		}, nil
	}

	if !snapshot.Exists(parentType, p.DestinationParentID) {
		return Plan{}, fmt.Errorf("%s %s: %w", parentType, p.DestinationParentID, types.ErrNotFound)
	}
	dest, err := snapshot.ChildIDs(p.ItemType, p.DestinationParentID)
	if err != nil {
		return Plan{}, err
	}
	// The local move appends past the end; persist the same index.
	to := min(max(p.DestinationIndex, 0), len(dest))

	effect.Position = to
	effect.ParentDocumentID = snapshot.DocumentIDOf(parentType, p.DestinationParentID)
	effect.Reparent = true
	return Plan{
		Action: tree.Move{
			ItemType:     p.ItemType,
			ItemID:       p.ItemID,
			FromParentID: p.SourceParentID,
			ToParentID:   p.DestinationParentID,
			ToIndex:      to,
		},
		Effect: effect,
	}, nil
}
