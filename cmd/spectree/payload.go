package main

import (
	"fmt"
	"slices"

	"github.com/spectree/spectree/internal/reorder"
	"github.com/spectree/spectree/internal/types"
)

// appendIndex asks movePayload to place the item last under its new parent.
const appendIndex = -1

// currentPlace returns an item's parent id and index in its sibling list.
func currentPlace(t *types.Tree, itemType types.ItemType, id string) (string, int, error) {
	item, err := t.Lookup(itemType, id)
	if err != nil {
		return "", 0, err
	}
	siblings, err := t.ChildIDs(itemType, item.ParentID)
	if err != nil {
		return "", 0, err
	}
	idx := slices.Index(siblings, id)
	if idx < 0 {
		return "", 0, fmt.Errorf("%s %s not listed under its parent: %w", itemType, id, types.ErrInconsistent)
	}
	return item.ParentID, idx, nil
}

// reorderPayload builds a same-parent drop moving id to index to.
func reorderPayload(t *types.Tree, itemType types.ItemType, id string, to int) (reorder.Payload, error) {
	parent, from, err := currentPlace(t, itemType, id)
	if err != nil {
		return reorder.Payload{}, err
	}
	siblings, _ := t.ChildIDs(itemType, parent)
	if to < 0 || to >= len(siblings) {
		return reorder.Payload{}, fmt.Errorf("index %d out of range: %d %s item(s) under this parent", to, len(siblings), itemType)
	}
	return reorder.Payload{
		ItemID:              id,
		ItemType:            itemType,
		SourceIndex:         from,
		DestinationIndex:    to,
		SourceParentID:      parent,
		DestinationParentID: parent,
	}, nil
}

// movePayload builds a cross-parent drop of id into destParent at index
// (appendIndex places it last).
func movePayload(t *types.Tree, itemType types.ItemType, id, destParent string, index int) (reorder.Payload, error) {
	parent, from, err := currentPlace(t, itemType, id)
	if err != nil {
		return reorder.Payload{}, err
	}
	dest, err := t.ChildIDs(itemType, destParent)
	if err != nil {
		return reorder.Payload{}, err
	}
	if index == appendIndex {
		index = len(dest)
	}
	if index < 0 || index > len(dest) {
		return reorder.Payload{}, fmt.Errorf("index %d out of range: destination has %d %s item(s)", index, len(dest), itemType)
	}
	return reorder.Payload{
		ItemID:              id,
		ItemType:            itemType,
		SourceIndex:         from,
		DestinationIndex:    index,
		SourceParentID:      parent,
		DestinationParentID: destParent,
	}, nil
}
