package strapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spectree/spectree/internal/reorder"
	"github.com/spectree/spectree/internal/types"
)

// Attributes is the data object of a create or update request.
type Attributes map[string]any

func baseAttributes(b types.Base) Attributes {
	a := Attributes{"title": b.Title, "position": b.Position}
	if b.Description != "" {
		a["description"] = b.Description
	}
	return a
}

// EpicAttributes maps an epic to CMS attributes.
func EpicAttributes(e *types.Epic) Attributes {
	a := baseAttributes(e.Base)
	if e.Status != "" {
		a["status"] = string(e.Status)
	}
	if e.Priority != "" {
		a["priority"] = string(e.Priority)
	}
	return a
}

// FeatureAttributes maps a feature to CMS attributes.
func FeatureAttributes(f *types.Feature) Attributes {
	a := baseAttributes(f.Base)
	if f.Status != "" {
		a["status"] = string(f.Status)
	}
	if f.Priority != "" {
		a["priority"] = string(f.Priority)
	}
	return a
}

// UserStoryAttributes maps a user story to CMS attributes.
func UserStoryAttributes(s *types.UserStory) Attributes {
	a := baseAttributes(s.Base)
	if s.AcceptanceCriteria != "" {
		a["acceptanceCriteria"] = s.AcceptanceCriteria
	}
	if s.StoryPoints > 0 {
		a["storyPoints"] = s.StoryPoints
	}
	return a
}

// TaskAttributes maps a task to CMS attributes.
func TaskAttributes(k *types.Task) Attributes {
	a := baseAttributes(k.Base)
	if k.Status != "" {
		a["status"] = string(k.Status)
	}
	if k.EstimatedHours > 0 {
		a["estimatedHours"] = k.EstimatedHours
	}
	return a
}

// Create adds an entity under parentDocumentID and returns its documentId.
// For epics the parent is the app.
func (c *Client) Create(ctx context.Context, itemType types.ItemType, parentDocumentID string, attrs Attributes) (string, error) {
	coll, err := collection(itemType)
	if err != nil {
		return "", err
	}
	data := Attributes{}
	for k, v := range attrs {
		data[k] = v
	}
	if parentDocumentID != "" {
		data[parentField(itemType)] = parentDocumentID
	}
	body, err := c.send(ctx, http.MethodPost, "/api/"+coll, map[string]any{"data": data})
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", itemType, err)
	}
	var resp singleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse created %s: %w", itemType, err)
	}
	if resp.Data.DocumentID == "" {
		return "", fmt.Errorf("created %s has no documentId", itemType)
	}
	return resp.Data.DocumentID, nil
}

// CreateEpic creates e under the app.
func (c *Client) CreateEpic(ctx context.Context, appDocumentID string, e *types.Epic) (string, error) {
	return c.Create(ctx, types.TypeEpic, appDocumentID, EpicAttributes(e))
}

// CreateFeature creates f under an epic.
func (c *Client) CreateFeature(ctx context.Context, epicDocumentID string, f *types.Feature) (string, error) {
	return c.Create(ctx, types.TypeFeature, epicDocumentID, FeatureAttributes(f))
}

// CreateUserStory creates s under a feature.
func (c *Client) CreateUserStory(ctx context.Context, featureDocumentID string, s *types.UserStory) (string, error) {
	return c.Create(ctx, types.TypeUserStory, featureDocumentID, UserStoryAttributes(s))
}

// CreateTask creates k under a user story.
func (c *Client) CreateTask(ctx context.Context, storyDocumentID string, k *types.Task) (string, error) {
	return c.Create(ctx, types.TypeTask, storyDocumentID, TaskAttributes(k))
}

// Update patches the given attributes of one entity.
func (c *Client) Update(ctx context.Context, itemType types.ItemType, documentID string, attrs Attributes) error {
	coll, err := collection(itemType)
	if err != nil {
		return err
	}
	path := "/api/" + coll + "/" + url.PathEscape(documentID)
	if _, err := c.send(ctx, http.MethodPut, path, map[string]any{"data": attrs}); err != nil {
		return fmt.Errorf("failed to update %s %s: %w", itemType, documentID, err)
	}
	return nil
}

// Delete removes one entity. The CMS cascades to children through its own
// lifecycle hooks; the client does not.
func (c *Client) Delete(ctx context.Context, itemType types.ItemType, documentID string) error {
	coll, err := collection(itemType)
	if err != nil {
		return err
	}
	path := "/api/" + coll + "/" + url.PathEscape(documentID)
	if _, err := c.send(ctx, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", itemType, documentID, err)
	}
	return nil
}

// UpdatePosition writes a new position, plus the parent relation for nested
// items. It implements reorder.Persister and is attempted exactly once.
func (c *Client) UpdatePosition(ctx context.Context, u reorder.PositionUpdate) error {
	if u.DocumentID == "" {
		return fmt.Errorf("update position: empty documentId: %w", types.ErrNotFound)
	}
	attrs := Attributes{"position": u.Position}
	if _, nested := u.ItemType.ParentType(); nested && u.ParentDocumentID != "" {
		attrs[parentField(u.ItemType)] = u.ParentDocumentID
	}
	return c.Update(ctx, u.ItemType, u.DocumentID, attrs)
}

var _ reorder.Persister = (*Client)(nil)

// Refetcher reloads one app's tree. It implements reorder.Refetcher.
type Refetcher struct {
	Client        *Client
	AppDocumentID string
}

// Refetch implements reorder.Refetcher.
func (r Refetcher) Refetch(ctx context.Context) (*types.Tree, error) {
	return r.Client.GetTree(ctx, r.AppDocumentID)
}

var _ reorder.Refetcher = Refetcher{}
