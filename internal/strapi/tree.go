package strapi

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/spectree/spectree/internal/types"
)

// ListApps returns every app the token can read, newest first.
func (c *Client) ListApps(ctx context.Context) ([]AppSummary, error) {
	q := url.Values{}
	q.Set("sort", "updatedAt:desc")
	rows, err := c.listAll(ctx, "apps", q)
	if err != nil {
		return nil, err
	}
	apps := make([]AppSummary, 0, len(rows))
	for _, r := range rows {
		name := r.Name
		if name == "" {
			name = r.Title
		}
		apps = append(apps, AppSummary{DocumentID: r.DocumentID, Name: name, UpdatedAt: r.UpdatedAt})
	}
	return apps, nil
}

// GetApp fetches a single app by documentId.
func (c *Client) GetApp(ctx context.Context, appDocumentID string) (types.App, error) {
	body, err := c.get(ctx, "/api/apps/"+url.PathEscape(appDocumentID), nil)
	if err != nil {
		return types.App{}, fmt.Errorf("failed to fetch app %s: %w", appDocumentID, err)
	}
	var resp singleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return types.App{}, fmt.Errorf("failed to parse app: %w", err)
	}
	return types.App{Base: resp.Data.base(), EpicIDs: []string{}}, nil
}

// GetTree loads the whole specification tree of one app. The four levels are
// fetched concurrently and assembled bottom-up; children are ordered by
// position. Rows whose parent is missing are dropped with a warning.
func (c *Client) GetTree(ctx context.Context, appDocumentID string) (*types.Tree, error) {
	var (
		app                             types.App
		epics, features, stories, tasks []entity
	)

	// Filters walk the relation chain up to the app.
	appFilter := map[types.ItemType]string{
		types.TypeEpic:      "filters[app][documentId][$eq]",
		types.TypeFeature:   "filters[epic][app][documentId][$eq]",
		types.TypeUserStory: "filters[feature][epic][app][documentId][$eq]",
		types.TypeTask:      "filters[user_story][feature][epic][app][documentId][$eq]",
	}
	g, gctx := errgroup.WithContext(ctx)
	fetch := func(itemType types.ItemType, dst *[]entity) func() error {
		return func() error {
			coll, err := collection(itemType)
			if err != nil {
				return err
			}
			q := url.Values{}
			q.Set(appFilter[itemType], appDocumentID)
			q.Set("sort", "position:asc")
			q.Set(fmt.Sprintf("populate[%s][fields][0]", parentField(itemType)), "documentId")
			rows, err := c.listAll(gctx, coll, q)
			if err != nil {
				return err
			}
			*dst = rows
			return nil
		}
	}

	g.Go(func() error {
		var err error
		app, err = c.GetApp(gctx, appDocumentID)
		return err
	})
	g.Go(fetch(types.TypeEpic, &epics))
	g.Go(fetch(types.TypeFeature, &features))
	g.Go(fetch(types.TypeUserStory, &stories))
	g.Go(fetch(types.TypeTask, &tasks))
	if err := g.Wait(); err != nil {
		return nil, err
	}

	t := assemble(app, epics, features, stories, tasks, func(itemType types.ItemType, id, parent string) {
		c.Log.Warn().
			Str("item_type", string(itemType)).
			Str("document_id", id).
			Str("parent_document_id", parent).
			Msg("dropping orphaned cms row")
	})
	return t, nil
}

// assemble builds a consistent tree from flat rows.
func assemble(app types.App, epics, features, stories, tasks []entity, orphan func(types.ItemType, string, string)) *types.Tree {
	t := types.NewTree(app)

	byPosition := func(a, b entity) int {
		return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.ID, b.ID))
	}
	for _, rows := range [][]entity{epics, features, stories, tasks} {
		slices.SortStableFunc(rows, byPosition)
	}

	for _, e := range epics {
		t.Epics[e.DocumentID] = &types.Epic{
			Base:       e.base(),
			Status:     types.Status(e.Status),
			Priority:   types.Priority(e.Priority),
			FeatureIDs: []string{},
		}
		t.App.EpicIDs = append(t.App.EpicIDs, e.DocumentID)
	}
	for _, f := range features {
		parent := f.parentDocumentID(types.TypeFeature)
		epic, ok := t.Epics[parent]
		if !ok {
			orphan(types.TypeFeature, f.DocumentID, parent)
			continue
		}
		t.Features[f.DocumentID] = &types.Feature{
			Base:         f.base(),
			Status:       types.Status(f.Status),
			Priority:     types.Priority(f.Priority),
			ParentEpicID: parent,
			UserStoryIDs: []string{},
		}
		epic.FeatureIDs = append(epic.FeatureIDs, f.DocumentID)
	}
	for _, s := range stories {
		parent := s.parentDocumentID(types.TypeUserStory)
		feature, ok := t.Features[parent]
		if !ok {
			orphan(types.TypeUserStory, s.DocumentID, parent)
			continue
		}
		t.UserStories[s.DocumentID] = &types.UserStory{
			Base:               s.base(),
			AcceptanceCriteria: s.AcceptanceCriteria,
			StoryPoints:        s.StoryPoints,
			ParentFeatureID:    parent,
			TaskIDs:            []string{},
		}
		feature.UserStoryIDs = append(feature.UserStoryIDs, s.DocumentID)
	}
	for _, k := range tasks {
		parent := k.parentDocumentID(types.TypeTask)
		story, ok := t.UserStories[parent]
		if !ok {
			orphan(types.TypeTask, k.DocumentID, parent)
			continue
		}
		t.Tasks[k.DocumentID] = &types.Task{
			Base:              k.base(),
			Status:            types.Status(k.Status),
			EstimatedHours:    k.EstimatedHours,
			ParentUserStoryID: parent,
		}
		story.TaskIDs = append(story.TaskIDs, k.DocumentID)
	}
	return t
}
