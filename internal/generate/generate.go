// Package generate drafts new tree content with a language model: epics for
// an app, features for an epic, user stories for a feature and tasks for a
// story.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/spectree/spectree/internal/tree"
	"github.com/spectree/spectree/internal/types"
)

// ErrInvalidResponse is returned when the model's reply is not a usable list
// of drafts.
var ErrInvalidResponse = errors.New("invalid model response")

// DefaultCount is how many drafts to request when the caller does not say.
const DefaultCount = 5

// Draft is one proposed child item.
type Draft struct {
	Title              string  `json:"title"`
	Description        string  `json:"description,omitempty"`
	Priority           string  `json:"priority,omitempty"`
	AcceptanceCriteria string  `json:"acceptanceCriteria,omitempty"`
	StoryPoints        int     `json:"storyPoints,omitempty"`
	EstimatedHours     float64 `json:"estimatedHours,omitempty"`
}

// Generator renders prompts from the tree and parses the model's drafts.
type Generator struct {
	completer Completer
	prompts   *Prompts
	log       zerolog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithPrompts replaces the built-in prompts.
func WithPrompts(p *Prompts) Option {
	return func(g *Generator) { g.prompts = p }
}

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Generator) { g.log = l }
}

// New creates a Generator backed by c.
func New(c Completer, opts ...Option) *Generator {
	g := &Generator{completer: c, prompts: DefaultPrompts(), log: zerolog.Nop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Epics drafts epics for the app.
func (g *Generator) Epics(ctx context.Context, t *types.Tree, count int) ([]Draft, error) {
	return g.Generate(ctx, t, types.TypeEpic, "", count)
}

// Features drafts features for an epic.
func (g *Generator) Features(ctx context.Context, t *types.Tree, epicID string, count int) ([]Draft, error) {
	return g.Generate(ctx, t, types.TypeFeature, epicID, count)
}

// UserStories drafts user stories for a feature.
func (g *Generator) UserStories(ctx context.Context, t *types.Tree, featureID string, count int) ([]Draft, error) {
	return g.Generate(ctx, t, types.TypeUserStory, featureID, count)
}

// Tasks drafts tasks for a user story.
func (g *Generator) Tasks(ctx context.Context, t *types.Tree, storyID string, count int) ([]Draft, error) {
	return g.Generate(ctx, t, types.TypeTask, storyID, count)
}

// Generate drafts count items of childType under parentID (empty for epics).
func (g *Generator) Generate(ctx context.Context, t *types.Tree, childType types.ItemType, parentID string, count int) ([]Draft, error) {
	if count <= 0 {
		count = DefaultCount
	}
	data, err := g.promptData(t, childType, parentID, count)
	if err != nil {
		return nil, err
	}
	prompt, err := g.prompts.render(childType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to render prompt: %w", err)
	}

	start := time.Now()
	reply, err := g.completer.Complete(ctx, g.prompts.System, prompt)
	if err != nil {
		return nil, err
	}
	drafts, err := ParseDrafts(reply)
	if err != nil {
		g.log.Debug().Str("reply", reply).Msg("unparseable model reply")
		return nil, err
	}
	g.log.Info().
		Str("item_type", string(childType)).
		Str("parent_id", parentID).
		Int("drafts", len(drafts)).
		Dur("elapsed", time.Since(start)).
		Msg("generated drafts")
	return drafts, nil
}

func (g *Generator) promptData(t *types.Tree, childType types.ItemType, parentID string, count int) (promptData, error) {
	data := promptData{Count: count, AppTitle: t.App.Title}
	if childType == types.TypeEpic {
		data.ParentDescription = t.App.Description
	} else {
		parentType, ok := childType.ParentType()
		if !ok {
			return data, fmt.Errorf("%w: %q", types.ErrInvalidItemType, childType)
		}
		parent, err := t.Lookup(parentType, parentID)
		if err != nil {
			return data, err
		}
		data.ParentTitle = parent.Title
		data.ParentDescription = description(t, parentType, parentID)
		data.Path = tree.Breadcrumb(t, parentType, parentID)
	}

	siblings, err := t.ChildIDs(childType, parentID)
	if err != nil {
		return data, err
	}
	for _, id := range siblings {
		if item, err := t.Lookup(childType, id); err == nil {
			data.Existing = append(data.Existing, item.Title)
		}
	}
	return data, nil
}

func description(t *types.Tree, itemType types.ItemType, id string) string {
	switch itemType {
	case types.TypeEpic:
		return t.Epics[id].Description
	case types.TypeFeature:
		return t.Features[id].Description
	case types.TypeUserStory:
		s := t.UserStories[id]
		if s.AcceptanceCriteria == "" {
			return s.Description
		}
		return s.Description + "\nAcceptance criteria: " + s.AcceptanceCriteria
	}
	return ""
}

// ParseDrafts extracts a JSON array of drafts from a model reply. Markdown
// code fences and surrounding prose are tolerated; every draft needs a title.
func ParseDrafts(reply string) ([]Draft, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON array found", ErrInvalidResponse)
	}
	var drafts []Draft
	if err := json.Unmarshal([]byte(reply[start:end+1]), &drafts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("%w: empty list", ErrInvalidResponse)
	}
	for i := range drafts {
		drafts[i].Title = strings.TrimSpace(drafts[i].Title)
		if drafts[i].Title == "" {
			return nil, fmt.Errorf("%w: draft %d has no title", ErrInvalidResponse, i+1)
		}
		drafts[i].Description = strings.TrimSpace(drafts[i].Description)
	}
	return drafts, nil
}

// Actions turns drafts into tree.Add actions appending under parentID, in
// order. New items get fresh local ids and no documentId.
func Actions(childType types.ItemType, parentID string, drafts []Draft) ([]tree.Action, error) {
	actions := make([]tree.Action, 0, len(drafts))
	for _, d := range drafts {
		base := types.NewBase(d.Title)
		base.Description = d.Description
		switch childType {
		case types.TypeEpic:
			actions = append(actions, tree.Add{Epic: &types.Epic{
				Base: base, Status: types.StatusTodo, Priority: priority(d.Priority),
			}})
		case types.TypeFeature:
			actions = append(actions, tree.Add{Feature: &types.Feature{
				Base: base, Status: types.StatusTodo, Priority: priority(d.Priority), ParentEpicID: parentID,
			}})
		case types.TypeUserStory:
			actions = append(actions, tree.Add{UserStory: &types.UserStory{
				Base: base, AcceptanceCriteria: d.AcceptanceCriteria, StoryPoints: d.StoryPoints, ParentFeatureID: parentID,
			}})
		case types.TypeTask:
			actions = append(actions, tree.Add{Task: &types.Task{
				Base: base, Status: types.StatusTodo, EstimatedHours: d.EstimatedHours, ParentUserStoryID: parentID,
			}})
		default:
			return nil, fmt.Errorf("%w: %q", types.ErrInvalidItemType, childType)
		}
	}
	return actions, nil
}

func priority(s string) types.Priority {
	switch p := types.Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case types.PriorityLow, types.PriorityMedium, types.PriorityHigh:
		return p
	}
	return types.PriorityMedium
}
