package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/spectree/spectree/internal/tree"
	"github.com/spectree/spectree/internal/types"
)

// ErrCancelled is returned when the user aborts an interactive prompt.
var ErrCancelled = errors.New("cancelled")

// ErrNoCandidates is returned by PickParent when there is nothing to pick.
var ErrNoCandidates = errors.New("no potential parents")

// parentChoices turns parent candidates into select options. The current
// parent is labelled and offered first so Enter keeps the item where it is.
func parentChoices(candidates []tree.ParentOption) []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(candidates))
	var current []huh.Option[string]
	for _, c := range candidates {
		label := c.Path
		if label == "" {
			label = c.Title
		}
		if c.IsCurrent {
			current = append(current, huh.NewOption(label+" (current)", c.ID))
			continue
		}
		opts = append(opts, huh.NewOption(label, c.ID))
	}
	return append(current, opts...)
}

// PickParent asks the user to choose a destination parent for an item of
// itemType and returns its local id.
func PickParent(ctx context.Context, itemType types.ItemType, candidates []tree.ParentOption) (string, error) {
	if len(candidates) == 0 {
		return "", ErrNoCandidates
	}
	parentType, _ := itemType.ParentType()
	var picked string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Move %s to which %s?", strings.ToLower(itemType.Label()), strings.ToLower(parentType.Label()))).
				Options(parentChoices(candidates)...).
				Height(min(len(candidates)+2, 15)).
				Value(&picked),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", ErrCancelled
		}
		return "", fmt.Errorf("parent picker: %w", err)
	}
	return picked, nil
}

// ItemInput is what the add form collects.
type ItemInput struct {
	Title       string
	Description string
	Priority    string
}

// AskItem prompts for a new item's title, description and (for epics and
// features) priority.
func AskItem(ctx context.Context, itemType types.ItemType) (ItemInput, error) {
	in := ItemInput{Priority: string(types.PriorityMedium)}
	fields := []huh.Field{
		huh.NewInput().
			Title("Title").
			Description(itemType.Label() + " title (required)").
			Value(&in.Title).
			Validate(validateTitle),
		huh.NewText().
			Title("Description").
			CharLimit(5000).
			Value(&in.Description),
	}
	if itemType == types.TypeEpic || itemType == types.TypeFeature {
		fields = append(fields, huh.NewSelect[string]().
			Title("Priority").
			Options(
				huh.NewOption("High", string(types.PriorityHigh)),
				huh.NewOption("Medium (default)", string(types.PriorityMedium)),
				huh.NewOption("Low", string(types.PriorityLow)),
			).
			Value(&in.Priority))
	}
	if err := huh.NewForm(huh.NewGroup(fields...)).RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ItemInput{}, ErrCancelled
		}
		return ItemInput{}, fmt.Errorf("item form: %w", err)
	}
	in.Title = strings.TrimSpace(in.Title)
	return in, nil
}

func validateTitle(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("title is required")
	}
	if len(s) > 500 {
		return fmt.Errorf("title must be 500 characters or less")
	}
	return nil
}
