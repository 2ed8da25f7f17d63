package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/spectree/spectree/internal/types"
)

// TreeOptions controls RenderTree.
type TreeOptions struct {
	ShowIDs bool // append the local id to each line
	// MaxDepth limits output to that many levels below the app; 0 means all.
	MaxDepth int
}

// RenderTree writes t as an indented tree, app title first.
func RenderTree(w io.Writer, t *types.Tree, opts TreeOptions) error {
	var b strings.Builder
	b.WriteString(CategoryStyle.Render(t.App.Title))
	b.WriteByte('\n')
	if len(t.App.EpicIDs) == 0 {
		b.WriteString(MutedStyle.Render("(no epics)"))
		b.WriteByte('\n')
	}
	renderLevel(&b, t, types.TypeEpic, t.App.EpicIDs, "", 1, opts)
	_, err := io.WriteString(w, b.String())
	return err
}

func renderLevel(b *strings.Builder, t *types.Tree, itemType types.ItemType, ids []string, prefix string, depth int, opts TreeOptions) {
	if opts.MaxDepth > 0 && depth > opts.MaxDepth {
		return
	}
	for i, id := range ids {
		last := i == len(ids)-1
		branch, next := TreeBranch, TreePipe
		if last {
			branch, next = TreeLast, TreeIndent
		}
		b.WriteString(MutedStyle.Render(prefix + branch))
		b.WriteString(itemLine(t, itemType, id, opts))
		b.WriteByte('\n')

		childType, ok := itemType.ChildType()
		if !ok {
			continue
		}
		children, err := t.ChildIDs(childType, id)
		if err != nil {
			continue
		}
		renderLevel(b, t, childType, children, prefix+next, depth+1, opts)
	}
}

func itemLine(t *types.Tree, itemType types.ItemType, id string, opts TreeOptions) string {
	parts := []string{RenderLevel(itemType)}
	switch itemType {
	case types.TypeEpic:
		e, ok := t.Epics[id]
		if !ok {
			return missingLine(itemType, id)
		}
		parts = append(parts, e.Title, RenderPriority(e.Priority), RenderStatus(e.Status))
	case types.TypeFeature:
		f, ok := t.Features[id]
		if !ok {
			return missingLine(itemType, id)
		}
		parts = append(parts, f.Title, RenderPriority(f.Priority), RenderStatus(f.Status))
	case types.TypeUserStory:
		s, ok := t.UserStories[id]
		if !ok {
			return missingLine(itemType, id)
		}
		parts = append(parts, s.Title)
		if s.StoryPoints > 0 {
			parts = append(parts, MutedStyle.Render(fmt.Sprintf("%d pts", s.StoryPoints)))
		}
	case types.TypeTask:
		task, ok := t.Tasks[id]
		if !ok {
			return missingLine(itemType, id)
		}
		parts = append(parts, task.Title, RenderStatus(task.Status))
		if task.EstimatedHours > 0 {
			parts = append(parts, MutedStyle.Render(fmt.Sprintf("%gh", task.EstimatedHours)))
		}
	}
	if opts.ShowIDs {
		parts = append(parts, MutedStyle.Render("("+id+")"))
	}
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func missingLine(itemType types.ItemType, id string) string {
	return RenderLevel(itemType) + " " + FailStyle.Render(IconFail+" missing "+id)
}
