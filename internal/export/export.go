// Package export writes a specification tree as JSON, YAML, CSV or Markdown
// and reads JSON or YAML documents back.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spectree/spectree/internal/types"
)

// ErrUnsupportedFormat is returned for unknown formats, and for importing
// from a write-only format.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Format names an export encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Extension is the conventional file extension, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatMarkdown:
		return "md"
	}
	return string(f)
}

// Write encodes t to w.
func Write(w io.Writer, t *types.Tree, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(t); err != nil {
			return err
		}
		return enc.Close()
	case FormatCSV:
		return writeCSV(w, t)
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(t))
		return err
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// CSVHeader is the first row of a CSV export.
var CSVHeader = []string{"type", "id", "document_id", "parent_id", "depth", "position", "title", "updated_at"}

func writeCSV(w io.Writer, t *types.Tree) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	var werr error
	t.Walk(func(item types.Item, depth int) bool {
		row := []string{
			string(item.Type),
			item.ID,
			item.DocumentID,
			item.ParentID,
			strconv.Itoa(depth),
			strconv.Itoa(item.Position),
			item.Title,
			formatTime(item.UpdatedAt),
		}
		werr = cw.Write(row)
		return werr == nil
	})
	if werr != nil {
		return werr
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339)
}

// Markdown renders t as nested headings (epics, features) and lists
// (stories, tasks).
func Markdown(t *types.Tree) string {
	var b strings.Builder
	title := t.App.Title
	if title == "" {
		title = "Specification"
	}
	fmt.Fprintf(&b, "# %s\n", title)
	if t.App.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", t.App.Description)
	}

	t.Walk(func(item types.Item, depth int) bool {
		switch item.Type {
		case types.TypeEpic:
			e := t.Epics[item.ID]
			fmt.Fprintf(&b, "\n## %s%s\n", item.Title, badges(string(e.Status), string(e.Priority)))
			if e.Description != "" {
				fmt.Fprintf(&b, "\n%s\n", e.Description)
			}
		case types.TypeFeature:
			f := t.Features[item.ID]
			fmt.Fprintf(&b, "\n### %s%s\n", item.Title, badges(string(f.Status), string(f.Priority)))
			if f.Description != "" {
				fmt.Fprintf(&b, "\n%s\n", f.Description)
			}
			if len(f.UserStoryIDs) > 0 {
				b.WriteString("\n")
			}
		case types.TypeUserStory:
			s := t.UserStories[item.ID]
			points := ""
			if s.StoryPoints > 0 {
				points = fmt.Sprintf(" (%d pts)", s.StoryPoints)
			}
			fmt.Fprintf(&b, "- **%s**%s\n", item.Title, points)
			if s.AcceptanceCriteria != "" {
				fmt.Fprintf(&b, "  - _Acceptance:_ %s\n", oneLine(s.AcceptanceCriteria))
			}
		case types.TypeTask:
			k := t.Tasks[item.ID]
			box := " "
			if k.Status == types.StatusDone {
				box = "x"
			}
			hours := ""
			if k.EstimatedHours > 0 {
				hours = " (" + strconv.FormatFloat(k.EstimatedHours, 'f', -1, 64) + "h)"
			}
			fmt.Fprintf(&b, "  - [%s] %s%s\n", box, item.Title, hours)
		}
		return true
	})
	return b.String()
}

func badges(values ...string) string {
	var parts []string
	for _, v := range values {
		if v != "" {
			parts = append(parts, "`"+v+"`")
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Read decodes a JSON or YAML document and checks it is a consistent tree.
func Read(r io.Reader, format Format) (*types.Tree, error) {
	var t types.Tree
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&t); err != nil {
			return nil, fmt.Errorf("failed to decode json: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&t); err != nil {
			return nil, fmt.Errorf("failed to decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: cannot import %q", ErrUnsupportedFormat, format)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Since returns a copy of t holding only items updated after since, plus
// their ancestors so the result is still a valid tree. Child lists are
// trimmed to the kept children.
func Since(t *types.Tree, since time.Time) *types.Tree {
	keep := make(map[types.ItemType]map[string]bool)
	for _, it := range types.AllItemTypes {
		keep[it] = make(map[string]bool)
	}

	var mark func(itemType types.ItemType, id string)
	mark = func(itemType types.ItemType, id string) {
		if id == "" || keep[itemType][id] {
			return
		}
		keep[itemType][id] = true
		item, err := t.Lookup(itemType, id)
		if err != nil {
			return
		}
		if parentType, ok := itemType.ParentType(); ok {
			mark(parentType, item.ParentID)
		}
	}
	t.Walk(func(item types.Item, _ int) bool {
		if item.UpdatedAt.After(since) {
			mark(item.Type, item.ID)
		}
		return true
	})

	out := t.Clone()
	filter := func(ids []string, itemType types.ItemType) []string {
		kept := make([]string, 0, len(ids))
		for _, id := range ids {
			if keep[itemType][id] {
				kept = append(kept, id)
			}
		}
		return kept
	}
	out.App.EpicIDs = filter(out.App.EpicIDs, types.TypeEpic)
	for id, e := range out.Epics {
		if !keep[types.TypeEpic][id] {
			delete(out.Epics, id)
			continue
		}
		e.FeatureIDs = filter(e.FeatureIDs, types.TypeFeature)
	}
	for id, f := range out.Features {
		if !keep[types.TypeFeature][id] {
			delete(out.Features, id)
			continue
		}
		f.UserStoryIDs = filter(f.UserStoryIDs, types.TypeUserStory)
	}
	for id, s := range out.UserStories {
		if !keep[types.TypeUserStory][id] {
			delete(out.UserStories, id)
			continue
		}
		s.TaskIDs = filter(s.TaskIDs, types.TypeTask)
	}
	for id := range out.Tasks {
		if !keep[types.TypeTask][id] {
			delete(out.Tasks, id)
		}
	}
	return out
}
