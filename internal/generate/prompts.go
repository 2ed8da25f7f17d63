package generate

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/BurntSushi/toml"

	"github.com/spectree/spectree/internal/types"
)

const defaultSystemPrompt = `You are a product analyst helping a team break a software product down into a specification tree: epics, features, user stories and tasks. You answer with JSON only.`

// Default prompt templates, one per generated level.
var defaultTemplates = map[types.ItemType]string{
	types.TypeEpic: `Propose {{.Count}} epics for the application "{{.AppTitle}}".
{{if .ParentDescription}}
About the application:
{{.ParentDescription}}
{{end}}{{if .Existing}}
Existing epics (do not repeat them):
{{range .Existing}}- {{.}}
{{end}}{{end}}
Return a JSON array. Each element: {"title": string, "description": string, "priority": "low"|"medium"|"high"}.`,

	types.TypeFeature: `Propose {{.Count}} features for the epic "{{.ParentTitle}}" of the application "{{.AppTitle}}".
{{if .ParentDescription}}
Epic description:
{{.ParentDescription}}
{{end}}{{if .Existing}}
Existing features (do not repeat them):
{{range .Existing}}- {{.}}
{{end}}{{end}}
Return a JSON array. Each element: {"title": string, "description": string, "priority": "low"|"medium"|"high"}.`,

	types.TypeUserStory: `Write {{.Count}} user stories for the feature "{{.ParentTitle}}" ({{.Path}}).
{{if .ParentDescription}}
Feature description:
{{.ParentDescription}}
{{end}}{{if .Existing}}
Existing stories (do not repeat them):
{{range .Existing}}- {{.}}
{{end}}{{end}}
Phrase each title as "As a <role>, I want <goal> so that <benefit>".
Return a JSON array. Each element: {"title": string, "description": string, "acceptanceCriteria": string, "storyPoints": number}.`,

	types.TypeTask: `Break the user story "{{.ParentTitle}}" ({{.Path}}) into {{.Count}} implementation tasks.
{{if .ParentDescription}}
Story details:
{{.ParentDescription}}
{{end}}{{if .Existing}}
Existing tasks (do not repeat them):
{{range .Existing}}- {{.}}
{{end}}{{end}}
Return a JSON array. Each element: {"title": string, "description": string, "estimatedHours": number}.`,
}

// promptFile is the on-disk shape of a prompt override file:
//
//	system = "..."
//	[templates]
//	epic = "..."
//	userStory = "..."
type promptFile struct {
	System    string            `toml:"system"`
	Templates map[string]string `toml:"templates"`
}

// Prompts holds the parsed templates for every level.
type Prompts struct {
	System    string
	templates map[types.ItemType]*template.Template
}

// promptData is what templates can reference.
type promptData struct {
	Count             int
	AppTitle          string
	ParentTitle       string
	ParentDescription string
	Path              string
	Existing          []string
}

// DefaultPrompts returns the built-in prompts.
func DefaultPrompts() *Prompts {
	p, err := buildPrompts(defaultSystemPrompt, nil)
	if err != nil {
		panic(fmt.Sprintf("built-in prompt templates: %v", err))
	}
	return p
}

// LoadPrompts reads overrides from a TOML file. Levels the file does not
// mention keep their built-in template. An empty path returns the defaults.
func LoadPrompts(path string) (*Prompts, error) {
	if path == "" {
		return DefaultPrompts(), nil
	}
	var f promptFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("failed to read prompts %s: %w", path, err)
	}
	overrides := make(map[types.ItemType]string, len(f.Templates))
	for key, text := range f.Templates {
		itemType, err := types.ParseItemType(key)
		if err != nil {
			return nil, fmt.Errorf("prompts %s: %w", path, err)
		}
		overrides[itemType] = text
	}
	system := f.System
	if system == "" {
		system = defaultSystemPrompt
	}
	return buildPrompts(system, overrides)
}

func buildPrompts(system string, overrides map[types.ItemType]string) (*Prompts, error) {
	p := &Prompts{System: system, templates: make(map[types.ItemType]*template.Template)}
	for _, itemType := range types.AllItemTypes {
		text, ok := overrides[itemType]
		if !ok {
			text = defaultTemplates[itemType]
		}
		tmpl, err := template.New(string(itemType)).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", itemType, err)
		}
		p.templates[itemType] = tmpl
	}
	return p, nil
}

func (p *Prompts) render(itemType types.ItemType, data promptData) (string, error) {
	tmpl, ok := p.templates[itemType]
	if !ok {
		return "", fmt.Errorf("%w: no template for %q", types.ErrInvalidItemType, itemType)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
