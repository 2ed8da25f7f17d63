// Package types defines the core data structures of the specification tree.
//
// The tree has four levels below the App: epics, features, user stories and
// tasks. Parents own an ordered list of child ids; children point back at their
// parent through a parent-reference field. Both sides must agree (see Validate).
package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist in the tree.
	ErrNotFound = errors.New("not found")

	// ErrInvalidItemType is returned for an unknown item type string.
	ErrInvalidItemType = errors.New("invalid item type")

	// ErrInconsistent is returned when parent/child references disagree.
	ErrInconsistent = errors.New("inconsistent tree")
)

// ItemType identifies one level of the tree.
type ItemType string

const (
	TypeEpic      ItemType = "epic"
	TypeFeature   ItemType = "feature"
	TypeUserStory ItemType = "userStory"
	TypeTask      ItemType = "task"
)

// AllItemTypes lists the levels top-down.
var AllItemTypes = []ItemType{TypeEpic, TypeFeature, TypeUserStory, TypeTask}

// ParseItemType accepts the canonical spelling plus a few CLI-friendly aliases.
func ParseItemType(s string) (ItemType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "epic", "epics":
		return TypeEpic, nil
	case "feature", "features":
		return TypeFeature, nil
	case "userstory", "user_story", "user-story", "story", "stories", "userstories":
		return TypeUserStory, nil
	case "task", "tasks":
		return TypeTask, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidItemType, s)
}

// IsValid reports whether t is one of the four known levels.
func (t ItemType) IsValid() bool {
	switch t {
	case TypeEpic, TypeFeature, TypeUserStory, TypeTask:
		return true
	}
	return false
}

// ParentType returns the level above t. Epics have no parent type.
func (t ItemType) ParentType() (ItemType, bool) {
	switch t {
	case TypeFeature:
		return TypeEpic, true
	case TypeUserStory:
		return TypeFeature, true
	case TypeTask:
		return TypeUserStory, true
	}
	return "", false
}

// ChildType returns the level below t. Tasks are leaves.
func (t ItemType) ChildType() (ItemType, bool) {
	switch t {
	case TypeEpic:
		return TypeFeature, true
	case TypeFeature:
		return TypeUserStory, true
	case TypeUserStory:
		return TypeTask, true
	}
	return "", false
}

// Label is the human-readable name of the level.
func (t ItemType) Label() string {
	switch t {
	case TypeEpic:
		return "Epic"
	case TypeFeature:
		return "Feature"
	case TypeUserStory:
		return "User Story"
	case TypeTask:
		return "Task"
	}
	return string(t)
}

// Status is the workflow state shared by epics, features and tasks.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Priority ranks epics and features.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Base holds the fields every entity carries.
type Base struct {
	ID          string    `json:"id" yaml:"id"`
	DocumentID  string    `json:"documentId,omitempty" yaml:"documentId,omitempty"` // durable backend id
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Position    int       `json:"position" yaml:"position"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// App is the root of one specification tree.
type App struct {
	Base    `yaml:",inline"`
	EpicIDs []string `json:"epicIds" yaml:"epicIds"`
}

// Epic is a top-level unit of work.
type Epic struct {
	Base       `yaml:",inline"`
	Status     Status   `json:"status,omitempty" yaml:"status,omitempty"`
	Priority   Priority `json:"priority,omitempty" yaml:"priority,omitempty"`
	FeatureIDs []string `json:"featureIds" yaml:"featureIds"`
}

// Feature belongs to exactly one epic.
type Feature struct {
	Base         `yaml:",inline"`
	Status       Status   `json:"status,omitempty" yaml:"status,omitempty"`
	Priority     Priority `json:"priority,omitempty" yaml:"priority,omitempty"`
	ParentEpicID string   `json:"parentEpicId" yaml:"parentEpicId"`
	UserStoryIDs []string `json:"userStoryIds" yaml:"userStoryIds"`
}

// UserStory belongs to exactly one feature.
type UserStory struct {
	Base               `yaml:",inline"`
	AcceptanceCriteria string   `json:"acceptanceCriteria,omitempty" yaml:"acceptanceCriteria,omitempty"`
	StoryPoints        int      `json:"storyPoints,omitempty" yaml:"storyPoints,omitempty"`
	ParentFeatureID    string   `json:"parentFeatureId" yaml:"parentFeatureId"`
	TaskIDs            []string `json:"taskIds" yaml:"taskIds"`
}

// Task is a leaf; it belongs to exactly one user story.
type Task struct {
	Base              `yaml:",inline"`
	Status            Status  `json:"status,omitempty" yaml:"status,omitempty"`
	EstimatedHours    float64 `json:"estimatedHours,omitempty" yaml:"estimatedHours,omitempty"`
	ParentUserStoryID string  `json:"parentUserStoryId" yaml:"parentUserStoryId"`
}

// Item is a level-agnostic view of one entity.
type Item struct {
	Type       ItemType
	ID         string
	DocumentID string
	Title      string
	ParentID   string // empty for epics
	Position   int
	UpdatedAt  time.Time
}

// NewID returns a fresh local id.
func NewID() string {
	return uuid.NewString()
}

// NewBase initializes the common fields for a new entity.
func NewBase(title string) Base {
	now := time.Now().UTC()
	return Base{
		ID:        NewID(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
