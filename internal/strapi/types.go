package strapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spectree/spectree/internal/types"
)

// APIError is a non-2xx response from the CMS.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string // error.message from the Strapi error envelope, if any
	Body       string
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	e := &APIError{Method: method, Path: path, StatusCode: status, Body: strings.TrimSpace(string(body))}
	var env errorResponse
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		e.Message = env.Error.Message
	}
	return e
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Body
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("cms %s %s: %s (status %d)", e.Method, e.Path, msg, e.StatusCode)
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsNotFound reports whether the CMS answered 404.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

type errorResponse struct {
	Error *struct {
		Status  int    `json:"status"`
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
}

type pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

type listResponse struct {
	Data []entity `json:"data"`
	Meta struct {
		Pagination pagination `json:"pagination"`
	} `json:"meta"`
}

type singleResponse struct {
	Data entity `json:"data"`
}

// relation is a populated to-one relation. Only documentId is requested.
type relation struct {
	DocumentID string `json:"documentId"`
}

// entity is the union of every collection's attributes as the CMS returns them.
type entity struct {
	ID                 int       `json:"id"`
	DocumentID         string    `json:"documentId"`
	Name               string    `json:"name,omitempty"` // apps
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	Position           int       `json:"position"`
	Status             string    `json:"status"`
	Priority           string    `json:"priority"`
	AcceptanceCriteria string    `json:"acceptanceCriteria"`
	StoryPoints        int       `json:"storyPoints"`
	EstimatedHours     float64   `json:"estimatedHours"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`

	App       *relation `json:"app"`
	Epic      *relation `json:"epic"`
	Feature   *relation `json:"feature"`
	UserStory *relation `json:"user_story"`
}

func (e entity) parentDocumentID(itemType types.ItemType) string {
	var rel *relation
	switch itemType {
	case types.TypeEpic:
		rel = e.App
	case types.TypeFeature:
		rel = e.Epic
	case types.TypeUserStory:
		rel = e.Feature
	case types.TypeTask:
		rel = e.UserStory
	}
	if rel == nil {
		return ""
	}
	return rel.DocumentID
}

// base maps the shared attributes. Entities loaded from the CMS use their
// documentId as local id.
func (e entity) base() types.Base {
	title := e.Title
	if title == "" {
		title = e.Name
	}
	return types.Base{
		ID:          e.DocumentID,
		DocumentID:  e.DocumentID,
		Title:       title,
		Description: e.Description,
		Position:    e.Position,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// AppSummary is one row of ListApps.
type AppSummary struct {
	DocumentID string    `json:"documentId"`
	Name       string    `json:"name"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// collection is the REST collection name for each level.
func collection(itemType types.ItemType) (string, error) {
	switch itemType {
	case types.TypeEpic:
		return "epics", nil
	case types.TypeFeature:
		return "features", nil
	case types.TypeUserStory:
		return "user-stories", nil
	case types.TypeTask:
		return "tasks", nil
	}
	return "", fmt.Errorf("%w: %q", types.ErrInvalidItemType, itemType)
}

// parentField is the relation attribute that points at the parent.
func parentField(itemType types.ItemType) string {
	switch itemType {
	case types.TypeEpic:
		return "app"
	case types.TypeFeature:
		return "epic"
	case types.TypeUserStory:
		return "feature"
	case types.TypeTask:
		return "user_story"
	}
	return ""
}
