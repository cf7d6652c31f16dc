package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/devlens/dashboard/internal/store"
	"github.com/hazyhaar/devlens/event"
	"github.com/hazyhaar/devlens/picker"
)

// Feedback statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusWontFix    = "wont_fix"
)

// Feedback priorities.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

var (
	validStatus   = map[string]bool{StatusPending: true, StatusInProgress: true, StatusResolved: true, StatusWontFix: true}
	validPriority = map[string]bool{PriorityLow: true, PriorityMedium: true, PriorityHigh: true, PriorityCritical: true}
	validConsole  = map[string]bool{event.LevelError: true, event.LevelWarn: true, event.LevelInfo: true}
)

// Errors returned by Service methods; the HTTP layer maps them to statuses.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalid        = errors.New("invalid request data")
	ErrNoProject      = errors.New("no project matches this page")
	ErrInactive       = errors.New("project is inactive")
	ErrEmailTaken     = errors.New("email already registered")
	ErrBadCredentials = errors.New("invalid email or password")
	ErrRegistration   = errors.New("registration is disabled")
)

// LimitError reports a tier quota that would be exceeded.
type LimitError struct {
	What  string // "projects" or "feedback"
	Limit int
}

func (e *LimitError) Error() string {
	if e.What == "projects" {
		return "Project limit reached. Upgrade to create more projects."
	}
	return "Monthly feedback limit reached. Upgrade to submit more feedback."
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// User is the account view returned by the API. The key is only set for
// the account owner.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Tier      string    `json:"subscriptionTier"`
	APIKey    string    `json:"apiKey,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Project is a site whose reports are grouped together.
type Project struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Domains   []string  `json:"domains"`
	LocalPath string    `json:"localPath,omitempty"`
	APIKey    string    `json:"apiKey"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProjectRef is the short project view embedded in feedback listings.
type ProjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Box is the viewport box of the element a report points at.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Feedback is a stored report as returned by the API.
type Feedback struct {
	ID                 string               `json:"id"`
	ProjectID          string               `json:"projectId"`
	UserID             string               `json:"userId"`
	Project            *ProjectRef          `json:"project,omitempty"`
	PageURL            string               `json:"pageUrl"`
	PageTitle          string               `json:"pageTitle,omitempty"`
	Description        string               `json:"description"`
	ScreenshotURL      string               `json:"screenshotUrl,omitempty"`
	ElementSelector    string               `json:"elementSelector,omitempty"`
	ElementTagName     string               `json:"elementTagName,omitempty"`
	ElementBoundingBox *Box                 `json:"elementBoundingBox,omitempty"`
	Element            *picker.Descriptor   `json:"element,omitempty"`
	ConsoleErrors      []event.ConsoleError `json:"consoleErrors"`
	BrowserInfo        event.BrowserInfo    `json:"browserInfo"`
	Status             string               `json:"status"`
	Priority           string               `json:"priority"`
	ResolutionNote     string               `json:"resolutionNote,omitempty"`
	CreatedAt          time.Time            `json:"createdAt"`
	UpdatedAt          time.Time            `json:"updatedAt"`
	ResolvedAt         *time.Time           `json:"resolvedAt"`
}

// SubmitRequest is the body of POST /api/feedback: the capture host's
// report plus the optional bounding box the browser extension sends.
type SubmitRequest struct {
	event.Feedback
	ElementBoundingBox *Box `json:"elementBoundingBox,omitempty"`
}

// FeedbackUpdate is a partial triage update. Nil fields are left alone.
type FeedbackUpdate struct {
	Status         *string `json:"status,omitempty"`
	Priority       *string `json:"priority,omitempty"`
	ResolutionNote *string `json:"resolutionNote,omitempty"`
}

// ProjectInput creates a project.
type ProjectInput struct {
	Name      string   `json:"name"`
	Domains   []string `json:"domains"`
	LocalPath string   `json:"localPath,omitempty"`
}

// ProjectUpdate is a partial project update. Nil fields are left alone.
type ProjectUpdate struct {
	Name             *string   `json:"name,omitempty"`
	Domains          *[]string `json:"domains,omitempty"`
	LocalPath        *string   `json:"localPath,omitempty"`
	IsActive         *bool     `json:"isActive,omitempty"`
	RegenerateAPIKey bool      `json:"regenerateApiKey,omitempty"`
}

// ListOptions filters feedback listings.
type ListOptions struct {
	ProjectID string
	Status    string
	Limit     int
	Offset    int
}

// ExtensionConfig is what the browser extension needs to route reports.
type ExtensionConfig struct {
	APIURL   string            `json:"apiUrl"`
	UserID   string            `json:"userId"`
	Projects []ExtensionProject `json:"projects"`
}

// ExtensionProject is one routable project.
type ExtensionProject struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Domains []string `json:"domains"`
}

func millis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func userView(u *store.User, withKey bool) *User {
	v := &User{ID: u.ID, Email: u.Email, Name: u.Name, Tier: u.Tier, CreatedAt: millis(u.CreatedAt)}
	if withKey {
		v.APIKey = u.APIKey
	}
	return v
}

func projectView(p *store.Project) *Project {
	return &Project{
		ID:        p.ID,
		UserID:    p.UserID,
		Name:      p.Name,
		Domains:   p.Domains,
		LocalPath: p.LocalPath,
		APIKey:    p.APIKey,
		IsActive:  p.IsActive,
		CreatedAt: millis(p.CreatedAt),
		UpdatedAt: millis(p.UpdatedAt),
	}
}

// feedbackView decodes the JSON columns of a stored report. Undecodable
// columns are logged and left empty rather than failing the listing.
func (svc *Service) feedbackView(f *store.Feedback, project *ProjectRef) *Feedback {
	v := &Feedback{
		ID:              f.ID,
		ProjectID:       f.ProjectID,
		UserID:          f.UserID,
		Project:         project,
		PageURL:         f.PageURL,
		PageTitle:       f.PageTitle,
		Description:     f.Description,
		ElementSelector: f.ElementSelector,
		ElementTagName:  f.ElementTagName,
		ConsoleErrors:   []event.ConsoleError{},
		Status:          f.Status,
		Priority:        f.Priority,
		ResolutionNote:  f.ResolutionNote,
		CreatedAt:       millis(f.CreatedAt),
		UpdatedAt:       millis(f.UpdatedAt),
	}
	if f.HasScreenshot {
		v.ScreenshotURL = svc.screenshotURL(f.ID)
	}
	if f.ResolvedAt != nil {
		t := millis(*f.ResolvedAt)
		v.ResolvedAt = &t
	}

	decode := func(col, raw string, dst any) {
		if raw == "" {
			return
		}
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			svc.logger.Warn("dashboard: undecodable column", "feedback", f.ID, "column", col, "error", err)
		}
	}
	decode("console_errors", f.ConsoleJSON, &v.ConsoleErrors)
	decode("browser_info", f.BrowserJSON, &v.BrowserInfo)
	if f.ElementBoxJSON != "" {
		v.ElementBoundingBox = &Box{}
		decode("element_box", f.ElementBoxJSON, v.ElementBoundingBox)
	}
	if f.ElementJSON != "" {
		v.Element = &picker.Descriptor{}
		decode("element", f.ElementJSON, v.Element)
	}
	return v
}

func (svc *Service) screenshotURL(feedbackID string) string {
	return svc.APIURL() + "/feedback/" + feedbackID + "/screenshot"
}
