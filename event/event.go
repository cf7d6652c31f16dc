// Package event defines the payloads DevLens moves between the capture
// host, its sinks, the dashboard API and the client.
package event

import (
	"time"

	"github.com/hazyhaar/devlens/picker"
)

// Envelope types.
const (
	TypeElementPicked = "element_picked"
	TypeConsoleErrors = "console_errors"
	TypeFeedback      = "feedback"
)

// Console levels recorded by the capture host.
const (
	LevelError = "error"
	LevelWarn  = "warn"
	LevelInfo  = "info"
)

// Envelope wraps one outbound event.
type Envelope struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

// New stamps an envelope with the current UTC time.
func New(typ string, data any) Envelope {
	return Envelope{Type: typ, Time: time.Now().UTC(), Data: data}
}

// ElementPicked is emitted when the user confirms a selection.
type ElementPicked struct {
	PageURL string            `json:"pageUrl"`
	Element picker.Descriptor `json:"element"`
}

// ConsoleError is one console message or uncaught exception observed on the
// page.
type ConsoleError struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Source    string    `json:"source,omitempty"`
	Line      int       `json:"line,omitempty"`
	Column    int       `json:"column,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Viewport is the visible area in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BrowserInfo describes the browser the report was captured in.
type BrowserInfo struct {
	UserAgent string   `json:"userAgent"`
	Viewport  Viewport `json:"viewport"`
	Language  string   `json:"language,omitempty"`
	Platform  string   `json:"platform,omitempty"`
}

// Feedback is a complete bug report as submitted to the dashboard.
// Screenshot is a base64 data URL.
type Feedback struct {
	ProjectID       string             `json:"projectId,omitempty"`
	PageURL         string             `json:"pageUrl"`
	PageTitle       string             `json:"pageTitle"`
	Description     string             `json:"description"`
	Screenshot      string             `json:"screenshot"`
	ElementSelector string             `json:"elementSelector,omitempty"`
	ElementTagName  string             `json:"elementTagName,omitempty"`
	Element         *picker.Descriptor `json:"element,omitempty"`
	ConsoleErrors   []ConsoleError     `json:"consoleErrors"`
	BrowserInfo     BrowserInfo        `json:"browserInfo"`
	CapturedAt      time.Time          `json:"capturedAt"`
}

// WithElement copies the selection into the report fields that identify it.
func (f *Feedback) WithElement(d picker.Descriptor) {
	f.Element = &d
	f.ElementSelector = d.XPath
	f.ElementTagName = d.TagName
}
