// CLAUDE:SUMMARY HTTP client for the DevLens API: list, read, triage and submit bug reports.
// Package client talks to the DevLens dashboard API on behalf of a coding
// assistant or a capture host.
//
//	c, err := client.FromEnv()
//	list, err := c.ListFeedback(ctx, client.ListOptions{Status: client.StatusPending})
//	fmt.Println(client.FormatList(list))
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/devlens/event"
	"github.com/hazyhaar/devlens/idgen"
	"github.com/hazyhaar/devlens/picker"
)

// DefaultAPIURL is the hosted DevLens API.
const DefaultAPIURL = "https://devlens.vercel.app/api"

// Report statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusWontFix    = "wont_fix"
)

// ErrNotFound is returned when the API answers 404.
var ErrNotFound = errors.New("client: not found")

// Config configures a Client.
type Config struct {
	// APIKey is a user key (devlens_...) or a project key (proj_...).
	// Project keys can only submit.
	APIKey string
	// ProjectID scopes listings to one project.
	ProjectID string
	// APIURL defaults to DefaultAPIURL.
	APIURL  string
	Timeout time.Duration
}

func (c *Config) defaults() {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Client is a DevLens API client. It is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a client. APIKey is required.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("client: API key is required")
	}
	cfg.defaults()
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}, nil
}

// FromEnv creates a client from DEVLENS_API_KEY, DEVLENS_PROJECT_ID and
// DEVLENS_API_URL.
func FromEnv() (*Client, error) {
	key := os.Getenv("DEVLENS_API_KEY")
	if key == "" {
		return nil, errors.New("DEVLENS_API_KEY environment variable is required. Get your API key from the DevLens dashboard.")
	}
	return New(Config{
		APIKey:    key,
		ProjectID: os.Getenv("DEVLENS_PROJECT_ID"),
		APIURL:    os.Getenv("DEVLENS_API_URL"),
	})
}

// Feedback is a bug report as returned by the API.
type Feedback struct {
	ID              string               `json:"id"`
	ProjectID       string               `json:"projectId"`
	Project         *ProjectRef          `json:"project,omitempty"`
	PageURL         string               `json:"pageUrl"`
	PageTitle       string               `json:"pageTitle,omitempty"`
	Description     string               `json:"description"`
	ScreenshotURL   string               `json:"screenshotUrl,omitempty"`
	ElementSelector string               `json:"elementSelector,omitempty"`
	ElementTagName  string               `json:"elementTagName,omitempty"`
	Element         *picker.Descriptor   `json:"element,omitempty"`
	ConsoleErrors   []event.ConsoleError `json:"consoleErrors"`
	BrowserInfo     event.BrowserInfo    `json:"browserInfo"`
	Status          string               `json:"status"`
	Priority        string               `json:"priority"`
	ResolutionNote  string               `json:"resolutionNote,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
	ResolvedAt      *time.Time           `json:"resolvedAt,omitempty"`
}

// ProjectRef names the project a report belongs to.
type ProjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Project is one of the user's projects.
type Project struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Domains  []string `json:"domains"`
	IsActive bool     `json:"isActive"`
}

// ExtensionConfig is the routing table served to browser extensions.
type ExtensionConfig struct {
	APIURL   string    `json:"apiUrl"`
	UserID   string    `json:"userId"`
	Projects []Project `json:"projects"`
}

// ListOptions filters ListFeedback. Zero values are omitted.
type ListOptions struct {
	ProjectID string
	Status    string
	Limit     int
	Offset    int
}

// Update changes a report. Nil fields are left alone.
type Update struct {
	Status         *string `json:"status,omitempty"`
	Priority       *string `json:"priority,omitempty"`
	ResolutionNote *string `json:"resolutionNote,omitempty"`
}

// ListFeedback lists reports, newest first. ProjectID defaults to the
// client's configured project.
func (c *Client) ListFeedback(ctx context.Context, opts ListOptions) ([]Feedback, error) {
	q := url.Values{}
	if opts.ProjectID == "" {
		opts.ProjectID = c.cfg.ProjectID
	}
	if opts.ProjectID != "" {
		q.Set("projectId", opts.ProjectID)
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	path := "/feedback"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Feedbacks []Feedback `json:"feedbacks"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("client: list feedback: %w", err)
	}
	return resp.Feedbacks, nil
}

// GetFeedback fetches one report.
func (c *Client) GetFeedback(ctx context.Context, id string) (*Feedback, error) {
	var resp struct {
		Feedback *Feedback `json:"feedback"`
	}
	if err := c.do(ctx, http.MethodGet, "/feedback/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, fmt.Errorf("client: get feedback %s: %w", id, err)
	}
	return resp.Feedback, nil
}

// UpdateFeedback applies a partial update and returns the new state.
func (c *Client) UpdateFeedback(ctx context.Context, id string, u Update) (*Feedback, error) {
	var resp struct {
		Feedback *Feedback `json:"feedback"`
	}
	if err := c.do(ctx, http.MethodPut, "/feedback/"+url.PathEscape(id), u, &resp); err != nil {
		return nil, fmt.Errorf("client: update feedback %s: %w", id, err)
	}
	return resp.Feedback, nil
}

// ResolveFeedback marks a report resolved. An empty note leaves the
// existing note.
func (c *Client) ResolveFeedback(ctx context.Context, id, note string) (*Feedback, error) {
	status := StatusResolved
	u := Update{Status: &status}
	if note != "" {
		u.ResolutionNote = &note
	}
	return c.UpdateFeedback(ctx, id, u)
}

// SubmitFeedback files a new report. With a project key the report lands in
// that project; with a user key the server routes it by page URL unless
// f.ProjectID is set.
func (c *Client) SubmitFeedback(ctx context.Context, f event.Feedback) (*Feedback, error) {
	if f.ProjectID == "" && !c.projectKey() {
		f.ProjectID = c.cfg.ProjectID
	}
	var resp struct {
		Feedback *Feedback `json:"feedback"`
	}
	if err := c.do(ctx, http.MethodPost, "/feedback", f, &resp); err != nil {
		return nil, fmt.Errorf("client: submit feedback: %w", err)
	}
	return resp.Feedback, nil
}

// ListProjects lists the user's projects.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var resp struct {
		Projects []Project `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, "/projects", nil, &resp); err != nil {
		return nil, fmt.Errorf("client: list projects: %w", err)
	}
	return resp.Projects, nil
}

// ExtensionConfig fetches the user's routing table.
func (c *Client) ExtensionConfig(ctx context.Context) (*ExtensionConfig, error) {
	var cfg ExtensionConfig
	if err := c.do(ctx, http.MethodGet, "/extension/config", nil, &cfg); err != nil {
		return nil, fmt.Errorf("client: extension config: %w", err)
	}
	return &cfg, nil
}

func (c *Client) projectKey() bool {
	return strings.HasPrefix(c.cfg.APIKey, idgen.ProjectKeyPrefix+"_")
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.projectKey() {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiError builds an error from the server's {"error": ...} body, falling
// back to the status code.
func apiError(resp *http.Response) error {
	var e struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
	msg := e.Error
	if msg == "" {
		msg = "HTTP " + strconv.Itoa(resp.StatusCode)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	return errors.New(msg)
}
