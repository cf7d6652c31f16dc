// CLAUDE:SUMMARY Feedback submission (validation, sanitising, project routing, quota) and triage operations.
package dashboard

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/hazyhaar/devlens/dashboard/internal/store"
	"github.com/hazyhaar/devlens/event"
	"github.com/hazyhaar/devlens/guard"
)

const (
	maxDescription   = 5000
	maxPageTitle     = 500
	maxTagName       = 50
	maxConsoleErrors = 100
	maxListLimit     = 500
)

var screenshotTypes = map[string]bool{"image/png": true, "image/jpeg": true, "image/webp": true}

// SubmitFeedback validates and stores a report for userID. keyProjectID is
// set when the caller authenticated with a project key; otherwise the
// project is the explicit req.ProjectID, or the first active project whose
// domains match the page URL.
func (svc *Service) SubmitFeedback(ctx context.Context, userID, keyProjectID string, req *SubmitRequest) (*Feedback, error) {
	if _, err := guard.PageURL(req.PageURL); err != nil {
		return nil, invalid("pageUrl: %v", err)
	}
	desc := truncateRunes(strings.TrimSpace(svc.sanitizer.Sanitize(strings.TrimSpace(req.Description))), maxDescription)
	if desc == "" {
		return nil, invalid("description is required")
	}
	shot, err := parseDataURL(req.Screenshot)
	if err != nil {
		return nil, invalid("screenshot: %v", err)
	}
	for i, ce := range req.ConsoleErrors {
		if !validConsole[ce.Type] {
			return nil, invalid("consoleErrors[%d].type %q", i, ce.Type)
		}
	}

	u, err := svc.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: submit: %w", err)
	}
	if u == nil {
		return nil, ErrNotFound
	}
	project, err := svc.resolveProject(ctx, userID, keyProjectID, req.ProjectID, req.PageURL)
	if err != nil {
		return nil, err
	}

	f := &store.Feedback{
		ID:              svc.newID(),
		ProjectID:       project.ID,
		UserID:          userID,
		PageURL:         req.PageURL,
		PageTitle:       truncateRunes(req.PageTitle, maxPageTitle),
		Description:     desc,
		ElementSelector: req.ElementSelector,
		ElementTagName:  truncateRunes(req.ElementTagName, maxTagName),
		Status:          StatusPending,
		Priority:        PriorityMedium,
	}
	box := req.ElementBoundingBox
	if req.Element != nil {
		if f.ElementSelector == "" {
			f.ElementSelector = req.Element.XPath
		}
		if f.ElementTagName == "" {
			f.ElementTagName = truncateRunes(req.Element.TagName, maxTagName)
		}
		if box == nil {
			r := req.Element.Rect
			box = &Box{X: r.Left, Y: r.Top, Width: r.Width, Height: r.Height}
		}
		f.ElementJSON = mustJSON(req.Element)
	}
	if box != nil {
		f.ElementBoxJSON = mustJSON(box)
	}
	consoleErrs := req.ConsoleErrors
	if len(consoleErrs) > maxConsoleErrors {
		consoleErrs = consoleErrs[len(consoleErrs)-maxConsoleErrors:]
	}
	if consoleErrs == nil {
		consoleErrs = []event.ConsoleError{}
	}
	f.ConsoleJSON = mustJSON(consoleErrs)
	f.BrowserJSON = mustJSON(req.BrowserInfo)

	quota := svc.limits(u.Tier).FeedbackPerMonth
	if err := svc.store.InsertFeedback(ctx, f, shot, quota, svc.monthStart().UnixMilli()); err != nil {
		if errors.Is(err, store.ErrLimitReached) {
			return nil, &LimitError{What: "feedback", Limit: quota}
		}
		return nil, fmt.Errorf("dashboard: submit: %w", err)
	}

	svc.logger.Info("dashboard: feedback submitted",
		"feedback_id", f.ID, "project_id", project.ID, "console_errors", len(consoleErrs))
	return svc.feedbackView(f, &ProjectRef{ID: project.ID, Name: project.Name}), nil
}

func (svc *Service) resolveProject(ctx context.Context, userID, keyProjectID, explicit, pageURL string) (*store.Project, error) {
	id := keyProjectID
	if id == "" {
		id = explicit
	}
	if id != "" {
		p, err := svc.store.GetProject(ctx, userID, id)
		if err != nil {
			return nil, fmt.Errorf("dashboard: resolve project: %w", err)
		}
		if p == nil {
			return nil, ErrNotFound
		}
		if !p.IsActive {
			return nil, ErrInactive
		}
		return p, nil
	}

	res, ok, err := svc.MatchProject(ctx, userID, pageURL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoProject
	}
	svc.logger.Debug("dashboard: routed by domain", "project_id", res.ProjectID, "pattern", res.Pattern, "rule", res.RuleName)
	p, err := svc.store.GetProject(ctx, userID, res.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: resolve project: %w", err)
	}
	if p == nil {
		return nil, ErrNoProject
	}
	return p, nil
}

// ListFeedback returns the user's reports, newest first. Limit defaults to
// 50 and is capped at 500.
func (svc *Service) ListFeedback(ctx context.Context, userID string, opts ListOptions) ([]*Feedback, error) {
	if opts.Status != "" && !validStatus[opts.Status] {
		return nil, invalid("status %q", opts.Status)
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if opts.Limit > maxListLimit {
		opts.Limit = maxListLimit
	}
	list, err := svc.store.ListFeedback(ctx, store.FeedbackFilter{
		UserID:    userID,
		ProjectID: opts.ProjectID,
		Status:    opts.Status,
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("dashboard: list feedback: %w", err)
	}
	refs, err := svc.projectRefs(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*Feedback, 0, len(list))
	for _, f := range list {
		out = append(out, svc.feedbackView(f, refs[f.ProjectID]))
	}
	return out, nil
}

// GetFeedback returns one of the user's reports.
func (svc *Service) GetFeedback(ctx context.Context, userID, id string) (*Feedback, error) {
	f, err := svc.store.GetFeedback(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("dashboard: get feedback: %w", err)
	}
	if f == nil {
		return nil, ErrNotFound
	}
	refs, err := svc.projectRefs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return svc.feedbackView(f, refs[f.ProjectID]), nil
}

// UpdateFeedback applies a triage update. Moving to resolved stamps the
// resolution time; moving away from resolved clears it.
func (svc *Service) UpdateFeedback(ctx context.Context, userID, id string, up FeedbackUpdate) (*Feedback, error) {
	if up.Status != nil && !validStatus[*up.Status] {
		return nil, invalid("status %q", *up.Status)
	}
	if up.Priority != nil && !validPriority[*up.Priority] {
		return nil, invalid("priority %q", *up.Priority)
	}

	f, err := svc.store.GetFeedback(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("dashboard: update feedback: %w", err)
	}
	if f == nil {
		return nil, ErrNotFound
	}
	if up.Status != nil {
		switch {
		case *up.Status == StatusResolved:
			now := svc.now().UnixMilli()
			f.ResolvedAt = &now
		case f.Status == StatusResolved:
			f.ResolvedAt = nil
		}
		f.Status = *up.Status
	}
	if up.Priority != nil {
		f.Priority = *up.Priority
	}
	if up.ResolutionNote != nil {
		f.ResolutionNote = truncateRunes(strings.TrimSpace(*up.ResolutionNote), maxDescription)
	}

	ok, err := svc.store.UpdateFeedback(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("dashboard: update feedback: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return svc.GetFeedback(ctx, userID, id)
}

// ResolveFeedback marks a report resolved with an optional note.
func (svc *Service) ResolveFeedback(ctx context.Context, userID, id, note string) (*Feedback, error) {
	status := StatusResolved
	up := FeedbackUpdate{Status: &status}
	if note != "" {
		up.ResolutionNote = &note
	}
	return svc.UpdateFeedback(ctx, userID, id, up)
}

// DeleteFeedback removes a report and its screenshot.
func (svc *Service) DeleteFeedback(ctx context.Context, userID, id string) error {
	ok, err := svc.store.DeleteFeedback(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("dashboard: delete feedback: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Screenshot returns the image attached to a report.
func (svc *Service) Screenshot(ctx context.Context, userID, feedbackID string) (contentType string, data []byte, err error) {
	shot, err := svc.store.GetScreenshot(ctx, userID, feedbackID)
	if err != nil {
		return "", nil, fmt.Errorf("dashboard: screenshot: %w", err)
	}
	if shot == nil {
		return "", nil, ErrNotFound
	}
	return shot.ContentType, shot.Data, nil
}

func (svc *Service) projectRefs(ctx context.Context, userID string) (map[string]*ProjectRef, error) {
	list, err := svc.store.ListProjects(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: project names: %w", err)
	}
	refs := make(map[string]*ProjectRef, len(list))
	for _, p := range list {
		refs[p.ID] = &ProjectRef{ID: p.ID, Name: p.Name}
	}
	return refs, nil
}

// parseDataURL decodes a base64 image data URL. The declared type must be
// an accepted image type and agree with the sniffed content.
func parseDataURL(s string) (*store.Screenshot, error) {
	if s == "" {
		return nil, errors.New("required")
	}
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, errors.New("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, errors.New("malformed data URL")
	}
	ctype, enc, _ := strings.Cut(meta, ";")
	ctype = strings.ToLower(ctype)
	if enc != "base64" {
		return nil, errors.New("data URL must be base64")
	}
	if !screenshotTypes[ctype] {
		return nil, fmt.Errorf("unsupported type %q", ctype)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if sniffed := http.DetectContentType(data); sniffed != ctype {
		return nil, fmt.Errorf("content is %s, declared %s", sniffed, ctype)
	}
	return &store.Screenshot{ContentType: ctype, Data: data}, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
