// CLAUDE:SUMMARY Project CRUD with tier limits, domain normalisation, routing audit, extension config.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hazyhaar/devlens/dashboard/internal/store"
	"github.com/hazyhaar/devlens/domainmatch"
	"github.com/hazyhaar/devlens/idgen"
)

const maxProjectName = 100

// CreateProject adds a project for userID, enforcing the tier's project limit.
func (svc *Service) CreateProject(ctx context.Context, userID string, in ProjectInput) (*Project, error) {
	name := strings.TrimSpace(in.Name)
	if err := checkProjectName(name); err != nil {
		return nil, err
	}
	u, err := svc.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: create project: %w", err)
	}
	if u == nil {
		return nil, ErrNotFound
	}

	limit := svc.limits(u.Tier).Projects
	p := &store.Project{
		ID:        svc.newID(),
		UserID:    userID,
		Name:      name,
		Domains:   cleanDomains(in.Domains),
		LocalPath: strings.TrimSpace(in.LocalPath),
		APIKey:    idgen.ProjectKey(),
		IsActive:  true,
	}
	if err := svc.store.InsertProject(ctx, p, limit); err != nil {
		if errors.Is(err, store.ErrLimitReached) {
			return nil, &LimitError{What: "projects", Limit: limit}
		}
		return nil, fmt.Errorf("dashboard: create project: %w", err)
	}
	svc.logger.Info("dashboard: project created", "user_id", userID, "project_id", p.ID)
	return projectView(p), nil
}

// ListProjects returns the user's projects in routing order.
func (svc *Service) ListProjects(ctx context.Context, userID string) ([]*Project, error) {
	list, err := svc.store.ListProjects(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: list projects: %w", err)
	}
	out := make([]*Project, 0, len(list))
	for _, p := range list {
		out = append(out, projectView(p))
	}
	return out, nil
}

// GetProject returns one of the user's projects.
func (svc *Service) GetProject(ctx context.Context, userID, id string) (*Project, error) {
	p, err := svc.store.GetProject(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("dashboard: get project: %w", err)
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return projectView(p), nil
}

// UpdateProject applies a partial update. RegenerateAPIKey issues a new
// submission key and revokes the old one.
func (svc *Service) UpdateProject(ctx context.Context, userID, id string, up ProjectUpdate) (*Project, error) {
	p, err := svc.store.GetProject(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("dashboard: update project: %w", err)
	}
	if p == nil {
		return nil, ErrNotFound
	}
	if up.Name != nil {
		name := strings.TrimSpace(*up.Name)
		if err := checkProjectName(name); err != nil {
			return nil, err
		}
		p.Name = name
	}
	if up.Domains != nil {
		p.Domains = cleanDomains(*up.Domains)
	}
	if up.LocalPath != nil {
		p.LocalPath = strings.TrimSpace(*up.LocalPath)
	}
	if up.IsActive != nil {
		p.IsActive = *up.IsActive
	}
	if up.RegenerateAPIKey {
		p.APIKey = idgen.ProjectKey()
	}

	ok, err := svc.store.UpdateProject(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("dashboard: update project: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return projectView(p), nil
}

// DeleteProject removes a project and all its feedback.
func (svc *Service) DeleteProject(ctx context.Context, userID, id string) error {
	ok, err := svc.store.DeleteProject(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("dashboard: delete project: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	svc.logger.Info("dashboard: project deleted", "user_id", userID, "project_id", id)
	return nil
}

// RoutingWarnings lists the domain patterns of the user's projects that can
// never win routing because an earlier project's pattern matches first.
func (svc *Service) RoutingWarnings(ctx context.Context, userID string) ([]domainmatch.Shadow, error) {
	list, err := svc.store.ListProjects(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: routing warnings: %w", err)
	}
	return domainmatch.Audit(routable(list)), nil
}

// MatchProject explains which of the user's active projects a page URL
// routes to.
func (svc *Service) MatchProject(ctx context.Context, userID, pageURL string) (domainmatch.Result, bool, error) {
	list, err := svc.store.ListProjects(ctx, userID)
	if err != nil {
		return domainmatch.Result{}, false, fmt.Errorf("dashboard: match project: %w", err)
	}
	res, ok := domainmatch.Explain(pageURL, routable(list))
	return res, ok, nil
}

// ExtensionConfig returns the routing table the browser extension uses.
// Inactive projects are left out.
func (svc *Service) ExtensionConfig(ctx context.Context, userID string) (*ExtensionConfig, error) {
	list, err := svc.store.ListProjects(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: extension config: %w", err)
	}
	cfg := &ExtensionConfig{APIURL: svc.APIURL(), UserID: userID, Projects: []ExtensionProject{}}
	for _, p := range list {
		if !p.IsActive {
			continue
		}
		cfg.Projects = append(cfg.Projects, ExtensionProject{ID: p.ID, Name: p.Name, Domains: p.Domains})
	}
	return cfg, nil
}

// routable converts active projects to the router's input, keeping order.
func routable(list []*store.Project) []domainmatch.Project {
	out := make([]domainmatch.Project, 0, len(list))
	for _, p := range list {
		if p.IsActive {
			out = append(out, domainmatch.Project{ID: p.ID, Domains: p.Domains})
		}
	}
	return out
}

func checkProjectName(name string) error {
	if n := utf8.RuneCountInString(name); n < 1 || n > maxProjectName {
		return invalid("name must be 1 to %d characters", maxProjectName)
	}
	return nil
}

// cleanDomains trims and lowercases patterns and drops duplicates, keeping
// the first occurrence so precedence is unchanged. The router treats "" and
// "*." as matching every host, so they are not stored.
func cleanDomains(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, d := range in {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" || d == "*." || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}
