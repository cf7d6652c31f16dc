// CLAUDE:SUMMARY Project CRUD scoped by owner, limit-checked insert, and project API key lookup.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/devlens/dbopen"
)

// Project groups feedback for one site. Domains are the routing patterns
// matched against a report's page URL.
type Project struct {
	ID        string
	UserID    string
	Name      string
	Domains   []string
	LocalPath string
	APIKey    string
	IsActive  bool
	CreatedAt int64
	UpdatedAt int64
}

const projectColumns = `id, user_id, name, domains, local_path, api_key, is_active, created_at, updated_at`

// InsertProject adds a project for p.UserID unless the user already owns
// limit projects, in which case ErrLimitReached is returned. limit <= 0
// disables the check. The count and the insert run in one transaction.
func (s *Store) InsertProject(ctx context.Context, p *Project, limit int) error {
	now := time.Now().UnixMilli()
	if p.CreatedAt == 0 {
		p.CreatedAt = now
	}
	if p.UpdatedAt == 0 {
		p.UpdatedAt = now
	}
	if p.Domains == nil {
		p.Domains = []string{}
	}
	domains, err := json.Marshal(p.Domains)
	if err != nil {
		return fmt.Errorf("store: encode domains: %w", err)
	}

	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if limit > 0 {
			var n int
			if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM projects WHERE user_id = ?`), p.UserID).Scan(&n); err != nil {
				return fmt.Errorf("store: count projects: %w", err)
			}
			if n >= limit {
				return ErrLimitReached
			}
		}
		_, err := tx.ExecContext(ctx, s.q(
			`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			p.ID, p.UserID, p.Name, string(domains), p.LocalPath, p.APIKey, boolInt(p.IsActive),
			p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("store: insert project: %w", err)
		}
		return nil
	})
}

// GetProject retrieves a project owned by userID.
func (s *Store) GetProject(ctx context.Context, userID, id string) (*Project, error) {
	return scanProject(s.queryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ? AND user_id = ?`, id, userID))
}

// ProjectByAPIKey retrieves the project a submission key belongs to.
func (s *Store) ProjectByAPIKey(ctx context.Context, key string) (*Project, error) {
	return scanProject(s.queryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE api_key = ?`, key))
}

// ListProjects returns the user's projects in creation order. Routing
// precedence follows this order.
func (s *Store) ListProjects(ctx context.Context, userID string) ([]*Project, error) {
	rows, err := s.query(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject writes name, domains, local path, key and active flag back.
// It reports false when the project does not exist for p.UserID.
func (s *Store) UpdateProject(ctx context.Context, p *Project) (bool, error) {
	if p.Domains == nil {
		p.Domains = []string{}
	}
	domains, err := json.Marshal(p.Domains)
	if err != nil {
		return false, fmt.Errorf("store: encode domains: %w", err)
	}
	p.UpdatedAt = time.Now().UnixMilli()
	res, err := s.exec(ctx,
		`UPDATE projects SET name = ?, domains = ?, local_path = ?, api_key = ?, is_active = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		p.Name, string(domains), p.LocalPath, p.APIKey, boolInt(p.IsActive), p.UpdatedAt,
		p.ID, p.UserID)
	if err != nil {
		return false, fmt.Errorf("store: update project: %w", err)
	}
	return affected(res)
}

// DeleteProject removes a project and, by cascade, its feedback.
func (s *Store) DeleteProject(ctx context.Context, userID, id string) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM projects WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("store: delete project: %w", err)
	}
	return affected(res)
}

func scanProject(row scanner) (*Project, error) {
	var (
		p       Project
		domains string
		active  int
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &domains, &p.LocalPath, &p.APIKey, &active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan project: %w", err)
	}
	p.IsActive = active != 0
	if err := json.Unmarshal([]byte(domains), &p.Domains); err != nil {
		return nil, fmt.Errorf("store: decode domains of %s: %w", p.ID, err)
	}
	if p.Domains == nil {
		p.Domains = []string{}
	}
	return &p, nil
}
