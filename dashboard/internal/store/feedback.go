// CLAUDE:SUMMARY Feedback rows: quota-checked insert with screenshot, filtered listing, status updates, retention purge.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/devlens/dbopen"
)

// Feedback is one stored report. JSON columns are kept encoded; the
// service layer decodes them.
type Feedback struct {
	ID              string
	ProjectID       string
	UserID          string
	PageURL         string
	PageTitle       string
	Description     string
	ElementSelector string
	ElementTagName  string
	ElementBoxJSON  string
	ElementJSON     string
	ConsoleJSON     string
	BrowserJSON     string
	Status          string
	Priority        string
	ResolutionNote  string
	HasScreenshot   bool
	CreatedAt       int64
	UpdatedAt       int64
	ResolvedAt      *int64
}

// Screenshot is the image attached to a report.
type Screenshot struct {
	FeedbackID  string
	ContentType string
	Data        []byte
}

// FeedbackFilter selects feedback of one user. Empty fields do not filter.
type FeedbackFilter struct {
	UserID    string
	ProjectID string
	Status    string
	Limit     int
	Offset    int
}

const feedbackColumns = `id, project_id, user_id, page_url, page_title, description,
	element_selector, element_tag_name, element_box, element, console_errors, browser_info,
	status, priority, resolution_note,
	(SELECT COUNT(*) FROM screenshots s WHERE s.feedback_id = feedbacks.id),
	created_at, updated_at, resolved_at`

// InsertFeedback stores f and its optional screenshot in one transaction.
// When quota > 0 and the user already has quota reports created at or after
// since, ErrLimitReached is returned and nothing is written.
func (s *Store) InsertFeedback(ctx context.Context, f *Feedback, shot *Screenshot, quota int, since int64) error {
	now := time.Now().UnixMilli()
	if f.CreatedAt == 0 {
		f.CreatedAt = now
	}
	if f.UpdatedAt == 0 {
		f.UpdatedAt = now
	}
	if f.Status == "" {
		f.Status = "pending"
	}
	if f.Priority == "" {
		f.Priority = "medium"
	}
	if f.ConsoleJSON == "" {
		f.ConsoleJSON = "[]"
	}
	if f.BrowserJSON == "" {
		f.BrowserJSON = "{}"
	}

	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if quota > 0 {
			var n int
			err := tx.QueryRowContext(ctx, s.q(
				`SELECT COUNT(*) FROM feedbacks WHERE user_id = ? AND created_at >= ?`),
				f.UserID, since).Scan(&n)
			if err != nil {
				return fmt.Errorf("store: count feedback: %w", err)
			}
			if n >= quota {
				return ErrLimitReached
			}
		}

		_, err := tx.ExecContext(ctx, s.q(
			`INSERT INTO feedbacks (id, project_id, user_id, page_url, page_title, description,
			element_selector, element_tag_name, element_box, element, console_errors, browser_info,
			status, priority, resolution_note, created_at, updated_at, resolved_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			f.ID, f.ProjectID, f.UserID, f.PageURL, f.PageTitle, f.Description,
			f.ElementSelector, f.ElementTagName, f.ElementBoxJSON, f.ElementJSON, f.ConsoleJSON, f.BrowserJSON,
			f.Status, f.Priority, f.ResolutionNote, f.CreatedAt, f.UpdatedAt, f.ResolvedAt,
		)
		if err != nil {
			return fmt.Errorf("store: insert feedback: %w", err)
		}

		if shot != nil && len(shot.Data) > 0 {
			_, err := tx.ExecContext(ctx, s.q(
				`INSERT INTO screenshots (feedback_id, content_type, data) VALUES (?, ?, ?)`),
				f.ID, shot.ContentType, shot.Data)
			if err != nil {
				return fmt.Errorf("store: insert screenshot: %w", err)
			}
			f.HasScreenshot = true
		}
		return nil
	})
}

// GetFeedback retrieves a report owned by userID.
func (s *Store) GetFeedback(ctx context.Context, userID, id string) (*Feedback, error) {
	return scanFeedback(s.queryRow(ctx,
		`SELECT `+feedbackColumns+` FROM feedbacks WHERE id = ? AND user_id = ?`, id, userID))
}

// ListFeedback returns matching reports, newest first.
func (s *Store) ListFeedback(ctx context.Context, f FeedbackFilter) ([]*Feedback, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{f.UserID}
	)
	if f.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	args = append(args, f.Limit, f.Offset)

	rows, err := s.query(ctx,
		`SELECT `+feedbackColumns+` FROM feedbacks WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list feedback: %w", err)
	}
	defer rows.Close()

	var out []*Feedback
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

// CountFeedbackSince counts the user's reports created at or after since.
func (s *Store) CountFeedbackSince(ctx context.Context, userID string, since int64) (int, error) {
	var n int
	err := s.queryRow(ctx,
		`SELECT COUNT(*) FROM feedbacks WHERE user_id = ? AND created_at >= ?`, userID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count feedback: %w", err)
	}
	return n, nil
}

// UpdateFeedback writes the triage fields of f back.
func (s *Store) UpdateFeedback(ctx context.Context, f *Feedback) (bool, error) {
	f.UpdatedAt = time.Now().UnixMilli()
	res, err := s.exec(ctx,
		`UPDATE feedbacks SET status = ?, priority = ?, resolution_note = ?, resolved_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		f.Status, f.Priority, f.ResolutionNote, f.ResolvedAt, f.UpdatedAt, f.ID, f.UserID)
	if err != nil {
		return false, fmt.Errorf("store: update feedback: %w", err)
	}
	return affected(res)
}

// DeleteFeedback removes a report and its screenshot.
func (s *Store) DeleteFeedback(ctx context.Context, userID, id string) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM feedbacks WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("store: delete feedback: %w", err)
	}
	return affected(res)
}

// PurgeFeedbackBefore deletes the user's reports created before cutoff and
// returns how many were removed.
func (s *Store) PurgeFeedbackBefore(ctx context.Context, userID string, cutoff int64) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM feedbacks WHERE user_id = ? AND created_at < ?`, userID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: purge feedback: %w", err)
	}
	return res.RowsAffected()
}

// GetScreenshot retrieves the screenshot of a report owned by userID.
func (s *Store) GetScreenshot(ctx context.Context, userID, feedbackID string) (*Screenshot, error) {
	var shot Screenshot
	err := s.queryRow(ctx,
		`SELECT s.feedback_id, s.content_type, s.data FROM screenshots s
		JOIN feedbacks f ON f.id = s.feedback_id
		WHERE s.feedback_id = ? AND f.user_id = ?`, feedbackID, userID,
	).Scan(&shot.FeedbackID, &shot.ContentType, &shot.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get screenshot: %w", err)
	}
	return &shot, nil
}

func scanFeedback(row scanner) (*Feedback, error) {
	var (
		f        Feedback
		shots    int
		resolved sql.NullInt64
	)
	err := row.Scan(&f.ID, &f.ProjectID, &f.UserID, &f.PageURL, &f.PageTitle, &f.Description,
		&f.ElementSelector, &f.ElementTagName, &f.ElementBoxJSON, &f.ElementJSON, &f.ConsoleJSON, &f.BrowserJSON,
		&f.Status, &f.Priority, &f.ResolutionNote, &shots,
		&f.CreatedAt, &f.UpdatedAt, &resolved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan feedback: %w", err)
	}
	f.HasScreenshot = shots > 0
	if resolved.Valid {
		v := resolved.Int64
		f.ResolvedAt = &v
	}
	return &f, nil
}
