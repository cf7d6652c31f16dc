// CLAUDE:SUMMARY User rows: insert, lookup by id/email/api key, tier and key rotation.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// User is a dashboard account.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	APIKey       string
	Tier         string
	CreatedAt    int64
	UpdatedAt    int64
}

const userColumns = `id, email, name, password_hash, api_key, subscription_tier, created_at, updated_at`

// InsertUser adds a user. Email uniqueness is enforced by the schema.
func (s *Store) InsertUser(ctx context.Context, u *User) error {
	now := time.Now().UnixMilli()
	if u.CreatedAt == 0 {
		u.CreatedAt = now
	}
	if u.UpdatedAt == 0 {
		u.UpdatedAt = now
	}
	if u.Tier == "" {
		u.Tier = "free"
	}
	_, err := s.exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.APIKey, u.Tier, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	return scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// UserByEmail retrieves a user by email. The caller normalises case.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
}

// UserByAPIKey retrieves the owner of a user API key.
func (s *Store) UserByAPIKey(ctx context.Context, key string) (*User, error) {
	return scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE api_key = ?`, key))
}

// SetUserTier changes the subscription tier.
func (s *Store) SetUserTier(ctx context.Context, id, tier string) (bool, error) {
	res, err := s.exec(ctx,
		`UPDATE users SET subscription_tier = ?, updated_at = ? WHERE id = ?`,
		tier, time.Now().UnixMilli(), id)
	if err != nil {
		return false, fmt.Errorf("store: set tier: %w", err)
	}
	return affected(res)
}

// SetUserAPIKey replaces the user's API key.
func (s *Store) SetUserAPIKey(ctx context.Context, id, key string) (bool, error) {
	res, err := s.exec(ctx,
		`UPDATE users SET api_key = ?, updated_at = ? WHERE id = ?`,
		key, time.Now().UnixMilli(), id)
	if err != nil {
		return false, fmt.Errorf("store: set user key: %w", err)
	}
	return affected(res)
}

// ListUsers returns every user, oldest first. Used by the retention sweep.
func (s *Store) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func scanUser(row scanner) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.APIKey, &u.Tier, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan user: %w", err)
	}
	return &u, nil
}
