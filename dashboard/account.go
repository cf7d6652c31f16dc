// CLAUDE:SUMMARY Account registration and login (bcrypt), user key rotation, tier changes.
package dashboard

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/devlens/dashboard/internal/store"
	"github.com/hazyhaar/devlens/idgen"
)

const minPasswordLen = 8

// Register creates an account and returns it with its API key.
func (svc *Service) Register(ctx context.Context, email, password, name string) (*User, error) {
	if svc.cfg.DisableRegistration {
		return nil, ErrRegistration
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return nil, invalid("email: %v", err)
	}
	email = strings.ToLower(addr.Address)
	if len(password) < minPasswordLen {
		return nil, invalid("password must be at least %d characters", minPasswordLen)
	}

	existing, err := svc.store.UserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("dashboard: register: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("dashboard: hash password: %w", err)
	}
	u := &store.User{
		ID:           svc.newID(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		APIKey:       idgen.UserKey(),
		Tier:         TierFree,
	}
	if err := svc.store.InsertUser(ctx, u); err != nil {
		return nil, fmt.Errorf("dashboard: register: %w", err)
	}
	svc.logger.Info("dashboard: user registered", "user_id", u.ID)
	return userView(u, true), nil
}

// Login checks credentials and returns the account with its API key.
func (svc *Service) Login(ctx context.Context, email, password string) (*User, error) {
	u, err := svc.store.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("dashboard: login: %w", err)
	}
	if u == nil {
		return nil, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	return userView(u, true), nil
}

// Me returns the caller's account.
func (svc *Service) Me(ctx context.Context, userID string) (*User, error) {
	u, err := svc.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("dashboard: get user: %w", err)
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return userView(u, true), nil
}

// RotateUserKey replaces the caller's API key. The old key stops working
// immediately.
func (svc *Service) RotateUserKey(ctx context.Context, userID string) (*User, error) {
	key := idgen.UserKey()
	ok, err := svc.store.SetUserAPIKey(ctx, userID, key)
	if err != nil {
		return nil, fmt.Errorf("dashboard: rotate key: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	svc.logger.Info("dashboard: user key rotated", "user_id", userID)
	return svc.Me(ctx, userID)
}

// SetTier changes the subscription tier of the account with the given email.
func (svc *Service) SetTier(ctx context.Context, email, tier string) error {
	if _, ok := svc.cfg.Tiers[tier]; !ok {
		return invalid("unknown tier %q", tier)
	}
	u, err := svc.store.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return fmt.Errorf("dashboard: set tier: %w", err)
	}
	if u == nil {
		return ErrNotFound
	}
	if _, err := svc.store.SetUserTier(ctx, u.ID, tier); err != nil {
		return fmt.Errorf("dashboard: set tier: %w", err)
	}
	svc.logger.Info("dashboard: tier changed", "user_id", u.ID, "tier", tier)
	return nil
}
