// Package auth authenticates DevLens API callers. Three credentials are
// accepted, checked in this order:
//
//   - X-API-Key: a project key (proj_...), for the extension's submissions
//   - Authorization: Bearer with a user API key (devlens_...)
//   - a session JWT, from the Bearer header or the session cookie
//
// The resolved identity is stored with kit.WithUserID / kit.WithProjectID.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hazyhaar/devlens/idgen"
	"github.com/hazyhaar/devlens/kit"
	"github.com/hazyhaar/devlens/shield"
)

// KeyLookup resolves API keys. Unknown keys yield empty ids and a nil error.
type KeyLookup interface {
	UserIDByKey(ctx context.Context, key string) (string, error)
	ProjectByKey(ctx context.Context, key string) (projectID, userID string, err error)
}

// Middleware resolves the caller identity. Missing or invalid credentials
// are not an error here; RequireUser enforces.
func Middleware(secret []byte, keys KeyLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := shield.GetLogger(ctx)

			if k := r.Header.Get("X-API-Key"); k != "" && idgen.ValidKey(k) {
				projectID, userID, err := keys.ProjectByKey(ctx, k)
				if err != nil {
					log.Error("auth: project key lookup", "error", err)
				} else if projectID != "" {
					ctx = kit.WithProjectID(kit.WithUserID(ctx, userID), projectID)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			bearer := ""
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				bearer = strings.TrimSpace(h[len("Bearer "):])
			}

			if bearer != "" && idgen.ValidKey(bearer) {
				userID, err := keys.UserIDByKey(ctx, bearer)
				if err != nil {
					log.Error("auth: user key lookup", "error", err)
				} else if userID != "" {
					next.ServeHTTP(w, r.WithContext(kit.WithUserID(ctx, userID)))
					return
				}
			}

			token := bearer
			if token == "" || idgen.ValidKey(token) {
				token = ""
				if c, err := r.Cookie(CookieName); err == nil {
					token = c.Value
				}
			}
			if token != "" && len(secret) > 0 {
				if claims, err := ValidateToken(secret, token); err == nil {
					ctx = kit.WithUserID(ctx, claims.UserID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser answers 401 unless Middleware resolved a user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if kit.GetUserID(r.Context()) == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
