package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the payload of a DevLens dashboard session token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Tier   string `json:"tier,omitempty"`
}
