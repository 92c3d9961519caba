// Package security owns the bearer credential for a client session. The
// token is threaded explicitly through every component that needs it; there
// is no ambient process-wide storage.
package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformedToken is returned when the bearer token cannot be decoded.
	ErrMalformedToken = errors.New("security: malformed bearer token")
	// ErrMissingSubject is returned when the token carries no user id.
	ErrMissingSubject = errors.New("security: token has no subject claim")
)

// Claims are the token claims waxtrade issues and reads.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Credential is a parsed bearer token. The client decodes it without
// verifying the signature; only the server holds the key and verifies.
type Credential struct {
	Token     string
	UserID    string
	Username  string
	ExpiresAt time.Time
}

// ParseCredential decodes a bearer token into a Credential.
func ParseCredential(token string) (Credential, error) {
	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return Credential{}, ErrMalformedToken
	}
	if claims.Subject == "" {
		return Credential{}, ErrMissingSubject
	}
	cred := Credential{
		Token:    token,
		UserID:   claims.Subject,
		Username: claims.Username,
	}
	if claims.ExpiresAt != nil {
		cred.ExpiresAt = claims.ExpiresAt.Time
	}
	return cred, nil
}

// Valid reports whether the credential can still be presented at the given
// instant. Tokens without an expiry never go stale client-side.
func (c Credential) Valid(now time.Time) bool {
	if c.Token == "" || c.UserID == "" {
		return false
	}
	if c.ExpiresAt.IsZero() {
		return true
	}
	return now.Before(c.ExpiresAt)
}
