package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSigner mints and verifies HS256 bearer tokens. Only the server side
// (the stub backend here, the real backend in production) holds the secret.
type TokenSigner struct {
	Secret []byte
	TTL    time.Duration
}

// Sign issues a token for the given user.
func (s TokenSigner) Sign(userID, username string, now time.Time) (string, error) {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
}

// Verify checks the signature and expiry and returns the credential.
func (s TokenSigner) Verify(token string) (Credential, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrMalformedToken
		}
		return s.Secret, nil
	})
	if err != nil || !parsed.Valid {
		return Credential{}, ErrMalformedToken
	}
	if claims.Subject == "" {
		return Credential{}, ErrMissingSubject
	}
	cred := Credential{Token: token, UserID: claims.Subject, Username: claims.Username}
	if claims.ExpiresAt != nil {
		cred.ExpiresAt = claims.ExpiresAt.Time
	}
	return cred, nil
}
