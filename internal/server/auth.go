package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Authenticator accepts either a static API key in X-API-Key or an HS256
// bearer token signed with the shared secret. With neither configured,
// every request is rejected.
type Authenticator struct {
	apiKey string
	secret []byte
}

// NewAuthenticator creates an Authenticator. Either argument may be empty.
func NewAuthenticator(apiKey, jwtSecret string) *Authenticator {
	a := &Authenticator{apiKey: apiKey}
	if jwtSecret != "" {
		a.secret = []byte(jwtSecret)
	}
	return a
}

// IssueToken signs a bearer token for subject. ttl 0 issues a token
// without expiry.
func (a *Authenticator) IssueToken(subject string, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", fmt.Errorf("issue token: no jwt secret configured")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Check validates the request's credentials.
func (a *Authenticator) Check(r *http.Request) error {
	if key := r.Header.Get("X-API-Key"); key != "" {
		if a.apiKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(a.apiKey)) == 1 {
			return nil
		}
		return ErrInvalidCredentials
	}

	raw := bearerToken(r)
	if raw == "" {
		return ErrMissingCredentials
	}
	if len(a.secret) == 0 {
		return ErrInvalidCredentials
	}
	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return ErrInvalidCredentials
	}
	return nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
