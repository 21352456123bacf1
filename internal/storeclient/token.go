package storeclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StaticToken serves a fixed bearer token
type StaticToken string

// Token implements TokenProvider
func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", errors.New("no token configured")
	}
	return string(t), nil
}

// Invalidate is a no-op; a static token cannot be refreshed
func (StaticToken) Invalidate() {}

// SignedToken mints short-lived HS256 tokens for Subject.
// Only for tooling that already holds the server's signing secret (local
// servers, tests, operators). It is not a login flow: a client without the
// secret uses StaticToken with a token issued by the identity provider.
type SignedToken struct {
	Secret  string
	Subject string
	TTL     time.Duration

	mu      sync.Mutex
	token   string
	expires time.Time
	now     func() time.Time
}

// NewSignedToken returns a provider issuing tokens valid for ttl
func NewSignedToken(secret, subject string, ttl time.Duration) *SignedToken {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedToken{Secret: secret, Subject: subject, TTL: ttl, now: time.Now}
}

// Token implements TokenProvider
func (s *SignedToken) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Add(SessionRefreshBuffer).Before(s.expires) {
		return s.token, nil
	}
	if s.Secret == "" || s.Subject == "" {
		return "", errors.New("signed token requires secret and subject")
	}

	exp := now.Add(s.TTL)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   s.Subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := tok.SignedString([]byte(s.Secret))
	if err != nil {
		return "", err
	}

	s.token = signed
	s.expires = exp
	return signed, nil
}

// Invalidate forces the next call to mint a new token
func (s *SignedToken) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}
