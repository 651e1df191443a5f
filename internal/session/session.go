// Package session issues and verifies signed session tokens. A session
// wraps the Google Calendar access token obtained by the frontend's OAuth
// flow so the API never stores upstream credentials server side.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const issuer = "time-tracker"

// ErrInvalidToken is returned when a session token fails signature or
// claim validation, including expiry.
var ErrInvalidToken = errors.New("invalid session token")

// Session is the verified content of a session token.
type Session struct {
	Email       string
	AccessToken string
	ExpiresAt   time.Time
}

// Manager signs and verifies session tokens with an HMAC secret.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager creates a session manager. The secret must not be empty.
func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("session secret must not be empty")
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	return &Manager{secret: []byte(secret), ttl: ttl}, nil
}

// Issue creates a signed session token carrying the upstream access token.
func (m *Manager) Issue(email, accessToken string) (string, error) {
	if accessToken == "" {
		return "", errors.New("access token must not be empty")
	}

	now := time.Now()
	token, err := jwt.NewBuilder().
		Issuer(issuer).
		Subject(email).
		IssuedAt(now).
		Expiration(now.Add(m.ttl)).
		Claim("access_token", accessToken).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build session token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, m.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return string(signed), nil
}

// Verify parses and validates a session token and extracts the session.
func (m *Manager) Verify(tokenString string) (*Session, error) {
	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKey(jwa.HS256, m.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sess := &Session{
		Email:     token.Subject(),
		ExpiresAt: token.Expiration(),
	}

	at, ok := token.Get("access_token")
	if !ok {
		return nil, fmt.Errorf("%w: missing access_token claim", ErrInvalidToken)
	}
	atStr, ok := at.(string)
	if !ok || atStr == "" {
		return nil, fmt.Errorf("%w: malformed access_token claim", ErrInvalidToken)
	}
	sess.AccessToken = atStr

	return sess, nil
}
