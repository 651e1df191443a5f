package googlecal

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// CredentialProvider supplies the bearer token used against the calendar
// provider. Implementations must return ErrCredentialExpired (possibly
// wrapped) when the credential is known to be expired, so callers can
// distinguish re-authentication from retry.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token, useful for tests and one-shot CLI
// invocations.
type StaticToken string

func (t StaticToken) Token(ctx context.Context) (string, error) {
	if t == "" {
		return "", ErrCredentialExpired
	}
	return string(t), nil
}

// TokenSourceCredential adapts an oauth2.TokenSource. The source handles
// refresh internally; a refresh failure is reported as an expired
// credential since the user has to go through the auth flow again.
type TokenSourceCredential struct {
	src oauth2.TokenSource
}

// NewTokenSourceCredential wraps an oauth2 token source.
func NewTokenSourceCredential(src oauth2.TokenSource) *TokenSourceCredential {
	return &TokenSourceCredential{src: src}
}

func (c *TokenSourceCredential) Token(ctx context.Context) (string, error) {
	tok, err := c.src.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCredentialExpired, err)
	}
	if !tok.Valid() {
		return "", ErrCredentialExpired
	}
	return tok.AccessToken, nil
}
