package googlecal

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrCredentialExpired is returned for 401-class upstream responses. The
// caller's recovery is re-authentication, not retry, so it is kept
// distinct from every other failure.
var ErrCredentialExpired = errors.New("calendar credential expired")

// ErrTooManyPages is returned when a calendar keeps handing out
// continuation tokens past the configured ceiling. It guards against an
// upstream token loop starving the aggregate fetch.
var ErrTooManyPages = errors.New("calendar pagination exceeded page ceiling")

// UpstreamError is a non-401 non-2xx response from the calendar provider.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("calendar upstream returned %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the failure is worth retrying with backoff.
func (e *UpstreamError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}
