package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRateLimited reports a 403/429 response. Callers may retry later.
	ErrRateLimited = errors.New("rate limited or forbidden")
	// ErrNotFound reports a 404 response. The repository, branch or object
	// does not exist.
	ErrNotFound = errors.New("not found")
)

// StatusError is a non-success HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap maps well-known status codes onto the package sentinels.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusForbidden, http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}

// Temporary reports whether a retry of the same request could succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout
}

// RemoteError wraps a failure to resolve the remote tree. It is fatal for a
// sync run.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }
