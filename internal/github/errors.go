package github

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned when the requested path does not exist.
var ErrNotFound = errors.New("not found")

// RemoteError is a non-2xx answer from the API other than 404.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("github: %s (HTTP %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("github: HTTP %d", e.StatusCode)
}

// Conflict reports whether the write was rejected because the supplied sha
// no longer matches the file. Such writes can be retried after re-reading.
func (e *RemoteError) Conflict() bool {
	return e.StatusCode == http.StatusConflict || e.StatusCode == http.StatusUnprocessableEntity
}

// ParseError is returned when a file's content is not the expected JSON.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsConflict reports whether err is a RemoteError caused by a stale sha.
func IsConflict(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Conflict()
}
