package backend

import (
	"errors"
	"fmt"
)

// ErrGone marks a temporal fetch that found the entity deleted
// server-side. Callers apply it as a delete, not as a failure.
var ErrGone = errors.New("entity gone")

// RequestError is the transient class: connectivity loss, timeouts and
// 5xx responses. The work is not consumed; the backend redelivers the
// event on a later heartbeat because it was never acknowledged.
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *RequestError) Unwrap() error { return e.Err }

// ValidationError is the permanent class: the backend rejected the
// payload itself. Retrying the same bytes cannot succeed, so the
// uploader counts these toward abandonment.
type ValidationError struct {
	Code    int
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation rejected (%d): %s", e.Code, e.Message)
}

// SubmitFailure is an upload the backend reported as failed in the
// response body even though the HTTP exchange itself succeeded. It is
// retried like a transient failure.
type SubmitFailure struct {
	HTTPStatus int
	Message    string
}

func (e *SubmitFailure) Error() string {
	return fmt.Sprintf("backend reported failure (http %d): %s", e.HTTPStatus, e.Message)
}

// IsRetryable reports whether err belongs to the transient class.
func IsRetryable(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}

// IsPermanent reports whether err belongs to the permanent
// (validation) class.
func IsPermanent(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
