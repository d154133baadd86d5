package blobmux

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrUnknownLink reports an invocation whose source id has no registered
// link. Always surfaced to the caller, never retried.
var ErrUnknownLink = errors.New("no link registered for invocation source")

// NotFoundError reports an absent backend resource. Kind is "container" or
// "object". Existence-style operations convert this to a false result
// instead; fetch/info-style operations surface it.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s [%s] not found", e.Kind, e.Name)
}

// RangeError reports an invalid byte range. Raised before any backend call
// is made.
type RangeError struct {
	Start uint64
	End   uint64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid byte range: end (%d) must be greater than start (%d)", e.End, e.Start)
}

// KeyError is one failed key within a bulk operation.
type KeyError struct {
	Key     string
	Code    string
	Message string
}

// PartialFailureError reports a bulk delete where some keys failed. Keys
// that were already gone are not listed; the backend does not report them
// as failures.
type PartialFailureError struct {
	Container string
	Failed    []KeyError
}

func (e *PartialFailureError) Error() string {
	keys := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		keys[i] = f.Key
	}
	return fmt.Sprintf("failed to delete %d object(s) from [%s]: %s",
		len(e.Failed), e.Container, strings.Join(keys, ", "))
}

// BackendError wraps a backend service failure other than not-found.
// Transient marks failures that looked retryable (throttling, 5xx); this
// layer never retries either way, the flag only informs callers.
type BackendError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// StatusFromError classifies err for transmission across an RPC boundary
// using the standard grpc status codes, which line up closely with the
// needs of object storage.
func StatusFromError(err error) *status.Status {
	var (
		notFound *NotFoundError
		badRange *RangeError
		partial  *PartialFailureError
		backend  *BackendError
	)
	switch {
	case err == nil:
		return status.New(codes.OK, "")
	case errors.Is(err, ErrUnknownLink):
		return status.New(codes.FailedPrecondition, err.Error())
	case errors.As(err, &notFound):
		return status.New(codes.NotFound, err.Error())
	case errors.As(err, &badRange):
		return status.New(codes.InvalidArgument, err.Error())
	case errors.As(err, &partial):
		return status.New(codes.Unknown, err.Error())
	case errors.As(err, &backend):
		if backend.Transient {
			return status.New(codes.Unavailable, err.Error())
		}
		return status.New(codes.Unknown, err.Error())
	default:
		return status.New(codes.Unknown, err.Error())
	}
}
