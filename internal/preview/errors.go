// Package preview fetches rendered document pages and page counts from the
// preview service and classifies the ways those requests fail.
package preview

import (
	"errors"
	"fmt"

	"github.com/dharsanguruparan/ShelfView/internal/model"
)

// ErrorKind classifies a failed preview request.
type ErrorKind int

const (
	// NetworkFailure is a transport-level failure.
	NetworkFailure ErrorKind = iota + 1
	// ServiceError is a non-success response from the service.
	ServiceError
	// MalformedResponse is a payload of unexpected shape.
	MalformedResponse
	// Timeout is a request that did not complete within the fetch timeout.
	Timeout
)

func (k ErrorKind) String() string {
	switch k {
	case NetworkFailure:
		return "network failure"
	case ServiceError:
		return "service error"
	case MalformedResponse:
		return "malformed response"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ErrPreviewUnavailable is the user-facing condition that network, service
// and payload failures collapse into.
var ErrPreviewUnavailable = errors.New("preview unavailable")

// Error is a classified preview failure. Err retains the triggering detail.
type Error struct {
	Kind   ErrorKind
	Target model.PreviewTarget
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("preview %s: %s: %v", e.Target, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches ErrPreviewUnavailable for every kind except Timeout.
func (e *Error) Is(target error) bool {
	return target == ErrPreviewUnavailable && e.Kind != Timeout
}

// KindOf returns the kind of a preview error, or zero when err is not one.
func KindOf(err error) ErrorKind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return 0
}
