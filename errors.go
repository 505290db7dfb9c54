package fusekernel

import (
	"errors"

	"github.com/KarpelesLab/fusekernel/errno"
)

// StatusError pairs a Go error with the native status it should surface as,
// so callers that only care about "did it fail" can use errors.Is/As while
// Instance.Transact's caller can still recover the exact status to hand
// back to the host framework.
type StatusError struct {
	Status errno.Status
	msg    string
}

func (e *StatusError) Error() string { return e.msg }

// newStatusError builds a StatusError, deriving its message from status if
// none is given.
func newStatusError(status errno.Status, msg string) *StatusError {
	if msg == "" {
		msg = "fusekernel: " + status.String()
	}
	return &StatusError{Status: status, msg: msg}
}

// Sentinel errors for the non-protocol error kinds this bridge surfaces:
// validation, transport-adjacent buffer/parameter checks, resource
// exhaustion, and wait cancellation. Protocol errors (a response's error
// field) never produce one of these — they're mapped via errno.ToStatus
// straight into an InternalResponse.Status instead.
var (
	// ErrInvalidParameter is returned when a transact call's resp/out
	// buffers fail validation (malformed response header, length lying
	// about the buffer it's in).
	ErrInvalidParameter = newStatusError(errno.StatusInvalidParameter, "fusekernel: invalid transact parameters")

	// ErrBufferTooSmall is returned when out is non-empty but smaller
	// than proto.ReqSizeMin.
	ErrBufferTooSmall = newStatusError(errno.StatusBufferTooSmall, "fusekernel: output buffer smaller than ReqSizeMin")

	// ErrAccessDenied is returned once the init event has signaled its
	// terminal access-denied state (version major == -1 sentinel).
	ErrAccessDenied = newStatusError(errno.StatusAccessDenied, "fusekernel: instance failed initialization")

	// ErrCancelled is returned when the caller's context is cancelled
	// while blocked on the init event.
	ErrCancelled = newStatusError(errno.StatusCancelled, "fusekernel: wait cancelled")

	// ErrInsufficientResources is returned when constructing a context
	// or the instance itself fails to allocate what it needs.
	ErrInsufficientResources = newStatusError(errno.StatusInsufficientResources, "fusekernel: resource allocation failed")
)

// ToStatus recovers the native status carried by err, if any, defaulting to
// StatusIO for an error this package didn't produce.
func ToStatus(err error) errno.Status {
	if err == nil {
		return errno.StatusSuccess
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return errno.StatusIO
}
