// Package errno maps FUSE wire errno values to the host's native status
// taxonomy. The mapping is a pure function: it holds no state and performs
// no I/O.
package errno

import "golang.org/x/sys/unix"

// Status stands in for the host framework's native status code (NTSTATUS in
// the original driver this component bridges). The zero value is success.
type Status int32

// Status values the transact engine can produce. Named to describe the
// condition, not the originating errno, since several errnos can map to the
// same status.
const (
	StatusSuccess Status = 0
	StatusIO      Status = -iota - 1
	StatusAccessDenied
	StatusObjectNameNotFound
	StatusObjectNameCollision
	StatusNotADirectory
	StatusFileIsADirectory
	StatusInvalidParameter
	StatusBufferTooSmall
	StatusNoSuchDevice
	StatusNotImplemented
	StatusCancelled
	StatusIoTimeout
	StatusInsufficientResources
	StatusDeviceNotReady
)

// ToStatus maps a FUSE response's errno field to a Status. fuseErrno is
// always non-negative on the wire (the sign convention is applied by the
// daemon before it is put on the wire, matching FUSE_PROTO_RSP.error).
// Zero means success.
func ToStatus(fuseErrno int32) Status {
	if fuseErrno == 0 {
		return StatusSuccess
	}

	switch unix.Errno(fuseErrno) {
	case unix.ENOENT:
		return StatusObjectNameNotFound
	case unix.EEXIST:
		return StatusObjectNameCollision
	case unix.ENOTDIR:
		return StatusNotADirectory
	case unix.EISDIR:
		return StatusFileIsADirectory
	case unix.EACCES, unix.EPERM:
		return StatusAccessDenied
	case unix.EINVAL:
		return StatusInvalidParameter
	case unix.ENOSYS:
		return StatusNotImplemented
	case unix.ENODEV:
		return StatusNoSuchDevice
	case unix.EINTR:
		return StatusCancelled
	case unix.ETIMEDOUT:
		return StatusIoTimeout
	case unix.ENOMEM:
		return StatusInsufficientResources
	default:
		return StatusIO
	}
}

// String renders a Status for logging and test failure messages.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusAccessDenied:
		return "ACCESS_DENIED"
	case StatusObjectNameNotFound:
		return "OBJECT_NAME_NOT_FOUND"
	case StatusObjectNameCollision:
		return "OBJECT_NAME_COLLISION"
	case StatusNotADirectory:
		return "NOT_A_DIRECTORY"
	case StatusFileIsADirectory:
		return "FILE_IS_A_DIRECTORY"
	case StatusInvalidParameter:
		return "INVALID_PARAMETER"
	case StatusBufferTooSmall:
		return "BUFFER_TOO_SMALL"
	case StatusNoSuchDevice:
		return "NO_SUCH_DEVICE"
	case StatusNotImplemented:
		return "NOT_IMPLEMENTED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusIoTimeout:
		return "IO_TIMEOUT"
	case StatusInsufficientResources:
		return "INSUFFICIENT_RESOURCES"
	case StatusDeviceNotReady:
		return "DEVICE_NOT_READY"
	default:
		return "IO_ERROR"
	}
}

// Success reports whether the status represents a successful operation.
func (s Status) Success() bool {
	return s == StatusSuccess
}
