package proto

// Protocol version constants.
const (
	FuseKernelVersion      = 7
	FuseKernelMinorVersion = 41 // Latest as of Linux 6.12

	// MinSupportedMinor is the minimum minor version this bridge supports.
	MinSupportedMinor = 26
)

// Default values used when filling FUSE_INIT. A real deployment would
// negotiate these against the specific daemon it bridges to; left at their
// conservative zero defaults here (see DESIGN.md).
const (
	DefaultMaxReadahead = 0
	DefaultInitFlags    = 0
)
