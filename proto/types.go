// Package proto contains the FUSE wire protocol structures and the
// stateless encode/decode routines used by the transact engine. These
// structures must match the kernel's fuse.h layout exactly for binary
// compatibility with a real FUSE daemon; only the opcodes this bridge
// actually speaks (INIT, LOOKUP, GETATTR, OPEN, OPENDIR, FORGET,
// BATCH_FORGET) are represented.
package proto

// InHeader is the header for all FUSE requests from the kernel side to the
// daemon. Size: 40 bytes.
type InHeader struct {
	Len     uint32 // Total message length including header
	Opcode  uint32 // Operation code
	Unique  uint64 // Request ID for matching responses
	NodeID  uint64 // Inode number (0 for some operations)
	Uid     uint32 // User ID of calling process
	Gid     uint32 // Group ID of calling process
	Pid     uint32 // Process ID of calling process
	Padding uint32
}

// InHeaderSize is the size of InHeader in bytes.
const InHeaderSize = 40

// OutHeader is the header for all FUSE responses from the daemon.
// Size: 16 bytes.
type OutHeader struct {
	Len    uint32 // Total message length including header
	Error  int32  // Error code (0 for success, positive errno on the wire)
	Unique uint64 // Request ID from InHeader
}

// OutHeaderSize is the size of OutHeader in bytes.
const OutHeaderSize = 16

// RspHeaderSize is the minimum size of a well-formed response: just the
// header, no payload.
const RspHeaderSize = OutHeaderSize

// Attr represents file attributes in the FUSE wire format. Size: 88 bytes.
type Attr struct {
	Ino       uint64
	Size      uint64
	Blocks    uint64
	Atime     uint64
	Mtime     uint64
	Ctime     uint64
	AtimeNsec uint32
	MtimeNsec uint32
	CtimeNsec uint32
	Mode      uint32
	Nlink     uint32
	Uid       uint32
	Gid       uint32
	Rdev      uint32
	Blksize   uint32
	Flags     uint32
}

// AttrSize is the size of Attr in bytes.
const AttrSize = 88

// EntryOut is the response payload for FUSE_LOOKUP. Size: 128 bytes.
type EntryOut struct {
	NodeID         uint64
	Generation     uint64
	EntryValid     uint64
	AttrValid      uint64
	EntryValidNsec uint32
	AttrValidNsec  uint32
	Attr           Attr
}

// EntryOutSize is the size of EntryOut in bytes.
const EntryOutSize = 40 + AttrSize

// AttrOut is the response payload for FUSE_GETATTR. Size: 104 bytes.
type AttrOut struct {
	AttrValid     uint64
	AttrValidNsec uint32
	Dummy         uint32
	Attr          Attr
}

// AttrOutSize is the size of AttrOut in bytes.
const AttrOutSize = 16 + AttrSize

// GetAttrIn is the request payload for FUSE_GETATTR. Size: 16 bytes.
type GetAttrIn struct {
	Flags uint32
	Dummy uint32
	Fh    uint64
}

// GetAttrInSize is the size of GetAttrIn in bytes.
const GetAttrInSize = 16

// GetattrFhValid marks GetAttrIn.Fh as carrying a valid file handle.
const GetattrFhValid uint32 = 1 << 0

// OpenIn is the request payload for FUSE_OPEN and FUSE_OPENDIR. Size: 8 bytes.
type OpenIn struct {
	Flags     uint32
	OpenFlags uint32
}

// OpenInSize is the size of OpenIn in bytes.
const OpenInSize = 8

// OpenOut is the response payload for FUSE_OPEN and FUSE_OPENDIR. Size: 16 bytes.
type OpenOut struct {
	Fh        uint64
	OpenFlags uint32
	Padding   uint32
}

// OpenOutSize is the size of OpenOut in bytes.
const OpenOutSize = 16

// ForgetIn is the request payload for FUSE_FORGET. Size: 8 bytes.
type ForgetIn struct {
	Nlookup uint64
}

// ForgetInSize is the size of ForgetIn in bytes.
const ForgetInSize = 8

// BatchForgetIn is the fixed part of the request payload for
// FUSE_BATCH_FORGET, followed by Count ForgetOne entries.
type BatchForgetIn struct {
	Count uint32
	Dummy uint32
}

// BatchForgetInSize is the size of BatchForgetIn in bytes, excluding entries.
const BatchForgetInSize = 8

// ForgetOne is one entry appended after BatchForgetIn. Size: 16 bytes.
type ForgetOne struct {
	NodeID  uint64
	Nlookup uint64
}

// ForgetOneSize is the size of ForgetOne in bytes.
const ForgetOneSize = 16

// InitIn is the request payload for FUSE_INIT (the fields this bridge
// writes; the trailing fields newer minors define are not sent).
type InitIn struct {
	Major        uint32
	Minor        uint32
	MaxReadahead uint32
	Flags        uint32
}

// InitInSize is the size of the InitIn fields this bridge writes.
const InitInSize = 16

// InitOut is the response payload for FUSE_INIT.
type InitOut struct {
	Major        uint32
	Minor        uint32
	MaxReadahead uint32
	Flags        uint32
}

// InitOutSize is the size of InitOut in bytes.
const InitOutSize = 16

// ReqSizeMin is the minimum output-buffer size the transact loop must
// enforce: large enough to hold the biggest fixed-size request this bridge
// ever fills (a BATCH_FORGET header plus a batch of ForgetOne entries),
// matching the original driver's FUSE_PROTO_REQ_SIZEMIN.
const ReqSizeMin = InHeaderSize + BatchForgetInSize + 32*ForgetOneSize

// MaxLookupNameLen is the largest LOOKUP name this bridge will encode into a
// ReqSizeMin buffer, leaving room for the header and the null terminator.
const MaxLookupNameLen = ReqSizeMin - InHeaderSize - 1
