package fusekernel

import (
	"context"
	"time"
	"unsafe"

	"github.com/KarpelesLab/fusekernel/errno"
)

// Kind classifies an InternalRequest/InternalResponse the way the host
// framework's own request taxonomy would (FspFsextProviderTransact's
// FSP_FSCTL_TRANSACT_REQ.Kind). Only the kinds this bridge's opcodes can
// produce are named; a real host framework has many more.
type Kind uint32

const (
	KindUnknown Kind = iota
	KindLookup
	KindGetInfo
	KindOpen
	KindOpenDir
)

// InternalRequest is what the host framework hands the transact loop when
// it wants something serviced, standing in for FSP_FSCTL_TRANSACT_REQ.
type InternalRequest struct {
	Kind Kind
	Hint uint32 // the FUSE opcode this request maps to

	Ino  uint64
	Name string

	Uid, Gid, Pid uint32

	OpenFlags uint32
}

// InternalResponse is what the transact loop hands back to the host
// framework once a context reaches a terminal state, standing in for
// FSP_FSCTL_TRANSACT_RSP.
type InternalResponse struct {
	Kind   Kind
	Hint   uint32
	Status errno.Status

	FileInfo   *FileInfo
	Ino        uint64
	Generation uint64
	Fh         uint64
	OpenFlags  uint32
}

// Host abstracts the in-kernel filesystem framework this engine mediates
// for, standing in for the FspFsextProviderTransact vtable entry points
// this bridge actually calls.
type Host interface {
	// NextRequest returns the next request the host filesystem framework
	// wants serviced, or (nil, nil) if none is currently available.
	NextRequest(ctx context.Context) (*InternalRequest, error)
	// Complete forwards a finished response back to the host framework.
	Complete(resp *InternalResponse) error
	// Free releases an internal request the host allocated but that
	// never ended up owned by a live context (the status-only-context
	// path), standing in for FreeExternal.
	Free(req *InternalRequest)
}

// Provider is a process-wide, read-only vtable mirroring FSP_FSEXT_PROVIDER
// for callers that want that shape instead of calling Instance's methods
// directly. It is initialized once at package load and never mutated.
type Provider struct {
	Version             uint32
	DeviceExtensionSize uintptr

	DeviceInit              func(inst *Instance, params VolumeParams) error
	DeviceFini              func(inst *Instance)
	DeviceExpirationRoutine func(inst *Instance, now time.Time)
	DeviceTransact          func(ctx context.Context, inst *Instance, host Host, resp, out []byte) (int, error)
}

// FuseProvider is the vtable this module publishes, filled with the
// Instance methods it names.
var FuseProvider = Provider{
	Version:             1,
	DeviceExtensionSize: unsafe.Sizeof(Instance{}),
	DeviceInit: func(inst *Instance, params VolumeParams) error {
		return inst.init(params)
	},
	DeviceFini: func(inst *Instance) {
		inst.Fini()
	},
	DeviceExpirationRoutine: func(inst *Instance, now time.Time) {
		inst.Expiration(now)
	},
	DeviceTransact: func(ctx context.Context, inst *Instance, host Host, resp, out []byte) (int, error) {
		return inst.Transact(ctx, host, resp, out)
	},
}
