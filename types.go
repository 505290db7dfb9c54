package fusekernel

import (
	"time"

	"github.com/KarpelesLab/fusekernel/proto"
)

// VolumeParams describes a mounted volume's fixed configuration. Some
// fields are caller-supplied at construction; most are forced to the values
// the transact engine depends on during Init, mirroring the original
// driver's FuseDeviceInit (see DESIGN.md).
type VolumeParams struct {
	// SectorSize and SectorsPerAllocationUnit drive AllocationSize
	// rounding in attrToFileInfo. Zero means "use the default".
	SectorSize               uint16
	SectorsPerAllocationUnit uint16

	// CaseInsensitive controls whether the metadata cache folds names.
	// The original driver hardcodes CaseSensitiveSearch=1 for this
	// bridge (see DESIGN.md's open-question entry); it is not exposed
	// as a caller-configurable knob here either, but the field is kept
	// so a future volume type that legitimately needs it has somewhere
	// to put it without another VolumeParams field renumbering.
	CaseInsensitive bool

	// The following are set unconditionally by normalizeVolumeParams and
	// are exported read-only so a caller (or a test) can inspect what
	// was actually negotiated.
	CasePreservedNames          bool
	PersistentAcls              bool
	ReparsePoints               bool
	ReparsePointsAccessCheck    bool
	NamedStreams                bool
	ReadOnlyVolume              bool
	PostCleanupWhenModifiedOnly bool
	PassQueryDirectoryFileName  bool
	DeviceControl               bool
	DirectoryMarkerAsNextOffset bool
}

// normalizeVolumeParams applies the fixed set of volume flags the transact
// engine depends on, in the order the original driver's FuseDeviceInit
// applies them. Caller-supplied SectorSize/SectorsPerAllocationUnit are
// defaulted, never overridden.
func normalizeVolumeParams(p VolumeParams) VolumeParams {
	p.CaseInsensitive = false
	p.CasePreservedNames = true
	p.PersistentAcls = true
	p.ReparsePoints = true
	p.ReparsePointsAccessCheck = false
	p.NamedStreams = false
	p.ReadOnlyVolume = false
	p.PostCleanupWhenModifiedOnly = true
	p.PassQueryDirectoryFileName = true
	p.DeviceControl = true
	p.DirectoryMarkerAsNextOffset = true

	if p.SectorSize == 0 {
		p.SectorSize = 4096
	}
	if p.SectorsPerAllocationUnit == 0 {
		p.SectorsPerAllocationUnit = 1
	}
	return p
}

// File attribute and reparse tag values FileInfo carries, restricted to the
// ones attrToFileInfo can actually produce from the FUSE opcodes this
// bridge speaks.
const (
	FileAttributeDirectory    uint32 = 0x00000010
	FileAttributeReparsePoint uint32 = 0x00000400

	ReparseTagNFS     uint32 = 0x80000014
	ReparseTagSymlink uint32 = 0xA000000C
)

// FileInfo is the host framework's native attribute record, standing in
// for FSP_FSCTL_FILE_INFO. attrToFileInfo fills one from a wire Attr.
type FileInfo struct {
	FileAttributes uint32
	ReparseTag     uint32
	FileSize       uint64
	AllocationSize uint64
	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
	ChangeTime     time.Time
	IndexNumber    uint64
	HardLinks      uint32
	EaSize         uint32
}

// attrToFileInfo maps a wire Attr to the host's FileInfo, following
// FuseAttrToFileInfo's mode-bit switch exactly, including its one
// documented gap: a symlink whose target is a directory is reported as a
// plain symlink reparse point, never gaining FileAttributeDirectory. The
// original driver never fixed this and neither does this port; see
// DESIGN.md.
func attrToFileInfo(inst *Instance, attr *proto.Attr) FileInfo {
	var fi FileInfo

	switch attr.Mode & proto.ModeTypeMask {
	case proto.ModeDir:
		fi.FileAttributes = FileAttributeDirectory
	case proto.ModeFifo, proto.ModeChar, proto.ModeBlock, proto.ModeSocket:
		fi.FileAttributes = FileAttributeReparsePoint
		fi.ReparseTag = ReparseTagNFS
	case proto.ModeSymlink:
		fi.FileAttributes = FileAttributeReparsePoint
		fi.ReparseTag = ReparseTagSymlink
	default:
		fi.FileAttributes = 0
	}

	allocationUnit := uint64(inst.params.SectorSize) * uint64(inst.params.SectorsPerAllocationUnit)
	if allocationUnit == 0 {
		allocationUnit = 1
	}
	fi.FileSize = attr.Size
	fi.AllocationSize = (fi.FileSize + allocationUnit - 1) / allocationUnit * allocationUnit

	fi.LastAccessTime = time.Unix(int64(attr.Atime), int64(attr.AtimeNsec))
	fi.LastWriteTime = time.Unix(int64(attr.Mtime), int64(attr.MtimeNsec))
	fi.ChangeTime = time.Unix(int64(attr.Ctime), int64(attr.CtimeNsec))
	// The wire format carries no separate creation time; the original
	// driver reuses ctime for it and this port matches that.
	fi.CreationTime = fi.ChangeTime
	fi.IndexNumber = attr.Ino

	return fi
}
