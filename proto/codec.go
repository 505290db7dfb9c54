package proto

import (
	"encoding/binary"
	"errors"
)

// ErrNameTooLong is returned by FillLookup when name would not fit in a
// ReqSizeMin buffer.
var ErrNameTooLong = errors.New("proto: lookup name too long")

// ErrBufferTooSmall is returned by any Fill* function when out is smaller
// than the request it needs to write. The transact loop is responsible for
// enforcing ReqSizeMin before calling into this package, so this only
// fires on genuine caller error.
var ErrBufferTooSmall = errors.New("proto: output buffer too small")

func putInHeader(out []byte, length uint32, opcode uint32, unique uint64, nodeid uint64, uid, gid, pid uint32) {
	binary.LittleEndian.PutUint32(out[0:4], length)
	binary.LittleEndian.PutUint32(out[4:8], opcode)
	binary.LittleEndian.PutUint64(out[8:16], unique)
	binary.LittleEndian.PutUint64(out[16:24], nodeid)
	binary.LittleEndian.PutUint32(out[24:28], uid)
	binary.LittleEndian.PutUint32(out[28:32], gid)
	binary.LittleEndian.PutUint32(out[32:36], pid)
	binary.LittleEndian.PutUint32(out[36:40], 0)
}

// Origin carries the requesting process identity stamped into every
// request header, mirroring FUSE_CONTEXT's OrigUid/OrigGid/OrigPid.
type Origin struct {
	Uid uint32
	Gid uint32
	Pid uint32
}

// FillInit encodes a FUSE_INIT request.
func FillInit(out []byte, unique uint64, origin Origin) (int, error) {
	total := InHeaderSize + InitInSize
	if len(out) < total {
		return 0, ErrBufferTooSmall
	}
	putInHeader(out, uint32(total), OpInit, unique, 0, origin.Uid, origin.Gid, origin.Pid)
	body := out[InHeaderSize:total]
	binary.LittleEndian.PutUint32(body[0:4], FuseKernelVersion)
	binary.LittleEndian.PutUint32(body[4:8], FuseKernelMinorVersion)
	binary.LittleEndian.PutUint32(body[8:12], DefaultMaxReadahead)
	binary.LittleEndian.PutUint32(body[12:16], DefaultInitFlags)
	return total, nil
}

// FillLookup encodes a FUSE_LOOKUP request for name under parent.
func FillLookup(out []byte, unique uint64, parent uint64, name string, origin Origin) (int, error) {
	if len(name) > MaxLookupNameLen {
		return 0, ErrNameTooLong
	}
	total := InHeaderSize + len(name) + 1
	if len(out) < total {
		return 0, ErrBufferTooSmall
	}
	putInHeader(out, uint32(total), OpLookup, unique, parent, origin.Uid, origin.Gid, origin.Pid)
	body := out[InHeaderSize:total]
	copy(body, name)
	body[len(name)] = 0
	return total, nil
}

// FillGetattr encodes a FUSE_GETATTR request for ino.
func FillGetattr(out []byte, unique uint64, ino uint64, fh uint64, fhValid bool, origin Origin) (int, error) {
	total := InHeaderSize + GetAttrInSize
	if len(out) < total {
		return 0, ErrBufferTooSmall
	}
	putInHeader(out, uint32(total), OpGetattr, unique, ino, origin.Uid, origin.Gid, origin.Pid)
	body := out[InHeaderSize:total]
	var flags uint32
	if fhValid {
		flags = GetattrFhValid
	}
	binary.LittleEndian.PutUint32(body[0:4], flags)
	binary.LittleEndian.PutUint32(body[4:8], 0)
	binary.LittleEndian.PutUint64(body[8:16], fh)
	return total, nil
}

// FillOpen encodes a FUSE_OPEN request with the given open flags.
func FillOpen(out []byte, unique uint64, ino uint64, flags uint32, origin Origin) (int, error) {
	return fillOpenLike(out, unique, ino, flags, OpOpen, origin)
}

// FillOpendir encodes a FUSE_OPENDIR request.
func FillOpendir(out []byte, unique uint64, ino uint64, flags uint32, origin Origin) (int, error) {
	return fillOpenLike(out, unique, ino, flags, OpOpendir, origin)
}

func fillOpenLike(out []byte, unique uint64, ino uint64, flags uint32, opcode uint32, origin Origin) (int, error) {
	total := InHeaderSize + OpenInSize
	if len(out) < total {
		return 0, ErrBufferTooSmall
	}
	putInHeader(out, uint32(total), opcode, unique, ino, origin.Uid, origin.Gid, origin.Pid)
	body := out[InHeaderSize:total]
	binary.LittleEndian.PutUint32(body[0:4], flags)
	binary.LittleEndian.PutUint32(body[4:8], 0)
	return total, nil
}

// FillForget encodes a FUSE_FORGET request for a single inode. FORGET
// carries no reply, but it is still framed as a request so the daemon can
// parse it off the wire the same way as any other opcode.
func FillForget(out []byte, unique uint64, ino uint64, origin Origin) (int, error) {
	total := InHeaderSize + ForgetInSize
	if len(out) < total {
		return 0, ErrBufferTooSmall
	}
	putInHeader(out, uint32(total), OpForget, unique, ino, origin.Uid, origin.Gid, origin.Pid)
	binary.LittleEndian.PutUint64(out[InHeaderSize:total], 1) // nlookup=1
	return total, nil
}

// BatchForgetCapacity is the number of ForgetOne entries that fit in a
// ReqSizeMin buffer alongside the BatchForgetIn header.
const BatchForgetCapacity = (ReqSizeMin - InHeaderSize - BatchForgetInSize) / ForgetOneSize

// FillBatchForget encodes a FUSE_BATCH_FORGET request, packing as many
// inodes as fit in out (or BatchForgetCapacity, whichever is smaller). It
// returns the bytes written and the number of inodes actually packed, so
// the caller can advance its forget list accordingly.
func FillBatchForget(out []byte, unique uint64, inodes []uint64, origin Origin) (n int, packed int, err error) {
	capacity := (len(out) - InHeaderSize - BatchForgetInSize) / ForgetOneSize
	if capacity > BatchForgetCapacity {
		capacity = BatchForgetCapacity
	}
	if capacity < 0 {
		capacity = 0
	}
	packed = len(inodes)
	if packed > capacity {
		packed = capacity
	}

	total := InHeaderSize + BatchForgetInSize + packed*ForgetOneSize
	if len(out) < total {
		return 0, 0, ErrBufferTooSmall
	}

	putInHeader(out, uint32(total), OpBatchForget, unique, 0, origin.Uid, origin.Gid, origin.Pid)
	body := out[InHeaderSize:total]
	binary.LittleEndian.PutUint32(body[0:4], uint32(packed))
	binary.LittleEndian.PutUint32(body[4:8], 0)
	entries := body[BatchForgetInSize:]
	for i := 0; i < packed; i++ {
		off := i * ForgetOneSize
		binary.LittleEndian.PutUint64(entries[off:off+8], inodes[i])
		binary.LittleEndian.PutUint64(entries[off+8:off+16], 1) // nlookup=1
	}
	return total, packed, nil
}

// RequestLen reads back the length a Fill* function wrote into a request's
// header, so a caller that only has the buffer (not the Fill call's return
// value) can still learn how many bytes were written.
func RequestLen(out []byte) uint32 {
	return binary.LittleEndian.Uint32(out[0:4])
}

// RspHeader is the decoded form of a response's fixed header.
type RspHeader struct {
	Len    uint32
	Error  int32
	Unique uint64
}

// ReadRspHeader parses the fixed response header from a daemon reply.
// The caller (the transact loop) is responsible for the len bounds-check
// against the input buffer size; this function only decodes.
func ReadRspHeader(resp []byte) (RspHeader, []byte) {
	h := RspHeader{
		Len:    binary.LittleEndian.Uint32(resp[0:4]),
		Error:  int32(binary.LittleEndian.Uint32(resp[4:8])),
		Unique: binary.LittleEndian.Uint64(resp[8:16]),
	}
	return h, resp[OutHeaderSize:]
}

func readAttr(b []byte) Attr {
	return Attr{
		Ino:       binary.LittleEndian.Uint64(b[0:8]),
		Size:      binary.LittleEndian.Uint64(b[8:16]),
		Blocks:    binary.LittleEndian.Uint64(b[16:24]),
		Atime:     binary.LittleEndian.Uint64(b[24:32]),
		Mtime:     binary.LittleEndian.Uint64(b[32:40]),
		Ctime:     binary.LittleEndian.Uint64(b[40:48]),
		AtimeNsec: binary.LittleEndian.Uint32(b[48:52]),
		MtimeNsec: binary.LittleEndian.Uint32(b[52:56]),
		CtimeNsec: binary.LittleEndian.Uint32(b[56:60]),
		Mode:      binary.LittleEndian.Uint32(b[60:64]),
		Nlink:     binary.LittleEndian.Uint32(b[64:68]),
		Uid:       binary.LittleEndian.Uint32(b[68:72]),
		Gid:       binary.LittleEndian.Uint32(b[72:76]),
		Rdev:      binary.LittleEndian.Uint32(b[76:80]),
		Blksize:   binary.LittleEndian.Uint32(b[80:84]),
		Flags:     binary.LittleEndian.Uint32(b[84:88]),
	}
}

// ReadEntryOut decodes a FUSE_LOOKUP response payload.
func ReadEntryOut(payload []byte) EntryOut {
	return EntryOut{
		NodeID:         binary.LittleEndian.Uint64(payload[0:8]),
		Generation:     binary.LittleEndian.Uint64(payload[8:16]),
		EntryValid:     binary.LittleEndian.Uint64(payload[16:24]),
		AttrValid:      binary.LittleEndian.Uint64(payload[24:32]),
		EntryValidNsec: binary.LittleEndian.Uint32(payload[32:36]),
		AttrValidNsec:  binary.LittleEndian.Uint32(payload[36:40]),
		Attr:           readAttr(payload[40:128]),
	}
}

// ReadAttrOut decodes a FUSE_GETATTR response payload.
func ReadAttrOut(payload []byte) AttrOut {
	return AttrOut{
		AttrValid:     binary.LittleEndian.Uint64(payload[0:8]),
		AttrValidNsec: binary.LittleEndian.Uint32(payload[8:12]),
		Dummy:         binary.LittleEndian.Uint32(payload[12:16]),
		Attr:          readAttr(payload[16:104]),
	}
}

// ReadOpenOut decodes a FUSE_OPEN/FUSE_OPENDIR response payload.
func ReadOpenOut(payload []byte) OpenOut {
	return OpenOut{
		Fh:        binary.LittleEndian.Uint64(payload[0:8]),
		OpenFlags: binary.LittleEndian.Uint32(payload[8:12]),
		Padding:   binary.LittleEndian.Uint32(payload[12:16]),
	}
}

// ReadInitOut decodes a FUSE_INIT response payload.
func ReadInitOut(payload []byte) InitOut {
	return InitOut{
		Major:        binary.LittleEndian.Uint32(payload[0:4]),
		Minor:        binary.LittleEndian.Uint32(payload[4:8]),
		MaxReadahead: binary.LittleEndian.Uint32(payload[8:12]),
		Flags:        binary.LittleEndian.Uint32(payload[12:16]),
	}
}
