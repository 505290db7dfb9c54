package proto

import "testing"

var origin = Origin{Uid: 1000, Gid: 1000, Pid: 42}

func TestFillLookupRoundTrip(t *testing.T) {
	buf := make([]byte, ReqSizeMin)
	n, err := FillLookup(buf, 7, 1, "foo", origin)
	if err != nil {
		t.Fatalf("FillLookup: %v", err)
	}
	if n != InHeaderSize+len("foo")+1 {
		t.Fatalf("n = %d, want %d", n, InHeaderSize+len("foo")+1)
	}

	var h InHeader
	req := buf[:n]
	if op := le32(req[4:8]); op != OpLookup {
		t.Fatalf("opcode = %d, want %d", op, OpLookup)
	}
	if u := le64(req[8:16]); u != 7 {
		t.Fatalf("unique = %d, want 7", u)
	}
	if nodeid := le64(req[16:24]); nodeid != 1 {
		t.Fatalf("nodeid = %d, want 1", nodeid)
	}
	name := req[InHeaderSize : n-1]
	if string(name) != "foo" {
		t.Fatalf("name = %q, want foo", name)
	}
	if req[n-1] != 0 {
		t.Fatal("name not null terminated")
	}
	_ = h
}

func TestFillLookupNameTooLong(t *testing.T) {
	buf := make([]byte, ReqSizeMin)
	long := make([]byte, MaxLookupNameLen+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := FillLookup(buf, 1, 1, string(long), origin); err != ErrNameTooLong {
		t.Fatalf("err = %v, want ErrNameTooLong", err)
	}
}

func TestFillLookupBufferTooSmall(t *testing.T) {
	buf := make([]byte, InHeaderSize)
	if _, err := FillLookup(buf, 1, 1, "foo", origin); err != ErrBufferTooSmall {
		t.Fatalf("err = %v, want ErrBufferTooSmall", err)
	}
}

func TestFillForgetRoundTrip(t *testing.T) {
	buf := make([]byte, ReqSizeMin)
	n, err := FillForget(buf, 9, 42, origin)
	if err != nil {
		t.Fatalf("FillForget: %v", err)
	}
	if n != InHeaderSize+ForgetInSize {
		t.Fatalf("n = %d, want %d", n, InHeaderSize+ForgetInSize)
	}

	req := buf[:n]
	if op := le32(req[4:8]); op != OpForget {
		t.Fatalf("opcode = %d, want %d", op, OpForget)
	}
	if u := le64(req[8:16]); u != 9 {
		t.Fatalf("unique = %d, want 9", u)
	}
	if nodeid := le64(req[16:24]); nodeid != 42 {
		t.Fatalf("nodeid = %d, want 42", nodeid)
	}
	if nlookup := le64(req[InHeaderSize : InHeaderSize+8]); nlookup != 1 {
		t.Fatalf("nlookup = %d, want 1", nlookup)
	}
}

func TestFillForgetBufferTooSmall(t *testing.T) {
	buf := make([]byte, InHeaderSize)
	if _, err := FillForget(buf, 1, 1, origin); err != ErrBufferTooSmall {
		t.Fatalf("err = %v, want ErrBufferTooSmall", err)
	}
}

func TestFillBatchForgetPacksAsManyAsFit(t *testing.T) {
	inodes := make([]uint64, 17)
	for i := range inodes {
		inodes[i] = uint64(100 + i)
	}
	buf := make([]byte, ReqSizeMin)
	n, packed, err := FillBatchForget(buf, 1, inodes, origin)
	if err != nil {
		t.Fatalf("FillBatchForget: %v", err)
	}
	if packed != len(inodes) {
		t.Fatalf("packed = %d, want %d (all fit in ReqSizeMin)", packed, len(inodes))
	}
	if n != InHeaderSize+BatchForgetInSize+packed*ForgetOneSize {
		t.Fatalf("n = %d unexpected", n)
	}
}

func TestFillBatchForgetCapsAtCapacity(t *testing.T) {
	inodes := make([]uint64, BatchForgetCapacity+50)
	for i := range inodes {
		inodes[i] = uint64(i)
	}
	buf := make([]byte, ReqSizeMin)
	_, packed, err := FillBatchForget(buf, 1, inodes, origin)
	if err != nil {
		t.Fatalf("FillBatchForget: %v", err)
	}
	if packed != BatchForgetCapacity {
		t.Fatalf("packed = %d, want %d", packed, BatchForgetCapacity)
	}
}

func TestEntryOutRoundTrip(t *testing.T) {
	out := make([]byte, OutHeaderSize+EntryOutSize)
	putU32 := func(b []byte, v uint32) { b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24) }
	putU64 := func(b []byte, v uint64) {
		for i := 0; i < 8; i++ {
			b[i] = byte(v >> (8 * i))
		}
	}
	putU32(out[0:4], uint32(len(out)))
	putU32(out[4:8], 0)
	putU64(out[8:16], 7)

	payload := out[OutHeaderSize:]
	putU64(payload[0:8], 42)  // nodeid
	putU64(payload[8:16], 3)  // generation
	putU64(payload[40:48], 5) // attr.ino

	h, rest := ReadRspHeader(out)
	if h.Unique != 7 {
		t.Fatalf("unique = %d, want 7", h.Unique)
	}
	entry := ReadEntryOut(rest)
	if entry.NodeID != 42 || entry.Generation != 3 || entry.Attr.Ino != 5 {
		t.Fatalf("entry = %+v", entry)
	}
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
