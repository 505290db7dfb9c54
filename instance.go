package fusekernel

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/KarpelesLab/fusekernel/cache"
	"github.com/KarpelesLab/fusekernel/errno"
	"github.com/KarpelesLab/fusekernel/ioq"
	"github.com/KarpelesLab/fusekernel/proto"
)

// Instance is one mounted volume's transact engine: an IOQ, a metadata
// cache, a file-object table, and the version/init-event state the
// transact loop consults to decide whether it may ask the host for new
// work yet. See DESIGN.md.
type Instance struct {
	params VolumeParams

	ioq       *ioq.Queue[*Context]
	cache     *cache.Cache
	files     *fileTable
	forgetBuf *forgetSlicePool

	// opGuard serializes structural operations (context admission,
	// expiration sweeps) against each other, mirroring the original
	// driver's operation-guard rw-lock. Transact takes a read lock;
	// Expiration and Fini take a write lock.
	opGuard sync.RWMutex

	// versionMajor is 0 before INIT completes, the negotiated major
	// version on success, or -1 once the instance has entered its
	// terminal access-denied state (see waitForInit).
	versionMajor atomic.Int32
	versionMinor atomic.Uint32

	initOnce sync.Once
	initDone chan struct{}

	nextUnique atomic.Uint64
}

// New constructs an Instance and posts its self-generated INIT context to
// pending, mirroring FuseDeviceInit's fixed construction order: normalize
// volume parameters, build IOQ and cache, bring up the file table, then
// post INIT. Any step that can fail does so before anything downstream is
// touched, so there is nothing to unwind on error.
func New(params VolumeParams) (*Instance, error) {
	inst := &Instance{}
	if err := inst.init(params); err != nil {
		return nil, err
	}
	return inst, nil
}

func (inst *Instance) init(params VolumeParams) error {
	inst.params = normalizeVolumeParams(params)
	inst.ioq = ioq.New[*Context]()
	inst.cache = cache.Create(inst.params.CaseInsensitive)
	inst.files = newFileTable()
	inst.forgetBuf = newForgetSlicePool()
	inst.initDone = make(chan struct{})

	initCtx := &Context{
		unique:           inst.nextTicket(),
		instance:         inst,
		opcode:           proto.OpInit,
		internalResponse: &InternalResponse{Hint: proto.OpInit},
	}
	inst.ioq.PostPending(initCtx)
	return nil
}

func (inst *Instance) nextTicket() uint64 {
	return inst.nextUnique.Add(1)
}

// NegotiatedVersion reports the FUSE protocol version this instance
// negotiated with the daemon during INIT. ok is false before INIT
// completes or after it has permanently failed.
func (inst *Instance) NegotiatedVersion() (major, minor uint32, ok bool) {
	m := inst.versionMajor.Load()
	if m <= 0 {
		return 0, 0, false
	}
	return uint32(m), inst.versionMinor.Load(), true
}

// completeInit records a negotiated version and signals the init event.
// Safe to call more than once; only the first call has any effect.
func (inst *Instance) completeInit(major, minor uint32) {
	inst.versionMinor.Store(minor)
	inst.versionMajor.Store(int32(major))
	inst.initOnce.Do(func() { close(inst.initDone) })
}

// failInit puts the instance into its terminal access-denied state and
// signals the init event, unblocking anyone waiting on it.
func (inst *Instance) failInit() {
	inst.versionMajor.Store(-1)
	inst.initOnce.Do(func() { close(inst.initDone) })
}

// Fini tears the instance down in a fixed order: IOQ first (it may hold
// contexts that still reference cache generations), then the file table,
// then the cache.
func (inst *Instance) Fini() {
	inst.opGuard.Lock()
	defer inst.opGuard.Unlock()

	inst.ioq.Drain(func(c *Context) { c.destroy() })
	inst.files.close()
	inst.cache.Delete()
}

// Expiration runs one cache sweep and, if anything expired, posts a
// self-generated FORGET or BATCH_FORGET context to drain it. It takes the
// same write lock Fini does, so a sweep never races a teardown.
func (inst *Instance) Expiration(now time.Time) {
	inst.opGuard.Lock()
	defer inst.opGuard.Unlock()

	buf := inst.forgetBuf.get()
	forgotten := inst.cache.ExpirationSweepInto(now, buf)
	if len(forgotten) == 0 {
		inst.forgetBuf.put(forgotten)
		return
	}

	ctx := inst.newForgetContext(forgotten)
	inst.ioq.PostPending(ctx)
}

// newForgetContext picks FORGET for a single inode (drains in one
// round trip) or BATCH_FORGET for more than one (drains in as many round
// trips as proto.BatchForgetCapacity requires), matching the tradeoff the
// original driver's caller makes at the FuseCacheForgetNextItem call site.
func (inst *Instance) newForgetContext(inodes []uint64) *Context {
	opcode := proto.OpBatchForget
	if len(inodes) == 1 {
		opcode = proto.OpForget
	}
	c := &Context{
		unique:           inst.nextTicket(),
		instance:         inst,
		opcode:           opcode,
		internalResponse: &InternalResponse{Hint: opcode},
		forgetInodes:     inodes,
	}
	c.fini = func(*Context) {
		inst.cache.DeleteItems(inodes)
		inst.forgetBuf.put(inodes)
	}
	return c
}

// newContext builds the context a fresh InternalRequest maps to. Hints
// this bridge doesn't recognize produce a status-only context carrying
// StatusNotImplemented, mirroring FuseContextCreate's default case.
func newContext(inst *Instance, req *InternalRequest) *Context {
	switch req.Hint {
	case proto.OpLookup, proto.OpGetattr, proto.OpOpen, proto.OpOpendir:
		return &Context{
			unique:           inst.nextTicket(),
			instance:         inst,
			opcode:           req.Hint,
			internalRequest:  req,
			internalResponse: &InternalResponse{Kind: req.Kind, Hint: req.Hint},
			origin:           proto.Origin{Uid: req.Uid, Gid: req.Gid, Pid: req.Pid},
			ino:              req.Ino,
			lookupName:       req.Name,
		}
	default:
		return newStatusContext(inst, req, errno.StatusNotImplemented)
	}
}

// newStatusContext builds a status-only context: an early failure carrying
// a native status in place of a live state machine. The transact loop
// detects IsStatus() and short-circuits straight to an internal response
// without ever calling Process.
func newStatusContext(inst *Instance, req *InternalRequest, status errno.Status) *Context {
	return &Context{
		unique:          inst.nextTicket(),
		instance:        inst,
		internalRequest: req,
		isStatus:        true,
		earlyStatus:     status,
	}
}

// fileTable is a minimal, concurrency-safe placeholder for the file-object
// table this bridge lists as part of Instance's owned state. This
// bridge's in-scope opcodes never need to look a handle back up (OPEN and
// OPENDIR just forward the daemon's Fh to the host), so the table carries
// no entries yet; it exists so Instance's lifecycle ordering (create at
// init, tear down between IOQ and cache) is exercised and has somewhere to
// grow into if a later opcode needs handle bookkeeping.
type fileTable struct {
	mu     sync.Mutex
	closed bool
}

func newFileTable() *fileTable { return &fileTable{} }

func (t *fileTable) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}
