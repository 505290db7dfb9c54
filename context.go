package fusekernel

import (
	"time"

	"github.com/KarpelesLab/fusekernel/cache"
	"github.com/KarpelesLab/fusekernel/errno"
	"github.com/KarpelesLab/fusekernel/proto"
)

// Context is one in-flight FUSE exchange: a resumable state machine bound
// either to a live InternalRequest awaiting a daemon round trip, or (for
// self-generated FORGET/BATCH_FORGET traffic) to nothing but a batch of
// inodes to drain. It implements ioq.Entry via Unique.
//
// A Context with isStatus set carries no live state machine at all: it is
// an early-failure marker the transact loop resolves straight into an
// internal response without ever touching sendRoutines. See newStatusContext.
type Context struct {
	unique   uint64
	instance *Instance
	opcode   uint32
	step     int

	internalRequest  *InternalRequest
	internalResponse *InternalResponse

	// Scratch fields sendRoutines reads/writes across steps. Only the
	// ones relevant to the context's opcode are populated.
	ino          uint64
	lookupName   string
	origin       proto.Origin
	forgetInodes []uint64

	fini func(*Context)

	isStatus    bool
	earlyStatus errno.Status
}

// Unique implements ioq.Entry.
func (c *Context) Unique() uint64 { return c.unique }

// IsStatus reports whether this context is a status-only early failure.
func (c *Context) IsStatus() bool { return c.isStatus }

// Status returns the early-failure status of a status-only context. It is
// meaningless otherwise.
func (c *Context) Status() errno.Status { return c.earlyStatus }

// destroy runs the context's Fini hook, if any, exactly once.
func (c *Context) destroy() {
	if c.fini != nil {
		fini := c.fini
		c.fini = nil
		fini(c)
	}
}

// Process advances the context's state machine by one half-step and
// reports whether it still expects a response (true) or has reached a
// terminal state (false). Exactly one of resp/out is non-nil on any given
// call: resp+payload on the response half-step, out on the request
// half-step.
func (c *Context) Process(resp *proto.RspHeader, payload []byte, out []byte) bool {
	fn := sendRoutines[c.opcode]
	if fn == nil {
		c.internalResponse.Status = errno.StatusNotImplemented
		return false
	}
	return fn(c, resp, payload, out)
}

// sendRoutines dispatches by wire opcode to the coroutine-style function
// that fills a context's next request and, on the following call,
// interprets its response. Each function mirrors the two-state shape of
// the corresponding FuseProtoSend* routine: state 0 fills and yields
// (returns true), any later call inspects the response and breaks (returns
// false). FORGET and BATCH_FORGET never yield — the daemon sends no reply
// for either — so they fill and break in the same call.
var sendRoutines = map[uint32]func(c *Context, resp *proto.RspHeader, payload []byte, out []byte) bool{
	proto.OpInit:        sendInit,
	proto.OpLookup:      sendLookup,
	proto.OpGetattr:     sendGetattr,
	proto.OpOpen:        sendOpenOrOpendir,
	proto.OpOpendir:     sendOpenOrOpendir,
	proto.OpForget:      sendForget,
	proto.OpBatchForget: sendBatchForget,
}

// opCreateStub is not a wire opcode this bridge speaks (CREATE is out of
// scope; see DESIGN.md's open question about FuseProtoSendCreate). It
// exists only so sendCreateStub has a dispatch key to document the
// original's stubbed behavior without adding CREATE to proto's opcode set.
const opCreateStub uint32 = 0

func sendInit(c *Context, resp *proto.RspHeader, payload []byte, out []byte) bool {
	if c.step == 0 {
		if _, err := proto.FillInit(out, c.unique, c.origin); err != nil {
			c.internalResponse.Status = errno.StatusInsufficientResources
			return false
		}
		c.step = 1
		return true
	}

	if resp.Error != 0 {
		c.internalResponse.Status = errno.ToStatus(resp.Error)
		// A failed INIT exchange leaves the instance permanently unable
		// to talk to the daemon; there is no protocol version to retry
		// with. Every later request half-step will fail fast instead of
		// blocking on an init event that will never signal success.
		c.instance.failInit()
		return false
	}
	initOut := proto.ReadInitOut(payload)
	c.instance.completeInit(initOut.Major, initOut.Minor)
	c.internalResponse.Status = errno.StatusSuccess
	return false
}

func sendLookup(c *Context, resp *proto.RspHeader, payload []byte, out []byte) bool {
	if c.step == 0 {
		if _, err := proto.FillLookup(out, c.unique, c.ino, c.lookupName, c.origin); err != nil {
			c.internalResponse.Status = errno.StatusInvalidParameter
			return false
		}
		c.step = 1
		return true
	}

	if resp.Error != 0 {
		c.internalResponse.Status = errno.ToStatus(resp.Error)
		return false
	}
	entry := proto.ReadEntryOut(payload)
	fi := attrToFileInfo(c.instance, &entry.Attr)
	c.internalResponse.FileInfo = &fi
	c.internalResponse.Ino = entry.NodeID
	c.internalResponse.Generation = entry.Generation
	c.internalResponse.Status = errno.StatusSuccess

	ttl := time.Duration(entry.EntryValid)*time.Second + time.Duration(entry.EntryValidNsec)*time.Nanosecond
	c.instance.cache.Insert(c.ino, c.lookupName, entry.NodeID, toCacheAttr(entry.Attr), ttl)
	return false
}

func sendGetattr(c *Context, resp *proto.RspHeader, payload []byte, out []byte) bool {
	if c.step == 0 {
		if _, err := proto.FillGetattr(out, c.unique, c.ino, 0, false, c.origin); err != nil {
			c.internalResponse.Status = errno.StatusInvalidParameter
			return false
		}
		c.step = 1
		return true
	}

	if resp.Error != 0 {
		c.internalResponse.Status = errno.ToStatus(resp.Error)
		return false
	}
	attrOut := proto.ReadAttrOut(payload)
	fi := attrToFileInfo(c.instance, &attrOut.Attr)
	c.internalResponse.FileInfo = &fi
	c.internalResponse.Status = errno.StatusSuccess
	return false
}

// sendOpenOrOpendir services both OPEN and OPENDIR: they differ only in
// wire opcode, which c.opcode already carries into the Fill call.
func sendOpenOrOpendir(c *Context, resp *proto.RspHeader, payload []byte, out []byte) bool {
	if c.step == 0 {
		var err error
		if c.opcode == proto.OpOpendir {
			_, err = proto.FillOpendir(out, c.unique, c.ino, c.internalRequest.OpenFlags, c.origin)
		} else {
			_, err = proto.FillOpen(out, c.unique, c.ino, c.internalRequest.OpenFlags, c.origin)
		}
		if err != nil {
			c.internalResponse.Status = errno.StatusInvalidParameter
			return false
		}
		c.step = 1
		return true
	}

	if resp.Error != 0 {
		c.internalResponse.Status = errno.ToStatus(resp.Error)
		return false
	}
	openOut := proto.ReadOpenOut(payload)
	c.internalResponse.Fh = openOut.Fh
	c.internalResponse.OpenFlags = openOut.OpenFlags
	c.internalResponse.Status = errno.StatusSuccess
	return false
}

// sendForget drains exactly one inode per call and never yields: FORGET
// carries no reply. The transact loop reposts the context to pending as
// long as forgetInodes is non-empty (see Instance.Transact).
func sendForget(c *Context, resp *proto.RspHeader, payload []byte, out []byte) bool {
	ino := c.forgetInodes[0]
	c.forgetInodes = c.forgetInodes[1:]
	proto.FillForget(out, c.unique, ino, c.origin)
	return false
}

// sendBatchForget packs as many remaining inodes as fit into one request
// per call and never yields, for the same reason as sendForget.
func sendBatchForget(c *Context, resp *proto.RspHeader, payload []byte, out []byte) bool {
	_, packed, _ := proto.FillBatchForget(out, c.unique, c.forgetInodes, c.origin)
	c.forgetInodes = c.forgetInodes[packed:]
	return false
}

// sendCreateStub mirrors FuseProtoSendCreate: the original never actually
// fills a request for CREATE, it just breaks immediately with an
// unimplemented status. CREATE is not part of this bridge's wire opcode
// set, so nothing dispatches here today; it is kept as
// documentation of that open question (see DESIGN.md).
func sendCreateStub(c *Context, resp *proto.RspHeader, payload []byte, out []byte) bool {
	c.internalResponse.Status = errno.StatusNotImplemented
	return false
}

func toCacheAttr(a proto.Attr) cache.Attr {
	return cache.Attr{Mode: a.Mode, Size: a.Size, Nlink: a.Nlink}
}
