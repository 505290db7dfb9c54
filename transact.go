package fusekernel

import (
	"context"

	"github.com/KarpelesLab/fusekernel/proto"
)

// Transact is the transact loop's single entry point, called once per
// transact event exactly as the original driver's FuseDeviceTransact is
// called once per IRP. It runs at most one response half-step (if resp is
// non-empty) followed by at most one request half-step (if out is
// non-empty), and returns the number of bytes it wrote into out.
//
// ctx stands in for the cancellable single-object wait primitive spec
// section 7 names: it is only ever waited on when pending is empty and
// INIT has not yet completed (see waitForInit). Once INIT has completed,
// no later call to Transact blocks on anything.
func (inst *Instance) Transact(ctx context.Context, host Host, resp []byte, out []byte) (int, error) {
	// pendingFree tracks a request this call pulled from the host but
	// that never ended up owned by a live context (the status-only
	// path) — it must be freed on every exit from here on, success or
	// failure.
	var pendingFree *InternalRequest
	defer func() {
		if pendingFree != nil {
			host.Free(pendingFree)
		}
	}()

	fuseResp, payload, err := parseResponse(resp)
	if err != nil {
		return 0, err
	}
	if len(out) != 0 && len(out) < proto.ReqSizeMin {
		return 0, ErrBufferTooSmall
	}

	// The operation guard is held shared for the remainder of this call,
	// so a transact event never runs concurrently with an expiration
	// sweep or a teardown, both of which take it exclusively.
	inst.opGuard.RLock()
	defer inst.opGuard.RUnlock()

	if fuseResp != nil {
		if err := inst.processResponse(fuseResp, payload, host); err != nil {
			return 0, err
		}
	}

	if len(out) == 0 {
		return 0, nil
	}
	for i := 0; i < proto.InHeaderSize; i++ {
		out[i] = 0
	}

	c, err := inst.admitRequest(ctx, host, &pendingFree)
	if err != nil {
		return 0, err
	}
	if c == nil {
		// No pending work and the host had nothing new either.
		return 0, nil
	}

	var cont bool
	if !c.isStatus {
		cont = c.Process(nil, nil, out)
	}

	return inst.resolveRequestStep(c, cont, out, host)
}

// parseResponse validates and decodes resp, following the same order of
// checks the original driver applies before it will touch anything else:
// a non-empty response must be at least RspHeaderSize, and its declared
// length must both meet that minimum and fit inside the buffer it arrived
// in. A malformed response is a validation error, returned immediately
// without any IOQ/cache side effect.
func parseResponse(resp []byte) (*proto.RspHeader, []byte, error) {
	if len(resp) == 0 {
		return nil, nil, nil
	}
	if len(resp) < proto.RspHeaderSize {
		return nil, nil, ErrInvalidParameter
	}
	hdr, rest := proto.ReadRspHeader(resp)
	if hdr.Len < proto.RspHeaderSize || int(hdr.Len) > len(resp) {
		return nil, nil, ErrInvalidParameter
	}
	return &hdr, rest[:hdr.Len-proto.RspHeaderSize], nil
}

// processResponse is the transact loop's response half-step: look the
// correlation ID up in processing, advance that context by one step, and
// either repost it (still awaiting another round trip), destroy it (a
// self-generated forget context with nothing left to drain), or forward it
// to the host as a finished response. A correlation ID with no matching
// processing entry is a spurious or late response and is silently ignored.
func (inst *Instance) processResponse(fuseResp *proto.RspHeader, payload []byte, host Host) error {
	c, ok := inst.ioq.EndProcessing(fuseResp.Unique)
	if !ok {
		return nil
	}

	if c.Process(fuseResp, payload, nil) {
		inst.ioq.PostPending(c)
		return nil
	}
	return inst.finishContext(c, host)
}

// finishContext runs a terminal context to completion: repost it if it's a
// self-generated forget context with more inodes to drain, otherwise
// forward its response to the host (unless it never had one to forward,
// i.e. a self-generated context) and destroy it.
func (inst *Instance) finishContext(c *Context, host Host) error {
	if c.internalRequest == nil {
		if len(c.forgetInodes) > 0 {
			inst.ioq.PostPending(c)
			return nil
		}
		c.destroy()
		return nil
	}

	if err := host.Complete(c.internalResponse); err != nil {
		c.destroy()
		return err
	}
	c.destroy()
	return nil
}

// admitRequest is the first half of the transact loop's request half-step:
// pull the next context to run, either from pending or, if pending is
// empty, from a fresh internal request. *pendingFree is set to a pulled
// request only while this function still owns it (the status-only path);
// once a live context takes ownership, it is cleared so Transact's defer
// doesn't double-free it.
func (inst *Instance) admitRequest(ctx context.Context, host Host, pendingFree **InternalRequest) (*Context, error) {
	if c, ok := inst.ioq.NextPending(); ok {
		return c, nil
	}

	if inst.versionMajor.Load() == 0 {
		if err := inst.waitForInit(ctx); err != nil {
			return nil, err
		}
	}
	if inst.versionMajor.Load() == -1 {
		return nil, ErrAccessDenied
	}

	req, err := host.NextRequest(ctx)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, nil
	}

	*pendingFree = req
	c := newContext(inst, req)
	if !c.isStatus {
		*pendingFree = nil // ownership passed to the context
	}
	return c, nil
}

// resolveRequestStep interprets the outcome of running a just-admitted or
// just-repopped context's request half-step and reports the byte count
// Transact should return.
func (inst *Instance) resolveRequestStep(c *Context, cont bool, out []byte, host Host) (int, error) {
	if c.isStatus {
		resp := &InternalResponse{
			Kind:   c.internalRequest.Kind,
			Hint:   c.internalRequest.Hint,
			Status: c.earlyStatus,
		}
		if err := host.Complete(resp); err != nil {
			return 0, err
		}
		return 0, nil
	}

	if cont {
		inst.ioq.StartProcessing(c)
		return int(proto.RequestLen(out)), nil
	}

	if c.internalRequest == nil {
		if len(c.forgetInodes) > 0 {
			inst.ioq.PostPending(c)
		} else {
			c.destroy()
		}
		return int(proto.RequestLen(out)), nil
	}

	if err := host.Complete(c.internalResponse); err != nil {
		c.destroy()
		return 0, err
	}
	c.destroy()
	return int(proto.RequestLen(out)), nil
}

// waitForInit blocks until INIT completes or ctx is cancelled, whichever
// comes first. Once initDone is closed, every future call returns
// immediately: no request half-step after a successful INIT ever blocks
// again.
func (inst *Instance) waitForInit(ctx context.Context) error {
	select {
	case <-inst.initDone:
		return nil
	case <-ctx.Done():
		return ErrCancelled
	}
}
