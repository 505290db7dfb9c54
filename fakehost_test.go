package fusekernel

import (
	"context"
	"sync"
)

// fakeHost is a minimal, thread-safe Host used across the package's tests.
// It never blocks: NextRequest reports (nil, nil) once its queue is empty,
// matching a host framework with nothing further to hand over right now.
type fakeHost struct {
	mu        sync.Mutex
	queue     []*InternalRequest
	completed []*InternalResponse
	freed     []*InternalRequest
}

func (h *fakeHost) NextRequest(ctx context.Context) (*InternalRequest, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.queue) == 0 {
		return nil, nil
	}
	req := h.queue[0]
	h.queue = h.queue[1:]
	return req, nil
}

func (h *fakeHost) Complete(resp *InternalResponse) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.completed = append(h.completed, resp)
	return nil
}

func (h *fakeHost) Free(req *InternalRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.freed = append(h.freed, req)
}

func (h *fakeHost) lastCompleted() *InternalResponse {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.completed) == 0 {
		return nil
	}
	return h.completed[len(h.completed)-1]
}

func (h *fakeHost) enqueue(req *InternalRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queue = append(h.queue, req)
}
