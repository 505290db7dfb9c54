package fusekernel

import "sync"

// forgetSlicePool amortizes the []uint64 allocations a busy expiration
// sweep would otherwise produce, the same buffer-reuse discipline the
// original I/O buffer pool applied to fixed-size FUSE message buffers.
// Each pooled slice is truncated to length zero before being handed out
// and before being returned, so callers get a clean append target while
// its backing array is kept around across sweeps.
type forgetSlicePool struct {
	pool sync.Pool
}

func newForgetSlicePool() *forgetSlicePool {
	return &forgetSlicePool{
		pool: sync.Pool{
			New: func() interface{} {
				s := make([]uint64, 0, 64)
				return &s
			},
		},
	}
}

func (p *forgetSlicePool) get() []uint64 {
	s := p.pool.Get().(*[]uint64)
	return (*s)[:0]
}

func (p *forgetSlicePool) put(s []uint64) {
	s = s[:0]
	p.pool.Put(&s)
}
