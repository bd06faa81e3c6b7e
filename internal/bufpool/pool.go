// Package bufpool recycles fixed-size chunk buffers between transfers.
package bufpool

import "sync"

// Pool hands out byte slices of a single fixed size and takes them back
// for reuse, keeping steady-state transfers allocation free.
type Pool struct {
	pool sync.Pool
	size int
}

// New creates a pool whose buffers are exactly size bytes long.
func New(size int) *Pool {
	if size <= 0 {
		panic("bufpool: size must be positive")
	}
	return &Pool{
		size: size,
		pool: sync.Pool{
			New: func() any {
				return make([]byte, size)
			},
		},
	}
}

// Get returns a buffer of exactly the pool's size.
func (p *Pool) Get() []byte {
	buf := p.pool.Get().([]byte)
	return buf[:p.size]
}

// Put hands a buffer back. Buffers from a different, smaller pool are
// dropped instead of poisoning this one.
func (p *Pool) Put(buf []byte) {
	if cap(buf) < p.size {
		return
	}
	p.pool.Put(buf[:cap(buf)])
}

// BufSize returns the size of the buffers this pool hands out.
func (p *Pool) BufSize() int {
	return p.size
}
