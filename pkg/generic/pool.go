package generic

import (
	"bytes"
	"sync"
)

// Pool is a typed sync.Pool. An optional reset hook runs on every Put.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
}

func NewPool[T any](generate func() T) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return generate()
			},
		},
	}
}

// NewResetPool is NewPool with a hook that clears values before they are reused.
func NewResetPool[T any](generate func() T, reset func(T)) *Pool[T] {
	p := NewPool(generate)
	p.reset = reset
	return p
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(value T) {
	if p.reset != nil {
		p.reset(value)
	}
	p.pool.Put(value)
}

// maxPooledBuffer keeps one oversized snapshot from pinning memory forever.
const maxPooledBuffer = 4 << 20

// BufferPool hands out reusable byte buffers for encoding snapshots.
type BufferPool struct {
	pool *Pool[*bytes.Buffer]
}

func NewBufferPool() *BufferPool {
	return &BufferPool{pool: NewResetPool(
		func() *bytes.Buffer { return new(bytes.Buffer) },
		func(b *bytes.Buffer) { b.Reset() },
	)}
}

func (p *BufferPool) Get() *bytes.Buffer {
	return p.pool.Get()
}

func (p *BufferPool) Put(b *bytes.Buffer) {
	if b == nil || b.Cap() > maxPooledBuffer {
		return
	}
	p.pool.Put(b)
}
