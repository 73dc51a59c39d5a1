// Package bytebuf provides pooled byte buffers with explicit lifetime
// control. Buffers are handed out by Get, grow on demand while reading,
// and are returned to the pool with Release. Release is idempotent;
// reading a buffer's content after releasing it is a contract violation
// the package does not guard against.
package bytebuf

import (
	"io"
	"sync"
)

const defaultCapacity = 4096

var pool = sync.Pool{
	New: func() any {
		s := make([]byte, 0, defaultCapacity)
		return &s
	},
}

// Buffer is a byte buffer whose backing storage may come from a shared
// pool. It implements io.Writer, io.ReaderFrom and io.Closer. Close is
// an alias for Release so a Buffer parked in an execution registry is
// returned to the pool during end-of-request cleanup.
type Buffer struct {
	data    *[]byte
	pooled  bool
	release sync.Once
}

// Get returns a buffer from the pool, grown to hold at least capacity
// bytes without reallocating.
func Get(capacity int) *Buffer {
	s := pool.Get().(*[]byte)
	if cap(*s) < capacity {
		grown := make([]byte, 0, capacity)
		*s = grown
	}
	*s = (*s)[:0]
	return &Buffer{data: s, pooled: true}
}

// Wrap adapts an existing slice into a Buffer without pooling it.
// Releasing a wrapped buffer only severs the reference.
func Wrap(b []byte) *Buffer {
	return &Buffer{data: &b}
}

// Bytes returns the accumulated bytes. The slice aliases the buffer's
// backing storage and is invalidated by Release.
func (b *Buffer) Bytes() []byte {
	if b.data == nil {
		return nil
	}
	return *b.data
}

// String copies the accumulated bytes into a string.
func (b *Buffer) String() string {
	return string(b.Bytes())
}

// Len reports the number of accumulated bytes.
func (b *Buffer) Len() int {
	return len(b.Bytes())
}

// Write appends p, growing the backing storage as needed.
func (b *Buffer) Write(p []byte) (int, error) {
	b.ensure(len(p))
	*b.data = append(*b.data, p...)
	return len(p), nil
}

// ReadFrom appends everything r produces until EOF.
func (b *Buffer) ReadFrom(r io.Reader) (int64, error) {
	var total int64
	for {
		if len(*b.data) == cap(*b.data) {
			b.ensure(defaultCapacity)
		}
		n, err := r.Read((*b.data)[len(*b.data):cap(*b.data)])
		*b.data = (*b.data)[:len(*b.data)+n]
		total += int64(n)
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Release returns the backing storage to the pool. It is safe to call
// any number of times; only the first call has an effect.
func (b *Buffer) Release() {
	b.release.Do(func() {
		if b.pooled && b.data != nil {
			s := *b.data
			s = s[:0]
			pool.Put(&s)
		}
		b.data = nil
	})
}

// Close implements io.Closer by releasing the buffer.
func (b *Buffer) Close() error {
	b.Release()
	return nil
}

func (b *Buffer) ensure(n int) {
	if b.data == nil {
		s := make([]byte, 0, n)
		b.data = &s
		return
	}
	if cap(*b.data)-len(*b.data) >= n {
		return
	}
	grown := make([]byte, len(*b.data), 2*cap(*b.data)+n)
	copy(grown, *b.data)
	*b.data = grown
}
