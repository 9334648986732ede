// Package pool recycles the byte buffers exporters use to assemble request
// bodies, keeping per-export allocations flat under sustained span volume.
package pool

import (
	"bytes"
	"sync"
)

// Buffers larger than this are discarded instead of pooled so one oversized
// batch cannot pin memory for the life of the process.
const maxPooledBufferSize = 1 << 20

var bufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// GetBuffer returns an empty buffer from the pool.
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool. The caller must not use it after.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledBufferSize {
		return
	}
	bufferPool.Put(buf)
}
