package queue

import (
	"sync"

	"github.com/ehrlich-b/hound/internal/constants"
)

// BufferPool provides pooled byte slices so the multiplexer's per-fd read
// step doesn't allocate on every poll iteration. Uses size-bucketed pools
// with power-of-2 sizes (128KB, 256KB, 512KB, 1MB) to balance memory
// efficiency with allocation reduction.
//
// Uses *[]byte pattern to avoid sync.Pool interface allocation overhead.
var globalPool = struct {
	pool128k sync.Pool
	pool256k sync.Pool
	pool512k sync.Pool
	pool1m   sync.Pool
}{
	pool128k: sync.Pool{New: func() any { b := make([]byte, constants.ReadBufSize128k); return &b }},
	pool256k: sync.Pool{New: func() any { b := make([]byte, constants.ReadBufSize256k); return &b }},
	pool512k: sync.Pool{New: func() any { b := make([]byte, constants.ReadBufSize512k); return &b }},
	pool1m:   sync.Pool{New: func() any { b := make([]byte, constants.ReadBufSize1m); return &b }},
}

// GetBuffer returns a pooled buffer of at least the requested size.
// Caller must call PutBuffer when done.
func GetBuffer(size int) []byte {
	switch {
	case size <= constants.ReadBufSize128k:
		return (*globalPool.pool128k.Get().(*[]byte))[:size]
	case size <= constants.ReadBufSize256k:
		return (*globalPool.pool256k.Get().(*[]byte))[:size]
	case size <= constants.ReadBufSize512k:
		return (*globalPool.pool512k.Get().(*[]byte))[:size]
	case size <= constants.ReadBufSize1m:
		return (*globalPool.pool1m.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

// PutBuffer returns a buffer to the pool. The buffer's capacity determines
// which pool it goes to; buffers with non-standard capacity (grown beyond
// 1MB) are not returned to any pool and are left for the GC.
func PutBuffer(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case constants.ReadBufSize128k:
		globalPool.pool128k.Put(&buf)
	case constants.ReadBufSize256k:
		globalPool.pool256k.Put(&buf)
	case constants.ReadBufSize512k:
		globalPool.pool512k.Put(&buf)
	case constants.ReadBufSize1m:
		globalPool.pool1m.Put(&buf)
	}
}
