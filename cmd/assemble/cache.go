package main

import "runtime"

// coldCacheBytes is large enough to evict the last level cache of common
// server parts.
const coldCacheBytes = 64 << 20

// cacheLine is the stride used to touch the eviction buffer.
const cacheLine = 64

// cacheFlusher evicts the working set between timed launches so each
// launch starts from memory instead of cache.
type cacheFlusher struct {
	buf  []byte
	sink byte
}

func newCacheFlusher(size int) *cacheFlusher {
	return &cacheFlusher{buf: make([]byte, size)}
}

// flush writes one byte per line in two passes with different patterns,
// then reads them back so the stores cannot be elided.
func (f *cacheFlusher) flush() {
	if f == nil {
		return
	}
	for i := 0; i < len(f.buf); i += cacheLine {
		f.buf[i] = byte(i)
	}
	for i := 0; i < len(f.buf); i += cacheLine {
		f.buf[i] = byte(i * 7)
	}
	var s byte
	for i := 0; i < len(f.buf); i += cacheLine {
		s ^= f.buf[i]
	}
	f.sink = s
	runtime.KeepAlive(f.buf)
}
