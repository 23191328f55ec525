// Buffer pools for the command write path
//
// Every command sent to or echoed by the device is encoded into a line
// buffer first; pooling them keeps large factory-reset batches from
// allocating per line.
//
// Usage:
//
//	b := pool.GetByteBuffer()
//	defer pool.PutByteBuffer(b)
//	b.SetBytes(protocol.AppendLine(b.Bytes()[:0], cmd))
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package pool

import (
	"sync"
	"sync/atomic"
)

// maxPooledCap bounds buffers returned to the pool
const maxPooledCap = 4096

// ByteBuffer is a reusable byte slice
type ByteBuffer struct {
	buf []byte
}

var byteBufferPool = sync.Pool{
	New: func() any {
		misses.Add(1)
		return &ByteBuffer{
			buf: make([]byte, 0, 128), // Typical command line
		}
	},
}

var gets, misses atomic.Uint64

// GetByteBuffer gets an empty byte buffer from the pool
func GetByteBuffer() *ByteBuffer {
	gets.Add(1)
	b := byteBufferPool.Get().(*ByteBuffer)
	b.buf = b.buf[:0]
	return b
}

// PutByteBuffer returns a byte buffer to the pool
func PutByteBuffer(b *ByteBuffer) {
	if b == nil {
		return
	}
	// Don't pool oversized buffers
	if cap(b.buf) > maxPooledCap {
		return
	}
	byteBufferPool.Put(b)
}

// Bytes returns the buffer's byte slice
func (b *ByteBuffer) Bytes() []byte {
	return b.buf
}

// SetBytes replaces the contents, typically with the result of an append
// onto Bytes()[:0] so the capacity is reused.
func (b *ByteBuffer) SetBytes(p []byte) {
	b.buf = p
}

// Write appends bytes to the buffer
func (b *ByteBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// WriteByte appends a single byte
func (b *ByteBuffer) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

// WriteString appends a string
func (b *ByteBuffer) WriteString(s string) (int, error) {
	b.buf = append(b.buf, s...)
	return len(s), nil
}

// Len returns the buffer length
func (b *ByteBuffer) Len() int {
	return len(b.buf)
}

// Cap returns the buffer capacity
func (b *ByteBuffer) Cap() int {
	return cap(b.buf)
}

// Reset clears the buffer
func (b *ByteBuffer) Reset() {
	b.buf = b.buf[:0]
}

// Stats holds pool usage counters
type Stats struct {
	Gets   uint64
	Misses uint64
}

// GetStats returns the counters since process start. Misses count new
// allocations, so Gets-Misses is the number of reused buffers.
func GetStats() Stats {
	return Stats{Gets: gets.Load(), Misses: misses.Load()}
}
