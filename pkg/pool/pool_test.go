// Unit tests for buffer pools
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package pool

import (
	"sync"
	"testing"
)

func TestByteBuffer(t *testing.T) {
	b := GetByteBuffer()
	if b == nil {
		t.Fatal("GetByteBuffer returned nil")
	}

	b.WriteString("/processing/output/1/gain")
	b.WriteByte('=')
	b.Write([]byte("0"))

	if b.Len() != 27 {
		t.Errorf("expected length 27, got %d", b.Len())
	}
	if string(b.Bytes()) != "/processing/output/1/gain=0" {
		t.Errorf("unexpected content: %s", string(b.Bytes()))
	}

	PutByteBuffer(b)

	// Get again - should be reset
	b2 := GetByteBuffer()
	if b2.Len() != 0 {
		t.Errorf("pooled buffer should be empty, got length %d", b2.Len())
	}
	PutByteBuffer(b2)
}

func TestByteBufferSetBytes(t *testing.T) {
	b := GetByteBuffer()
	defer PutByteBuffer(b)

	b.SetBytes(append(b.Bytes()[:0], "/a=1\n"...))
	if string(b.Bytes()) != "/a=1\n" {
		t.Errorf("unexpected content: %q", b.Bytes())
	}
	before := b.Cap()
	b.SetBytes(append(b.Bytes()[:0], "/b=2\n"...))
	if string(b.Bytes()) != "/b=2\n" {
		t.Errorf("unexpected content: %q", b.Bytes())
	}
	if b.Cap() != before {
		t.Errorf("capacity changed from %d to %d", before, b.Cap())
	}
}

func TestByteBufferReset(t *testing.T) {
	b := GetByteBuffer()
	b.WriteString("test data")
	b.Reset()

	if b.Len() != 0 {
		t.Errorf("after Reset, length should be 0, got %d", b.Len())
	}
	PutByteBuffer(b)
}

func TestByteBufferOversized(t *testing.T) {
	b := GetByteBuffer()
	b.Write(make([]byte, 5000))

	// Dropped rather than pooled
	PutByteBuffer(b)

	b2 := GetByteBuffer()
	if b2.Len() != 0 {
		t.Errorf("new buffer should be empty, got length %d", b2.Len())
	}
	PutByteBuffer(b2)
}

func TestByteBufferNil(t *testing.T) {
	// Should not panic
	PutByteBuffer(nil)
}

func TestStats(t *testing.T) {
	before := GetStats()
	b := GetByteBuffer()
	PutByteBuffer(b)
	after := GetStats()

	if after.Gets != before.Gets+1 {
		t.Errorf("expected gets to grow by 1, got %d -> %d", before.Gets, after.Gets)
	}
	if after.Misses > after.Gets {
		t.Errorf("misses %d exceed gets %d", after.Misses, after.Gets)
	}
}

func TestByteBufferPoolConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	iterations := 1000
	goroutines := 10

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				b := GetByteBuffer()
				b.WriteString("/processing/link_group/1/bypass='false'\n")
				PutByteBuffer(b)
			}
		}()
	}

	wg.Wait()
}

func BenchmarkByteBufferPool(b *testing.B) {
	data := []byte("/processing/output/12/delay_integration/delay_samples=240\n")
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		buf := GetByteBuffer()
		buf.Write(data)
		PutByteBuffer(buf)
	}
}

func BenchmarkByteBufferNoPool(b *testing.B) {
	data := []byte("/processing/output/12/delay_integration/delay_samples=240\n")
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		buf := make([]byte, 0, 128)
		buf = append(buf, data...)
		_ = buf
	}
}
