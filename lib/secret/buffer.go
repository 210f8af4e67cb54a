// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer is locked memory holding one secret. A Buffer must not be
// copied after creation.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	closed bool
}

// protect moves source into a new Buffer. source is zeroed whether or
// not protection succeeds.
func protect(source []byte) (*Buffer, error) {
	defer Zero(source)
	if len(source) == 0 {
		return nil, fmt.Errorf("secret: nothing to protect")
	}
	region, err := lockedRegion(len(source))
	if err != nil {
		return nil, err
	}
	copy(region, source)
	return &Buffer{data: region}, nil
}

// lockedRegion maps size bytes outside the Go heap, locked into RAM and
// excluded from core dumps.
func lockedRegion(size int) ([]byte, error) {
	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap: %w", err)
	}
	if err := unix.Mlock(region); err != nil {
		unix.Munmap(region)
		return nil, fmt.Errorf("secret: mlock: %w", err)
	}
	if err := unix.Madvise(region, unix.MADV_DONTDUMP); err != nil {
		release(region)
		return nil, fmt.Errorf("secret: madvise(MADV_DONTDUMP): %w", err)
	}
	return region, nil
}

func release(region []byte) error {
	Zero(region)
	if err := unix.Munlock(region); err != nil {
		unix.Munmap(region)
		return fmt.Errorf("secret: munlock: %w", err)
	}
	if err := unix.Munmap(region); err != nil {
		return fmt.Errorf("secret: munmap: %w", err)
	}
	return nil
}

// Bytes returns the locked memory itself. The slice must not outlive
// the Buffer; Bytes panics after Close.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("secret: read from closed buffer")
	}
	return b.data
}

// Close zeros and unmaps the memory. Later calls return nil.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	err := release(b.data)
	b.data = nil
	return err
}

// Zero overwrites data with zeros.
func Zero(data []byte) {
	clear(data)
}
