// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package chaos

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// mappedFile is a read-only memory mapping of a whole file. Every
// decoder (serial and parallel whole-document, and selective) reads
// directly out of data rather than through the os.File, so a single
// mapping can be shared lock-free across worker goroutines.
type mappedFile struct {
	fd   int
	data []byte
}

// openMapped opens path and maps its full contents read-only,
// private (COW semantics, irrelevant here since nothing writes to the
// mapping).
func openMapped(path string) (*mappedFile, error) {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("chaos: opening %s: %w", path, err)
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("chaos: stating %s: %w", path, err)
	}
	if stat.Size == 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: file %s is empty", ErrMalformedInput, path)
	}

	data, err := unix.Mmap(fd, 0, int(stat.Size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("chaos: memory-mapping %s: %w", path, err)
	}

	return &mappedFile{fd: fd, data: data}, nil
}

// bytes returns the mapped region. All three decoders slice it
// directly for zero-copy access to string and container data rather
// than copying through a bounds-checked reader; callers are
// responsible for keeping offsets within len(m.data), which parseHeader
// and the container-header readers already validate before any
// decoder slices into the mapping.
func (m *mappedFile) bytes() []byte { return m.data }

// close unmaps and closes the underlying file descriptor.
func (m *mappedFile) close() error {
	var firstErr error
	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			firstErr = fmt.Errorf("chaos: unmapping: %w", err)
		}
		m.data = nil
	}
	if err := unix.Close(m.fd); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("chaos: closing fd: %w", err)
	}
	m.fd = -1
	return firstErr
}
