/*
 *
 * Copyright 2025 ImageStreamIO authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package shm

import (
	"errors"
	"fmt"
	"os"
	"unsafe"
)

// ErrUnsupported is returned by segment and semaphore operations on
// platforms without file-backed shared mappings.
var ErrUnsupported = errors.New("shared memory segments not supported on this platform")

// Platform-specific functions (implemented in platform-specific files)
var (
	// unmapMemory unmaps a memory-mapped region
	unmapMemory func([]byte) error
)

// Segment represents a mapped image segment
type Segment struct {
	File *os.File // File backing the segment
	Mem  []byte   // Memory-mapped region
	Path string   // File path
}

// CreateSegment creates and maps a new segment file of the given size.
// The file is created exclusively; callers publish it under its final
// name once the header has been initialized.
func CreateSegment(path string, size int) (*Segment, error) {
	if size < HeaderSize {
		return nil, fmt.Errorf("segment size %d is below header size %d", size, HeaderSize)
	}
	file, mem, err := createMapping(path, size)
	if err != nil {
		return nil, fmt.Errorf("segment create failed: %w", err)
	}
	return &Segment{File: file, Mem: mem, Path: path}, nil
}

// OpenSegment opens and maps an existing segment file and validates its
// header.
func OpenSegment(path string) (*Segment, error) {
	file, mem, err := openMapping(path, HeaderSize)
	if err != nil {
		return nil, fmt.Errorf("segment open failed: %w", err)
	}

	seg := &Segment{File: file, Mem: mem, Path: path}
	if err := ValidateHeader(seg.Header(), int64(len(mem))); err != nil {
		seg.Close()
		return nil, fmt.Errorf("invalid segment header: %w", err)
	}
	return seg, nil
}

// Header returns the image header at the start of the mapping.
func (s *Segment) Header() *ImageHeader {
	return (*ImageHeader)(unsafe.Pointer(&s.Mem[0]))
}

// Data returns the host data buffer that follows the header.
func (s *Segment) Data() []byte {
	h := s.Header()
	off := h.DataOffset()
	return s.Mem[off : off+h.DataSize() : off+h.DataSize()]
}

// Close unmaps the memory and closes the file. The file itself is left
// in place.
func (s *Segment) Close() error {
	var firstErr error

	if s.Mem != nil {
		if err := unmapMemory(s.Mem); err != nil && firstErr == nil {
			firstErr = err
		}
		s.Mem = nil
	}

	if s.File != nil {
		if err := s.File.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.File = nil
	}

	return firstErr
}
