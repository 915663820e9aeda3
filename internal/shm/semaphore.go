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
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"
	"unsafe"
)

const (
	// SemaphoreMagic identifies a semaphore file
	SemaphoreMagic = "ISIOSEM\x00"

	// SemaphoreSize is the size of a semaphore file
	SemaphoreSize = 64

	// maxWaitSlice caps a single futex sleep so cancellation of the
	// caller's context is noticed promptly.
	maxWaitSlice = 100 * time.Millisecond
)

// ErrSemaphoreClosed is returned by operations on a closed semaphore.
var ErrSemaphoreClosed = errors.New("semaphore closed")

// semHeader is the layout of a semaphore file.
type semHeader struct {
	magic    [8]byte  // 0x00: "ISIOSEM\0"
	version  uint32   // 0x08: layout version
	count    uint32   // 0x0C: semaphore value, also the futex word
	waiters  uint32   // 0x10: processes currently sleeping on count
	pad      uint32   // 0x14: padding
	posts    uint64   // 0x18: total number of posts
	reserved [32]byte // 0x20-0x3F: reserved/padding to 64B
}

// Semaphore is a counting semaphore shared between processes through a
// small mapped file.
type Semaphore struct {
	File *os.File // File backing the semaphore
	Mem  []byte   // Memory-mapped region
	Path string   // File path
}

// CreateSemaphore exclusively creates a semaphore file with value zero.
func CreateSemaphore(path string) (*Semaphore, error) {
	file, mem, err := createMapping(path, SemaphoreSize)
	if err != nil {
		return nil, fmt.Errorf("semaphore create failed: %w", err)
	}
	s := &Semaphore{File: file, Mem: mem, Path: path}
	h := s.header()
	copy(h.magic[:], SemaphoreMagic)
	atomic.StoreUint32(&h.version, HeaderVersion)
	return s, nil
}

// OpenSemaphore maps an existing semaphore file.
func OpenSemaphore(path string) (*Semaphore, error) {
	file, mem, err := openMapping(path, SemaphoreSize)
	if err != nil {
		return nil, fmt.Errorf("semaphore open failed: %w", err)
	}
	s := &Semaphore{File: file, Mem: mem, Path: path}
	h := s.header()
	if string(h.magic[:]) != SemaphoreMagic || atomic.LoadUint32(&h.version) != HeaderVersion {
		s.Close()
		return nil, fmt.Errorf("invalid semaphore file %s", path)
	}
	return s, nil
}

func (s *Semaphore) header() *semHeader {
	return (*semHeader)(unsafe.Pointer(&s.Mem[0]))
}

// Value returns the current semaphore value.
func (s *Semaphore) Value() uint32 {
	if s.Mem == nil {
		return 0
	}
	return atomic.LoadUint32(&s.header().count)
}

// Posts returns the number of posts since creation.
func (s *Semaphore) Posts() uint64 {
	if s.Mem == nil {
		return 0
	}
	return atomic.LoadUint64(&s.header().posts)
}

// Post increments the semaphore and wakes one sleeping waiter, if any.
func (s *Semaphore) Post() error {
	if s.Mem == nil {
		return ErrSemaphoreClosed
	}
	h := s.header()
	atomic.AddUint32(&h.count, 1)
	atomic.AddUint64(&h.posts, 1)

	// A waiter that registered after this load re-checks count inside
	// futexWaitTimeout and returns without sleeping.
	if atomic.LoadUint32(&h.waiters) > 0 {
		if _, err := futexWake(&h.count, 1); err != nil {
			return err
		}
	}
	return nil
}

// TryWait decrements the semaphore if its value is positive.
func (s *Semaphore) TryWait() bool {
	if s.Mem == nil {
		return false
	}
	h := s.header()
	for {
		v := atomic.LoadUint32(&h.count)
		if v == 0 {
			return false
		}
		if atomic.CompareAndSwapUint32(&h.count, v, v-1) {
			return true
		}
	}
}

// Wait decrements the semaphore, sleeping until it is posted or ctx is
// done. Without a deadline on ctx the wait is unbounded.
func (s *Semaphore) Wait(ctx context.Context) error {
	if s.Mem == nil {
		return ErrSemaphoreClosed
	}
	h := s.header()
	for {
		if s.TryWait() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		slice := maxWaitSlice
		if deadline, ok := ctx.Deadline(); ok {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return context.DeadlineExceeded
			}
			if remaining < slice {
				slice = remaining
			}
		}

		atomic.AddUint32(&h.waiters, 1)
		err := futexWaitTimeout(&h.count, 0, int64(slice))
		atomic.AddUint32(&h.waiters, ^uint32(0))
		if err != nil && !errors.Is(err, ErrFutexTimeout) {
			return err
		}
	}
}

// Flush drains the semaphore and returns how many posts were discarded.
func (s *Semaphore) Flush() int {
	n := 0
	for s.TryWait() {
		n++
	}
	return n
}

// Close unmaps the semaphore. The file is left in place.
func (s *Semaphore) Close() error {
	var firstErr error
	if s.Mem != nil {
		if err := unmapMemory(s.Mem); err != nil {
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
