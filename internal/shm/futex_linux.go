//go:build linux

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
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux futex operations. The futex words live in MAP_SHARED file
// mappings used by several processes, so the private variants are not
// usable here.
const (
	futexWaitOp = 0 // FUTEX_WAIT
	futexWakeOp = 1 // FUTEX_WAKE
)

// futexWaitTimeout waits on addr until the value changes from val or
// timeoutNs elapses. It returns ErrFutexTimeout when the wait times out.
//
// Callers must re-check their condition after a nil return: wakeups may
// be spurious and EINTR is reported as a plain return.
func futexWaitTimeout(addr *uint32, val uint32, timeoutNs int64) error {
	// Re-check the value before entering the syscall so a post that
	// landed between the caller's snapshot and here is not lost.
	if atomic.LoadUint32(addr) != val {
		return nil
	}

	var tsp uintptr
	var ts unix.Timespec
	if timeoutNs > 0 {
		ts = unix.NsecToTimespec(timeoutNs)
		tsp = uintptr(unsafe.Pointer(&ts))
	}

	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)), // uaddr
		futexWaitOp,                   // futex_op
		uintptr(val),                  // expected value
		tsp,                           // relative timeout, NULL waits forever
		0,                             // uaddr2 - unused
		0,                             // val3 - unused
	)

	switch errno {
	case 0, unix.EAGAIN, unix.EINTR:
		return nil
	case unix.ETIMEDOUT:
		return ErrFutexTimeout
	default:
		return fmt.Errorf("futex wait failed: %w", errno)
	}
}

// futexWake wakes up to n waiters on addr in any process and returns the
// number actually woken.
func futexWake(addr *uint32, n int) (int, error) {
	r1, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)), // uaddr
		futexWakeOp,                   // futex_op
		uintptr(n),                    // number of waiters to wake
		0, 0, 0,
	)
	if errno != 0 {
		return 0, fmt.Errorf("futex wake failed: %w", errno)
	}
	return int(r1), nil
}
