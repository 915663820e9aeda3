//go:build !linux

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
	"sync/atomic"
	"time"
)

// pollInterval bounds each sleep of the polling fallback.
const pollInterval = time.Millisecond

// futexWaitTimeout has no kernel support here; it sleeps for a short
// interval and lets the caller re-check, which the futex contract already
// requires because of spurious wakeups.
func futexWaitTimeout(addr *uint32, val uint32, timeoutNs int64) error {
	if atomic.LoadUint32(addr) != val {
		return nil
	}
	d := pollInterval
	if timeoutNs > 0 && time.Duration(timeoutNs) < d {
		d = time.Duration(timeoutNs)
	}
	time.Sleep(d)
	return nil
}

// futexWake is a no-op; waiters poll.
func futexWake(addr *uint32, n int) (int, error) {
	return 0, nil
}
