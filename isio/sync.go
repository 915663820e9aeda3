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

package isio

import (
	"context"
	"errors"
	"time"

	"github.com/magao-x/ImageStreamIO/internal/logging"
	"github.com/magao-x/ImageStreamIO/internal/metrics"
	"github.com/magao-x/ImageStreamIO/internal/shm"
)

// AllSemaphores addresses every semaphore of an image in SemPost and
// SemFlush.
const AllSemaphores = -1

var errClosed = errors.New("image closed")

// semaphore returns semaphore index, checking the handle state.
func (img *Image) semaphore(op string, index int) (*shm.Semaphore, error) {
	if img.closed.Load() {
		return nil, newError(op, img.name, KindFailure, errClosed)
	}
	if index < 0 || index >= len(img.sems) {
		return nil, errorf(op, img.name, KindInvalidArgument, "semaphore %d outside 0..%d", index, len(img.sems)-1)
	}
	return img.sems[index], nil
}

// BeginWrite raises the write in progress flag and returns the slice the
// next write goes to. UpdateImage clears the flag.
func (img *Image) BeginWrite() []byte {
	img.hdr.SetWriting(true)
	return img.WriteBuffer()
}

// UpdateImage publishes the slice filled since the last update. For a
// circular image cnt1 advances to that slice; then cnt0 is incremented and
// every semaphore is posted, in that order, so a reader woken by a post
// sees the counters of the completed write.
func (img *Image) UpdateImage() error {
	if img.closed.Load() {
		return newError("update", img.name, KindFailure, errClosed)
	}
	md := img.layout()
	if md.IsCircular() {
		img.hdr.SetCnt1(WriteIndex(&md))
	}
	img.hdr.IncrementCnt0()
	img.hdr.SetLastAccessTime(time.Now().UnixNano())
	img.hdr.SetWriting(false)
	metrics.RecordFrameWritten()
	return img.SemPost(AllSemaphores)
}

// WriteFrame copies frame into the next write slice and publishes it.
// frame must be exactly one slice for a circular image and the whole
// buffer otherwise.
func (img *Image) WriteFrame(frame []byte) error {
	if img.closed.Load() {
		return newError("write", img.name, KindFailure, errClosed)
	}
	buf := img.BeginWrite()
	if len(frame) != len(buf) {
		img.hdr.SetWriting(false)
		return errorf("write", img.name, KindInvalidArgument, "frame has %d bytes, want %d", len(frame), len(buf))
	}
	copy(buf, frame)
	return img.UpdateImage()
}

// SemPost posts semaphore index, or every semaphore for AllSemaphores.
func (img *Image) SemPost(index int) error {
	if index == AllSemaphores {
		if img.closed.Load() {
			return newError("post", img.name, KindFailure, errClosed)
		}
		var errs []error
		posted := 0
		for _, sem := range img.sems {
			if err := sem.Post(); err != nil {
				errs = append(errs, err)
				continue
			}
			posted++
		}
		metrics.RecordSemaphorePosts(posted)
		if err := errors.Join(errs...); err != nil {
			return newError("post", img.name, KindFailure, err)
		}
		return nil
	}

	sem, err := img.semaphore("post", index)
	if err != nil {
		return err
	}
	if err := sem.Post(); err != nil {
		return newError("post", img.name, KindFailure, err)
	}
	metrics.RecordSemaphorePosts(1)
	return nil
}

// SemWait waits until semaphore index is posted and decrements it. When
// ctx expires the error matches ErrTimeout; a canceled ctx returns
// ctx.Err() unchanged. Without a deadline on ctx the wait is unbounded.
func (img *Image) SemWait(ctx context.Context, index int) error {
	sem, err := img.semaphore("wait", index)
	if err != nil {
		return err
	}

	err = sem.Wait(ctx)
	switch {
	case err == nil:
		metrics.RecordSemaphoreWait(metrics.WaitOK)
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		metrics.RecordSemaphoreWait(metrics.WaitTimeout)
		img.log.V(logging.DEBUG).Info("Semaphore wait timed out", "semaphore", index, "writerAlive", img.WriterAlive())
		return newError("wait", img.name, KindTimeout, err)
	case errors.Is(err, context.Canceled):
		metrics.RecordSemaphoreWait(metrics.WaitCanceled)
		return err
	default:
		return newError("wait", img.name, KindFailure, err)
	}
}

// SemTimedWait is SemWait bounded by timeout.
func (img *Image) SemTimedWait(index int, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return img.SemWait(ctx, index)
}

// SemTryWait decrements semaphore index if it is positive and reports
// whether it did.
func (img *Image) SemTryWait(index int) (bool, error) {
	sem, err := img.semaphore("trywait", index)
	if err != nil {
		return false, err
	}
	return sem.TryWait(), nil
}

// SemFlush drains semaphore index, or every semaphore for AllSemaphores,
// and returns the number of posts discarded. Readers flush before waiting
// to skip frames published while they were busy.
func (img *Image) SemFlush(index int) (int, error) {
	if index == AllSemaphores {
		if img.closed.Load() {
			return 0, newError("flush", img.name, KindFailure, errClosed)
		}
		n := 0
		for _, sem := range img.sems {
			n += sem.Flush()
		}
		return n, nil
	}
	sem, err := img.semaphore("flush", index)
	if err != nil {
		return 0, err
	}
	return sem.Flush(), nil
}

// SemValue returns the current value of semaphore index.
func (img *Image) SemValue(index int) (int, error) {
	sem, err := img.semaphore("value", index)
	if err != nil {
		return 0, err
	}
	return int(sem.Value()), nil
}

// ReadFrame waits on semaphore index and appends the slice written last to
// dst. A ctx without deadline is bounded by the image's wait timeout.
func (img *Image) ReadFrame(ctx context.Context, index int, dst []byte) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok && img.waitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, img.waitTimeout)
		defer cancel()
	}
	if err := img.SemWait(ctx, index); err != nil {
		return dst, err
	}
	buf, err := img.ReadLastWroteBuffer()
	if err != nil {
		return dst, errorf("read", img.name, KindFailure, "last written slice %d out of range", img.hdr.Cnt1())
	}
	return append(dst, buf...), nil
}

// WriterAlive reports whether the process that created the image still
// exists. A writer that exited but was not yet reaped by its parent still
// counts as alive.
func (img *Image) WriterAlive() bool {
	return shm.ProcessAlive(int(img.hdr.CreatorPID()))
}
