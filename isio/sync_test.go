//go:build unix

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
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magao-x/ImageStreamIO/datatype"
)

func TestWriterReaderHandshake(t *testing.T) {
	useShmDir(t)

	writer, err := Create("stream", []uint32{4, 4, 3}, datatype.Uint32, WithCircularBuffer(), WithSemaphores(2))
	require.NoError(t, err)
	t.Cleanup(func() { writer.Destroy() })

	reader, err := Open("stream")
	require.NoError(t, err)
	defer reader.Close()

	const frames = 7
	ack := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < frames; i++ {
			frame := make([]byte, 4*4*4)
			for j := 0; j < 16; j++ {
				binary.NativeEndian.PutUint32(frame[j*4:], uint32(i))
			}
			assert.NoError(t, writer.WriteFrame(frame))
			// The reader acknowledges before the next frame overwrites the ring.
			<-ack
		}
	}()

	for i := 0; i < frames; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		got, err := reader.ReadFrame(ctx, 1, nil)
		cancel()
		require.NoError(t, err, "frame %d", i)
		require.Len(t, got, 64)
		assert.Equal(t, uint32(i), binary.NativeEndian.Uint32(got), "frame %d", i)
		assert.Equal(t, uint64((i+1)%3), reader.LastWroteIndex())
		ack <- struct{}{}
	}
	wg.Wait()

	md := reader.Metadata()
	assert.Equal(t, uint64(frames), md.Cnt0)
	assert.False(t, md.Write)
	assert.False(t, md.LastAccessTime.Before(md.CreationTime))

	// Semaphore 0 has no reader and accumulated every post.
	v, err := reader.SemValue(0)
	require.NoError(t, err)
	assert.Equal(t, frames, v)
}

func TestSemTimedWaitTimeout(t *testing.T) {
	useShmDir(t)

	img, err := Create("quiet", []uint32{8}, datatype.Float, WithWaitTimeout(50*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { img.Destroy() })

	start := time.Now()
	err = img.SemTimedWait(0, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Less(t, time.Since(start), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, img.SemWait(ctx, 0), context.Canceled)

	_, err = img.ReadFrame(context.Background(), 0, nil)
	assert.ErrorIs(t, err, ErrTimeout, "ReadFrame falls back to the wait timeout")
}

func TestSemPostFlushTryWait(t *testing.T) {
	useShmDir(t)

	img, err := Create("posts", []uint32{8}, datatype.Float, WithSemaphores(3))
	require.NoError(t, err)
	t.Cleanup(func() { img.Destroy() })

	require.NoError(t, img.SemPost(AllSemaphores))
	require.NoError(t, img.SemPost(2))
	for i, want := range []int{1, 1, 2} {
		v, err := img.SemValue(i)
		require.NoError(t, err)
		assert.Equal(t, want, v, "semaphore %d", i)
	}

	ok, err := img.SemTryWait(0)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = img.SemTryWait(0)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := img.SemFlush(2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = img.SemFlush(AllSemaphores)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, img.SemPost(3), ErrInvalidArgument)
	assert.ErrorIs(t, img.SemPost(-2), ErrInvalidArgument)
	_, err = img.SemValue(99)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestWriteFrameSize(t *testing.T) {
	useShmDir(t)

	img, err := Create("sized", []uint32{4, 4}, datatype.Double)
	require.NoError(t, err)
	t.Cleanup(func() { img.Destroy() })

	err = img.WriteFrame(make([]byte, 10))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.False(t, img.Metadata().Write, "a rejected write clears the flag")
	assert.Zero(t, img.Cnt0())

	buf := img.BeginWrite()
	assert.True(t, img.Metadata().Write)
	require.NoError(t, datatype.EncodeFloat64(datatype.Double, buf, make([]float64, 16)))
	require.NoError(t, img.UpdateImage())
	assert.False(t, img.Metadata().Write)
	assert.Equal(t, uint64(1), img.Cnt0())
	assert.Equal(t, uint64(0), img.LastWroteIndex())
}

func TestCircularWriteWraps(t *testing.T) {
	useShmDir(t)

	img, err := Create("ring", []uint32{2, 2, 3}, datatype.Uint8, WithCircularBuffer(), WithSemaphores(1))
	require.NoError(t, err)
	t.Cleanup(func() { img.Destroy() })

	var seen []uint64
	for i := 0; i < 5; i++ {
		assert.Equal(t, uint64((i+1)%3), img.WriteIndex())
		require.NoError(t, img.WriteFrame([]byte{byte(i), 0, 0, 0}))
		seen = append(seen, img.LastWroteIndex())
	}
	assert.Equal(t, []uint64{1, 2, 0, 1, 2}, seen)

	slice, err := img.ReadBufferAt(0)
	require.NoError(t, err)
	assert.Equal(t, byte(2), slice[0])

	last, err := img.ReadLastWroteBuffer()
	require.NoError(t, err)
	assert.Equal(t, byte(4), last[0])
}

func TestReadFrameUnknownSemaphore(t *testing.T) {
	useShmDir(t)

	img, err := Create("alive", []uint32{1}, datatype.Uint8)
	require.NoError(t, err)
	t.Cleanup(func() { img.Destroy() })
	assert.True(t, img.WriterAlive())

	_, err = img.ReadFrame(context.Background(), 5000, nil)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}
