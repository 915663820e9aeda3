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

package shm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphorePostTryWait(t *testing.T) {
	sem := createTestSemaphore(t)

	assert.Equal(t, uint32(0), sem.Value())
	assert.False(t, sem.TryWait())

	require.NoError(t, sem.Post())
	require.NoError(t, sem.Post())
	assert.Equal(t, uint32(2), sem.Value())
	assert.Equal(t, uint64(2), sem.Posts())

	assert.True(t, sem.TryWait())
	assert.True(t, sem.TryWait())
	assert.False(t, sem.TryWait())
	assert.Equal(t, uint64(2), sem.Posts(), "posts is a lifetime total")
}

func TestSemaphoreWaitTimeout(t *testing.T) {
	sem := createTestSemaphore(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := sem.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestSemaphoreWaitCanceled(t *testing.T) {
	sem := createTestSemaphore(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sem.Wait(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not observe cancellation")
	}
}

func TestSemaphoreWaitWokenByPost(t *testing.T) {
	sem := createTestSemaphore(t)

	go func() {
		time.Sleep(30 * time.Millisecond)
		sem.Post()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sem.Wait(ctx))
	assert.Equal(t, uint32(0), sem.Value())
}

func TestSemaphoreSharedBetweenMappings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sem.shared_sem00")
	a, err := CreateSemaphore(path)
	require.NoError(t, err)
	defer a.Close()

	b, err := OpenSemaphore(path)
	require.NoError(t, err)
	defer b.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, b.Wait(ctx))
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, a.Post())
	wg.Wait()
	assert.Equal(t, uint64(1), b.Posts())
}

func TestSemaphoreFlush(t *testing.T) {
	sem := createTestSemaphore(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, sem.Post())
	}
	assert.Equal(t, 5, sem.Flush())
	assert.Equal(t, uint32(0), sem.Value())
	assert.Equal(t, 0, sem.Flush())
}

func TestSemaphoreClosed(t *testing.T) {
	sem := createTestSemaphore(t)
	require.NoError(t, sem.Close())

	assert.ErrorIs(t, sem.Post(), ErrSemaphoreClosed)
	assert.ErrorIs(t, sem.Wait(context.Background()), ErrSemaphoreClosed)
	assert.False(t, sem.TryWait())
	assert.NoError(t, sem.Close(), "second Close is a no-op")
}

func TestOpenSemaphoreRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sem.bogus_sem00")
	require.NoError(t, os.WriteFile(path, make([]byte, SemaphoreSize), 0o644))

	_, err := OpenSemaphore(path)
	assert.Error(t, err)

	_, err = OpenSemaphore(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCreateSemaphoreExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sem.excl_sem00")
	sem, err := CreateSemaphore(path)
	require.NoError(t, err)
	defer sem.Close()

	_, err = CreateSemaphore(path)
	assert.ErrorIs(t, err, os.ErrExist)
}
