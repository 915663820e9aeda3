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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilename(t *testing.T) {
	dir := useShmDir(t)
	want := filepath.Join(dir, "imtest00.im.shm")
	l := len(want)

	_, err := Filename("imtest00", l)
	assert.ErrorIs(t, err, ErrFailure)

	got, err := Filename("imtest00", l+1)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = Filename("imtest00", 0)
	assert.ErrorIs(t, err, ErrFailure)
}

func TestSegmentPathOverride(t *testing.T) {
	useShmDir(t)
	other := t.TempDir()

	got, err := SegmentPath("x", WithDir(other))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(other, "x.im.shm"), got)

	_, err = SegmentPath("")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, validateName("dm00disp"))
	assert.Error(t, validateName(""))
	assert.Error(t, validateName("a/b"))
	assert.Error(t, validateName("nul\x00"))

	long := make([]byte, 80)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, validateName(string(long)))
	assert.NoError(t, validateName(string(long[:79])))
}

func TestWaitForSegment(t *testing.T) {
	dir := useShmDir(t)

	go func() {
		time.Sleep(30 * time.Millisecond)
		os.WriteFile(filepath.Join(dir, "late.im.shm"), nil, 0o644)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, WaitForSegment(ctx, "late"))

	ctx2, cancel2 := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel2()
	assert.ErrorIs(t, WaitForSegment(ctx2, "never"), ErrTimeout)
}
