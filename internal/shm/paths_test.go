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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDir(t *testing.T) {
	orig := DefaultDir
	t.Cleanup(func() { DefaultDir = orig })

	override := t.TempDir()
	def := t.TempDir()
	DefaultDir = def

	tests := []struct {
		name     string
		override string
		want     string
	}{
		{"override wins", override, override},
		{"empty override uses default", "", def},
		{"missing override uses default", filepath.Join(override, "missing"), def},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveDir(tt.override)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("fallback when default missing", func(t *testing.T) {
		DefaultDir = filepath.Join(def, "missing")
		got, err := ResolveDir("")
		require.NoError(t, err)
		assert.Equal(t, FallbackDir, got)
	})
}

func TestResolveDirIgnoresSymlinks(t *testing.T) {
	orig := DefaultDir
	t.Cleanup(func() { DefaultDir = orig })

	base := t.TempDir()
	link := filepath.Join(base, "link")
	require.NoError(t, os.Symlink(t.TempDir(), link))

	def := t.TempDir()
	DefaultDir = def
	got, err := ResolveDir(link)
	require.NoError(t, err)
	assert.Equal(t, def, got)
}

func TestArtifactNames(t *testing.T) {
	assert.Equal(t, "/tmp/im1.im.shm", SegmentFile("/tmp", "im1"))
	assert.Equal(t, "/tmp/sem.im1_sem00", SemaphoreFile("/tmp", "im1", 0))
	assert.Equal(t, "/tmp/sem.im1_sem42", SemaphoreFile("/tmp", "im1", 42))

	a, b := TempFile("/tmp"), TempFile("/tmp")
	assert.NotEqual(t, a, b)
	assert.Equal(t, "/tmp", filepath.Dir(a))
}

func TestRemoveArtifacts(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{
		SegmentFile(dir, "cam"),
		SemaphoreFile(dir, "cam", 0),
		SemaphoreFile(dir, "cam", 1),
		SemaphoreFile(dir, "camera", 0), // different image, must survive
	} {
		require.NoError(t, os.WriteFile(p, nil, 0o644))
	}

	found, err := Artifacts(dir, "cam")
	require.NoError(t, err)
	assert.Len(t, found, 3)

	n, err := RemoveArtifacts(dir, "cam")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = RemoveArtifacts(dir, "cam")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "second removal finds nothing")

	assert.FileExists(t, SemaphoreFile(dir, "camera", 0))
}

func TestArtifactsEscapesGlob(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(SemaphoreFile(dir, "a", 0), nil, 0o644))

	found, err := Artifacts(dir, "*")
	require.NoError(t, err)
	assert.Empty(t, found)
}
