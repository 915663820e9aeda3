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
	"testing"
)

// createTestSegment creates a segment in a per-test directory and
// registers cleanup with t.Cleanup() so the mapping is always released.
func createTestSegment(t *testing.T, name string, dataSize int) (*Segment, string) {
	t.Helper()

	dir := t.TempDir()
	path := SegmentFile(dir, name)

	seg, err := CreateSegment(path, HeaderSize+dataSize)
	if err != nil {
		t.Fatalf("Failed to create test segment %s: %v", path, err)
	}

	t.Cleanup(func() {
		seg.Close()
		RemoveArtifacts(dir, name)
	})

	return seg, dir
}

// createTestSemaphore creates a semaphore file in a per-test directory.
func createTestSemaphore(t *testing.T) *Semaphore {
	t.Helper()

	path := SemaphoreFile(t.TempDir(), "test", 0)
	sem, err := CreateSemaphore(path)
	if err != nil {
		t.Fatalf("Failed to create test semaphore %s: %v", path, err)
	}
	t.Cleanup(func() { sem.Close() })
	return sem
}
