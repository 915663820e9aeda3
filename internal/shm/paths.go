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
	"path/filepath"

	"github.com/google/uuid"
)

// DefaultDir is the build-time default segment directory, set with
//
//	-ldflags "-X github.com/magao-x/ImageStreamIO/internal/shm.DefaultDir=/path"
var DefaultDir = "/milk/shm"

const (
	// FallbackDir is used when neither the override nor DefaultDir exists.
	FallbackDir = "/tmp"

	// SegmentSuffix is appended to the image name to form the file name.
	SegmentSuffix = ".im.shm"

	// MaxSemaphores is the number of semaphore names available per image.
	MaxSemaphores = 100
)

// ErrNoDirectory is returned when no candidate segment directory exists.
var ErrNoDirectory = errors.New("no shared memory directory available")

// ResolveDir returns the first existing directory among override (when
// non-empty), DefaultDir and FallbackDir. Symbolic links are not followed.
func ResolveDir(override string) (string, error) {
	candidates := []string{DefaultDir, FallbackDir}
	if override != "" {
		candidates = append([]string{override}, candidates...)
	}
	for _, dir := range candidates {
		info, err := os.Lstat(dir)
		if err == nil && info.IsDir() {
			return dir, nil
		}
	}
	return "", ErrNoDirectory
}

// SegmentFile returns <dir>/<name>.im.shm.
func SegmentFile(dir, name string) string {
	return dir + "/" + name + SegmentSuffix
}

// SemaphoreFile returns <dir>/sem.<name>_semNN.
func SemaphoreFile(dir, name string, index int) string {
	return fmt.Sprintf("%s/sem.%s_sem%02d", dir, name, index)
}

// TempFile returns a unique hidden path in dir for building an artifact
// before it is renamed into place.
func TempFile(dir string) string {
	return dir + "/.isio-" + uuid.NewString() + ".tmp"
}

// SegmentExists reports whether a segment file exists at path.
func SegmentExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Artifacts lists the segment and semaphore files present for name.
func Artifacts(dir, name string) ([]string, error) {
	var found []string
	if seg := SegmentFile(dir, name); SegmentExists(seg) {
		found = append(found, seg)
	}
	sems, err := filepath.Glob(escapeGlob(dir) + "/sem." + escapeGlob(name) + "_sem[0-9][0-9]")
	if err != nil {
		return nil, fmt.Errorf("listing semaphores for %s: %w", name, err)
	}
	return append(found, sems...), nil
}

// RemoveArtifacts removes the segment and every semaphore file of name.
// Missing files are not an error, so it is safe to call from any process
// and more than once.
func RemoveArtifacts(dir, name string) (int, error) {
	paths, err := Artifacts(dir, name)
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err == nil {
			removed++
		} else if !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return removed, errors.Join(errs...)
}

// escapeGlob quotes the glob metacharacters of s.
func escapeGlob(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
