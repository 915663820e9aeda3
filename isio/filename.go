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
	"fmt"
	"strings"
	"time"

	"github.com/magao-x/ImageStreamIO/internal/config"
	"github.com/magao-x/ImageStreamIO/internal/shm"
)

// segmentPollInterval is how often WaitForSegment checks for the file.
const segmentPollInterval = 10 * time.Millisecond

func validateName(name string) error {
	switch {
	case name == "":
		return errors.New("empty image name")
	case len(name) >= shm.NameMax:
		return fmt.Errorf("image name longer than %d bytes", shm.NameMax-1)
	case strings.ContainsAny(name, "/\x00"):
		return errors.New("image name contains a path separator or NUL")
	}
	return nil
}

func resolveDir(o *options) (string, error) {
	override := o.dir
	if override == "" {
		override = config.ShmDir()
	}
	return shm.ResolveDir(override)
}

// SegmentPath returns the backing file of name, <dir>/<name>.im.shm, where
// dir is the first existing directory among MILK_SHM_DIR, the build-time
// default and /tmp.
func SegmentPath(name string, opts ...Option) (string, error) {
	if err := validateName(name); err != nil {
		return "", newError("filename", name, KindInvalidArgument, err)
	}
	o := applyOptions(opts)
	dir, err := resolveDir(&o)
	if err != nil {
		return "", newError("filename", name, KindFailure, err)
	}
	return shm.SegmentFile(dir, name), nil
}

// Filename returns SegmentPath(name) if it fits a buffer of bufSize bytes
// including a terminating NUL, that is when bufSize > len(path). It fails
// with ErrFailure otherwise.
func Filename(name string, bufSize int) (string, error) {
	path, err := SegmentPath(name)
	if err != nil {
		return "", err
	}
	if bufSize <= len(path) {
		return "", errorf("filename", name, KindFailure, "path needs %d bytes, buffer has %d", len(path)+1, bufSize)
	}
	return path, nil
}

// WaitForSegment blocks until the segment of name exists or ctx is done.
// Readers started before their writer call it ahead of Open.
func WaitForSegment(ctx context.Context, name string, opts ...Option) error {
	path, err := SegmentPath(name, opts...)
	if err != nil {
		return err
	}
	if err := shm.WaitForFile(ctx, path, segmentPollInterval); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return newError("wait", name, KindTimeout, err)
		}
		return err
	}
	return nil
}
