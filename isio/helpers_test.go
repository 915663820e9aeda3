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
	"errors"
	"testing"
)

// useShmDir points MILK_SHM_DIR at a fresh directory for the test.
func useShmDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MILK_SHM_DIR", dir)
	return dir
}

// fakeDevice hands out host slices in place of device memory.
type fakeDevice struct {
	allocated int
	freed     int
	fail      bool
}

type fakeBuffer struct {
	dev *fakeDevice
	buf []byte
}

func (d *fakeDevice) Allocate(location int, size uint64) (DeviceBuffer, error) {
	if d.fail {
		return nil, errors.New("device out of memory")
	}
	d.allocated++
	return &fakeBuffer{dev: d, buf: make([]byte, size)}, nil
}

func (b *fakeBuffer) Bytes() []byte { return b.buf }

func (b *fakeBuffer) Free() error {
	b.dev.freed++
	return nil
}
