//go:build !unix

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

import "os"

func init() {
	unmapMemory = func([]byte) error { return nil }
}

// createMapping is not supported on this platform
func createMapping(path string, size int) (*os.File, []byte, error) {
	return nil, nil, ErrUnsupported
}

// openMapping is not supported on this platform
func openMapping(path string, minSize int) (*os.File, []byte, error) {
	return nil, nil, ErrUnsupported
}

// ProcessAlive always reports false on this platform
func ProcessAlive(pid int) bool {
	return false
}
