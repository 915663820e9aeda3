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

// DeviceMemory allocates image buffers in device memory. Images with a
// location >= 0 can only be created when one is supplied WithDevice.
type DeviceMemory interface {
	// Allocate reserves size bytes on the device with the given index.
	Allocate(location int, size uint64) (DeviceBuffer, error)
}

// DeviceBuffer is a buffer allocated by a DeviceMemory.
type DeviceBuffer interface {
	// Bytes returns a host addressable view of the buffer, or nil when the
	// memory cannot be addressed from the host.
	Bytes() []byte

	// Free releases the buffer.
	Free() error
}
