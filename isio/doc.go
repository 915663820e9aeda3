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

// Package isio publishes typed multi-dimensional arrays ("images") from one
// writer process to any number of reader processes through named shared
// memory segments.
//
// A writer creates an image with Create, fills the slice returned by
// WriteBuffer and publishes it with UpdateImage (or does both with
// WriteFrame). Readers Open the image by name, wait on one of its
// semaphores and read the slice returned by ReadLastWroteBuffer.
//
//	img, err := isio.Create("cam0", []uint32{64, 64}, datatype.Float)
//	...
//	copy(img.WriteBuffer(), frame)
//	img.UpdateImage()
//
// A stream created WithCircularBuffer keeps size[2] historical slices and
// advances cnt1 modulo the slice count on every update.
//
// Segments are never removed implicitly. Close only unmaps; Reclaim
// removes the segment and semaphore files of a name from any process,
// including after the writer died.
package isio
