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

// Package shm implements the operating system side of an image stream:
// file-backed shared memory segments holding an image header and its data
// buffer, and the named counting semaphores bound to each segment.
//
// Segments live as regular files under a shared memory directory
// (<dir>/<name>.im.shm) and are mapped with MAP_SHARED so every process
// that opens the same name sees the same physical pages. Semaphores are
// separate small files (<dir>/sem.<name>_semNN) whose 32-bit counter is
// driven by process-shared futex wait and wake on Linux.
//
// Nothing in this package removes a segment implicitly. A segment outlives
// the process that created it until RemoveArtifacts is called, which any
// process may do.
package shm
