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

// Package cleanup proves that an image stream survives the death of its
// writer. A Harness runs a five phase handshake with a subordinate writer
// process:
//
//  1. Prepare removes stale files of the image and starts capturing the
//     readiness signal.
//  2. Spawn starts the writer, which creates the image and signals the
//     parent.
//  3. Attach opens the image and checks that the segment and every
//     semaphore file exist.
//  4. ReleaseAndWait releases the writer, or kills it when KillWriter is
//     set, then waits on a semaphore with a bounded timeout.
//  5. Teardown closes the image, reaps the writer and reclaims every file,
//     failing if anything is left behind.
//
// The subordinate is any program that calls RunWriter when IsSubordinate
// reports true, typically a test binary from TestMain or the isio tool.
package cleanup
