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

// The addressing functions are pure and allocation free. They never touch
// shared state beyond the descriptor snapshot and buffer they are given,
// so they are safe to call on every iteration of a real-time loop.

// NbSlices returns size[2] for a circular three axis image and 1
// otherwise.
func NbSlices(md *Metadata) uint32 {
	if md.IsCircular() {
		return md.Size[2]
	}
	return 1
}

// LastWroteIndex returns cnt1 for a circular image and 0 otherwise. The
// stored cnt1 of a non circular image is ignored.
func LastWroteIndex(md *Metadata) uint64 {
	if md.IsCircular() {
		return md.Cnt1
	}
	return 0
}

// WriteIndex returns the slice the next write goes to.
func WriteIndex(md *Metadata) uint64 {
	if !md.IsCircular() {
		return 0
	}
	n := uint64(NbSlices(md))
	if n == 0 {
		return 0
	}
	return (md.Cnt1 + 1) % n
}

// sliceAt returns slice index of buf, or nil when it does not fit.
func sliceAt(md *Metadata, buf []byte, index uint64) []byte {
	sb := md.SliceBytes()
	off := index * sb
	if sb == 0 || off+sb > uint64(len(buf)) {
		return nil
	}
	return buf[off : off+sb : off+sb]
}

// ReadBufferAt returns the bytes of slice index. For a non circular image
// the index is irrelevant and buf is returned whole. For a circular image
// an index outside [0, NbSlices) fails with ErrFailure and a nil slice.
func ReadBufferAt(md *Metadata, buf []byte, index int) ([]byte, error) {
	if !md.IsCircular() {
		return buf, nil
	}
	if index < 0 || uint64(index) >= uint64(NbSlices(md)) {
		return nil, ErrFailure
	}
	if s := sliceAt(md, buf, uint64(index)); s != nil {
		return s, nil
	}
	return nil, ErrFailure
}

// ReadLastWroteBuffer returns the bytes of the slice written last. For a
// non circular image buf is returned whatever cnt1 holds. For a circular
// image a cnt1 outside [0, NbSlices) fails with ErrFailure, which guards
// against a corrupted or uninitialized counter.
func ReadLastWroteBuffer(md *Metadata, buf []byte) ([]byte, error) {
	if !md.IsCircular() {
		return buf, nil
	}
	if md.Cnt1 >= uint64(NbSlices(md)) {
		return nil, ErrFailure
	}
	if s := sliceAt(md, buf, md.Cnt1); s != nil {
		return s, nil
	}
	return nil, ErrFailure
}

// WriteBuffer returns the bytes the next write goes to. It never fails: a
// circular image wraps cnt1+1 modulo the slice count, so a stale cnt1 is
// healed by the next update. A buffer too short to hold the slice yields
// an empty slice.
func WriteBuffer(md *Metadata, buf []byte) []byte {
	if !md.IsCircular() {
		return buf
	}
	if s := sliceAt(md, buf, WriteIndex(md)); s != nil {
		return s
	}
	return buf[:0]
}
