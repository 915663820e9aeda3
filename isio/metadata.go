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
	"time"

	"github.com/magao-x/ImageStreamIO/datatype"
)

// Image type flags stored in Metadata.ImageType.
const (
	MathData       uint32 = 0x0001
	ImgRecv        uint32 = 0x0002
	ImgSent        uint32 = 0x0004
	CircularBuffer uint32 = 0x0020
)

// HostLocation is the location code of images held in host memory.
const HostLocation = -1

// Metadata is a snapshot of an image descriptor.
type Metadata struct {
	Name           string
	Naxis          uint8
	Size           [3]uint32
	Datatype       datatype.Type
	ImageType      uint32
	Location       int8
	Shared         bool
	NbSem          int
	NElement       uint64
	Cnt0           uint64
	Cnt1           uint64
	CBSize         uint32
	Write          bool
	CreatorPID     int
	CreationTime   time.Time
	LastAccessTime time.Time
}

// IsCircular reports whether the image is a circular buffer of slices.
// The flag only has meaning for three axis images.
func (md *Metadata) IsCircular() bool {
	return md.Naxis == 3 && md.ImageType&CircularBuffer != 0
}

// SliceElements returns the number of elements in one slice: size[0] for a
// one axis image and size[0]*size[1] otherwise.
func (md *Metadata) SliceElements() uint64 {
	n := uint64(md.Size[0])
	if md.Naxis >= 2 {
		n *= uint64(md.Size[1])
	}
	return n
}

// SliceBytes returns the byte size of one slice, or 0 for an unknown
// datatype.
func (md *Metadata) SliceBytes() uint64 {
	size := md.Datatype.Size()
	if size < 0 {
		return 0
	}
	return md.SliceElements() * uint64(size)
}

// FrameBytes returns the number of bytes a single write covers: one slice
// for a circular buffer, the whole buffer otherwise.
func (md *Metadata) FrameBytes() uint64 {
	if md.IsCircular() {
		return md.SliceBytes()
	}
	size := md.Datatype.Size()
	if size < 0 {
		return 0
	}
	return md.NElement * uint64(size)
}
