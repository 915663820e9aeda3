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
	"bytes"
	"fmt"
	"sync/atomic"
)

// Memory layout constants
const (
	// Magic bytes for segment identification
	HeaderMagic = "ISIOSHM\x00"

	// Current layout version
	HeaderVersion = uint32(1)

	// Image header size; the data buffer starts right after it
	HeaderSize = 256

	// Maximum stored image name length, including the terminating NUL
	NameMax = 80
)

// ImageHeader is the descriptor stored at offset 0 of every segment.
//
// Fields written once by the creator before the segment is published are
// plain; the counters and flags touched while the stream is live are
// accessed atomically.
type ImageHeader struct {
	magic          [8]byte       // 0x00: "ISIOSHM\0"
	version        uint32        // 0x08: layout version
	headerSize     uint32        // 0x0C: HeaderSize
	naxis          uint8         // 0x10: number of axes (1..3)
	datatype       uint8         // 0x11: scalar type code
	location       int8          // 0x12: -1 host, >=0 device index
	shared         uint8         // 0x13: 1 if backed by a named segment
	imageType      uint32        // 0x14: image type flags
	size           [3]uint32     // 0x18: axis lengths
	nbSem          uint32        // 0x24: number of bound semaphores
	nelement       uint64        // 0x28: elements in the whole buffer
	dataOffset     uint64        // 0x30: offset of the data buffer
	dataSize       uint64        // 0x38: bytes of host data in this segment
	cnt0           uint64        // 0x40: write generation counter
	cnt1           uint64        // 0x48: last written slice
	cbSize         uint32        // 0x50: slice count hint recorded at create
	write          uint32        // 0x54: write in progress flag
	creatorPID     uint32        // 0x58: pid of the creating process
	pad            uint32        // 0x5C: padding
	creationTime   int64         // 0x60: unix nanoseconds
	lastAccessTime int64         // 0x68: unix nanoseconds of the last update
	name           [NameMax]byte // 0x70: NUL terminated image name
	reserved       [64]byte      // 0xC0-0xFF: reserved/padding to 256B
}

// HeaderFields carries the immutable part of a header at initialization.
type HeaderFields struct {
	Name       string
	Naxis      uint8
	Datatype   uint8
	Location   int8
	Shared     bool
	ImageType  uint32
	Size       [3]uint32
	NbSem      uint32
	NElement   uint64
	DataSize   uint64
	CBSize     uint32
	CreatorPID uint32
	Created    int64
}

// Init writes a fresh header. It must run before the segment is visible
// to other processes.
func (h *ImageHeader) Init(f HeaderFields) {
	*h = ImageHeader{}
	copy(h.magic[:], HeaderMagic)
	h.headerSize = HeaderSize
	h.naxis = f.Naxis
	h.datatype = f.Datatype
	h.location = f.Location
	if f.Shared {
		h.shared = 1
	}
	h.imageType = f.ImageType
	h.size = f.Size
	h.nbSem = f.NbSem
	h.nelement = f.NElement
	h.dataOffset = HeaderSize
	h.dataSize = f.DataSize
	h.cbSize = f.CBSize
	h.creatorPID = f.CreatorPID
	h.creationTime = f.Created
	h.lastAccessTime = f.Created
	copy(h.name[:NameMax-1], f.Name)
	atomic.StoreUint32(&h.version, HeaderVersion)
}

// Magic returns the magic bytes
func (h *ImageHeader) Magic() [8]byte { return h.magic }

// Version returns the layout version
func (h *ImageHeader) Version() uint32 { return atomic.LoadUint32(&h.version) }

func (h *ImageHeader) Naxis() uint8        { return h.naxis }
func (h *ImageHeader) Datatype() uint8     { return h.datatype }
func (h *ImageHeader) Location() int8      { return h.location }
func (h *ImageHeader) Shared() bool        { return h.shared != 0 }
func (h *ImageHeader) ImageType() uint32   { return h.imageType }
func (h *ImageHeader) Size() [3]uint32     { return h.size }
func (h *ImageHeader) NbSem() uint32       { return h.nbSem }
func (h *ImageHeader) NElement() uint64    { return h.nelement }
func (h *ImageHeader) DataOffset() uint64  { return h.dataOffset }
func (h *ImageHeader) DataSize() uint64    { return h.dataSize }
func (h *ImageHeader) CBSize() uint32      { return h.cbSize }
func (h *ImageHeader) CreatorPID() uint32  { return h.creatorPID }
func (h *ImageHeader) CreationTime() int64 { return h.creationTime }

// Name returns the stored image name
func (h *ImageHeader) Name() string {
	n := bytes.IndexByte(h.name[:], 0)
	if n < 0 {
		n = len(h.name)
	}
	return string(h.name[:n])
}

// Cnt0 returns the write generation counter
func (h *ImageHeader) Cnt0() uint64 { return atomic.LoadUint64(&h.cnt0) }

// IncrementCnt0 atomically advances the write generation counter
func (h *ImageHeader) IncrementCnt0() uint64 { return atomic.AddUint64(&h.cnt0, 1) }

// Cnt1 returns the index of the last written slice
func (h *ImageHeader) Cnt1() uint64 { return atomic.LoadUint64(&h.cnt1) }

// SetCnt1 publishes the index of the slice just written
func (h *ImageHeader) SetCnt1(idx uint64) { atomic.StoreUint64(&h.cnt1, idx) }

// Writing reports whether a write is in progress
func (h *ImageHeader) Writing() bool { return atomic.LoadUint32(&h.write) != 0 }

// SetWriting sets the write in progress flag
func (h *ImageHeader) SetWriting(writing bool) {
	var val uint32
	if writing {
		val = 1
	}
	atomic.StoreUint32(&h.write, val)
}

// LastAccessTime returns the time of the last update in unix nanoseconds
func (h *ImageHeader) LastAccessTime() int64 { return atomic.LoadInt64(&h.lastAccessTime) }

// SetLastAccessTime records the time of the last update
func (h *ImageHeader) SetLastAccessTime(ns int64) { atomic.StoreInt64(&h.lastAccessTime, ns) }

// ValidateHeader validates a mapped header against the size of its file.
func ValidateHeader(h *ImageHeader, fileSize int64) error {
	if h.Magic() != [8]byte{'I', 'S', 'I', 'O', 'S', 'H', 'M', 0} {
		return fmt.Errorf("invalid magic bytes")
	}
	if h.Version() != HeaderVersion {
		return fmt.Errorf("unsupported version %d, expected %d", h.Version(), HeaderVersion)
	}
	if h.headerSize != HeaderSize || h.dataOffset != HeaderSize {
		return fmt.Errorf("header size mismatch: got %d/%d, expected %d", h.headerSize, h.dataOffset, HeaderSize)
	}
	if h.naxis < 1 || h.naxis > 3 {
		return fmt.Errorf("invalid axis count %d", h.naxis)
	}
	if end := h.dataOffset + h.dataSize; end > uint64(fileSize) {
		return fmt.Errorf("data region ends at %d beyond file size %d", end, fileSize)
	}
	return nil
}
