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

// Package snapshot saves the last written frame of an image to a
// compressed, checksummed file and restores it into a compatible image.
//
// A snapshot file is the 8 byte magic "ISIOSNAP" followed by a zstd
// stream holding a little endian header, the image name, the raw frame
// bytes in the writer's native byte order and an xxhash64 of everything
// before it.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/magao-x/ImageStreamIO/datatype"
	"github.com/magao-x/ImageStreamIO/isio"
)

const (
	magic   = "ISIOSNAP"
	version = uint32(1)

	// maxDecoded bounds the decompressed size of a snapshot.
	maxDecoded = 1 << 34
)

var (
	// ErrFormat is returned for files that are not snapshots.
	ErrFormat = errors.New("not an image snapshot")

	// ErrChecksum is returned when the payload checksum does not match.
	ErrChecksum = errors.New("snapshot checksum mismatch")

	// ErrIncompatible is returned by Restore when shape or type differ.
	ErrIncompatible = errors.New("snapshot does not fit image")
)

// Snapshot is one captured frame with the descriptor fields needed to
// restore it.
type Snapshot struct {
	Name      string
	Naxis     uint8
	Size      [3]uint32
	Datatype  datatype.Type
	ImageType uint32
	Cnt0      uint64
	Cnt1      uint64
	Frame     []byte
}

type wireHeader struct {
	Version   uint32
	Naxis     uint8
	Datatype  uint8
	_         [2]byte
	ImageType uint32
	Size      [3]uint32
	Cnt0      uint64
	Cnt1      uint64
	NameLen   uint32
	FrameLen  uint64
}

// Capture copies the last written frame of img.
func Capture(img *isio.Image) (*Snapshot, error) {
	md := img.Metadata()
	frame, err := img.ReadLastWroteBuffer()
	if err != nil {
		return nil, fmt.Errorf("capturing %s: %w", md.Name, err)
	}
	return &Snapshot{
		Name:      md.Name,
		Naxis:     md.Naxis,
		Size:      md.Size,
		Datatype:  md.Datatype,
		ImageType: md.ImageType,
		Cnt0:      md.Cnt0,
		Cnt1:      md.Cnt1,
		Frame:     bytes.Clone(frame),
	}, nil
}

// WriteTo writes the snapshot to w.
func (s *Snapshot) WriteTo(w io.Writer) (int64, error) {
	var payload bytes.Buffer
	h := wireHeader{
		Version:   version,
		Naxis:     s.Naxis,
		Datatype:  uint8(s.Datatype),
		ImageType: s.ImageType,
		Size:      s.Size,
		Cnt0:      s.Cnt0,
		Cnt1:      s.Cnt1,
		NameLen:   uint32(len(s.Name)),
		FrameLen:  uint64(len(s.Frame)),
	}
	if err := binary.Write(&payload, binary.LittleEndian, &h); err != nil {
		return 0, err
	}
	payload.WriteString(s.Name)
	payload.Write(s.Frame)
	payload.Write(binary.LittleEndian.AppendUint64(nil, xxhash.Sum64(payload.Bytes())))

	cw := &countingWriter{w: w}
	if _, err := io.WriteString(cw, magic); err != nil {
		return cw.n, err
	}
	enc, err := zstd.NewWriter(cw, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return cw.n, err
	}
	if _, err := enc.Write(payload.Bytes()); err != nil {
		enc.Close()
		return cw.n, err
	}
	if err := enc.Close(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// Read parses a snapshot from r and verifies its checksum.
func Read(r io.Reader) (*Snapshot, error) {
	var m [len(magic)]byte
	if _, err := io.ReadFull(r, m[:]); err != nil || string(m[:]) != magic {
		return nil, ErrFormat
	}

	dec, err := zstd.NewReader(r, zstd.WithDecoderMaxMemory(maxDecoded))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	payload, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	if len(payload) < 8 {
		return nil, ErrFormat
	}
	body, sum := payload[:len(payload)-8], payload[len(payload)-8:]
	if xxhash.Sum64(body) != binary.LittleEndian.Uint64(sum) {
		return nil, ErrChecksum
	}

	br := bytes.NewReader(body)
	var h wireHeader
	if err := binary.Read(br, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if h.Version != version {
		return nil, fmt.Errorf("%w: version %d", ErrFormat, h.Version)
	}
	if h.Naxis < 1 || h.Naxis > 3 {
		return nil, fmt.Errorf("%w: naxis %d", ErrFormat, h.Naxis)
	}
	left := uint64(br.Len())
	if uint64(h.NameLen) > left || h.FrameLen != left-uint64(h.NameLen) {
		return nil, fmt.Errorf("%w: body of %d bytes does not hold name %d and frame %d", ErrFormat, left, h.NameLen, h.FrameLen)
	}
	rest := body[len(body)-br.Len():]

	return &Snapshot{
		Name:      string(rest[:h.NameLen]),
		Naxis:     h.Naxis,
		Size:      h.Size,
		Datatype:  datatype.Type(h.Datatype),
		ImageType: h.ImageType,
		Cnt0:      h.Cnt0,
		Cnt1:      h.Cnt1,
		Frame:     rest[h.NameLen:],
	}, nil
}

// Restore writes the frame into img as a new frame. The image must have
// the snapshot's datatype and frame size.
func (s *Snapshot) Restore(img *isio.Image) error {
	md := img.Metadata()
	if md.Datatype != s.Datatype {
		return fmt.Errorf("%w: datatype %s, image has %s", ErrIncompatible, s.Datatype, md.Datatype)
	}
	if want := md.FrameBytes(); uint64(len(s.Frame)) != want {
		return fmt.Errorf("%w: frame of %d bytes, image takes %d", ErrIncompatible, len(s.Frame), want)
	}
	return img.WriteFrame(s.Frame)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
