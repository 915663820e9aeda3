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
	"fmt"
	"math"
	"math/bits"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/magao-x/ImageStreamIO/datatype"
	"github.com/magao-x/ImageStreamIO/internal/logging"
	"github.com/magao-x/ImageStreamIO/internal/metrics"
	"github.com/magao-x/ImageStreamIO/internal/shm"
)

// Image is a handle on an image stream, either created by this process or
// opened by name. Its methods may be called from several goroutines, but
// not concurrently with Close. The single writer rule applies across all
// handles of a stream.
type Image struct {
	name  string
	dir   string
	owner bool

	hdr    *shm.ImageHeader
	seg    *shm.Segment
	sems   []*shm.Semaphore
	data   []byte
	devBuf DeviceBuffer

	log         logr.Logger
	waitTimeout time.Duration

	mu     sync.Mutex // serializes Close
	closed atomic.Bool
}

// Create makes a new image of the given dimensions and element type.
//
// A shared image (the default) is published under name together with its
// semaphores, atomically: on failure nothing is left under that name. A
// host image replaces any stale segment of the same name. A device image
// (WithLocation >= 0) fails with ErrAlreadyExists over an existing segment
// and with ErrFailure when no DeviceMemory is supplied.
func Create(name string, dims []uint32, dt datatype.Type, opts ...Option) (*Image, error) {
	const op = "create"
	o := applyOptions(opts)

	if err := validateName(name); err != nil {
		return nil, newError(op, name, KindInvalidArgument, err)
	}
	naxis := len(dims)
	if naxis < 1 || naxis > 3 {
		return nil, errorf(op, name, KindInvalidArgument, "naxis %d outside 1..3", naxis)
	}
	var size [3]uint32
	for i, d := range dims {
		if d == 0 {
			return nil, errorf(op, name, KindInvalidArgument, "axis %d has zero length", i)
		}
		size[i] = d
	}
	if !dt.Known() {
		return nil, errorf(op, name, KindInvalidArgument, "unknown datatype %d", uint8(dt))
	}
	nelement, dataSize, ok := bufferSize(dims, dt)
	if !ok {
		return nil, errorf(op, name, KindInvalidArgument, "image of %v %s elements is too large", dims, dt)
	}
	if o.imageType&CircularBuffer != 0 && naxis != 3 {
		return nil, errorf(op, name, KindInvalidArgument, "circular buffer needs 3 axes, got %d", naxis)
	}
	if o.location < HostLocation || o.location > math.MaxInt8 {
		return nil, errorf(op, name, KindFailure, "invalid location %d", o.location)
	}
	if o.shared && (o.nbSem < 1 || o.nbSem > shm.MaxSemaphores) {
		return nil, errorf(op, name, KindInvalidArgument, "semaphore count %d outside 1..%d", o.nbSem, shm.MaxSemaphores)
	}

	fields := shm.HeaderFields{
		Name:       name,
		Naxis:      uint8(naxis),
		Datatype:   uint8(dt),
		Location:   int8(o.location),
		Shared:     o.shared,
		ImageType:  o.imageType,
		Size:       size,
		NElement:   nelement,
		DataSize:   dataSize,
		CBSize:     o.cbSize,
		CreatorPID: uint32(os.Getpid()),
		Created:    time.Now().UnixNano(),
	}

	if !o.shared {
		return createLocal(&o, fields)
	}
	return createShared(&o, fields)
}

// bufferSize returns the element count and byte size of an image. ok is
// false when either overflows or the segment would not fit in an int.
func bufferSize(dims []uint32, dt datatype.Type) (nelement, nbytes uint64, ok bool) {
	nelement = 1
	for _, d := range dims {
		hi, lo := bits.Mul64(nelement, uint64(d))
		if hi != 0 {
			return 0, 0, false
		}
		nelement = lo
	}
	hi, nbytes := bits.Mul64(nelement, uint64(dt.Size()))
	if hi != 0 || nbytes > math.MaxInt-shm.HeaderSize {
		return 0, 0, false
	}
	return nelement, nbytes, true
}

func newImage(o *options, name, dir string, owner bool) *Image {
	return &Image{
		name:        name,
		dir:         dir,
		owner:       owner,
		log:         o.log.WithValues("image", name),
		waitTimeout: o.waitTimeout,
	}
}

func allocateDevice(o *options, size uint64) (DeviceBuffer, error) {
	if o.device == nil {
		return nil, fmt.Errorf("no device memory support for location %d", o.location)
	}
	return o.device.Allocate(o.location, size)
}

func createLocal(o *options, fields shm.HeaderFields) (*Image, error) {
	img := newImage(o, fields.Name, "", true)
	img.hdr = new(shm.ImageHeader)
	img.hdr.Init(fields)

	kind := "local"
	if o.location >= 0 {
		buf, err := allocateDevice(o, fields.DataSize)
		if err != nil {
			return nil, newError("create", fields.Name, KindFailure, err)
		}
		img.devBuf = buf
		img.data = buf.Bytes()
		kind = "device"
	} else {
		img.data = make([]byte, fields.DataSize)
	}

	metrics.RecordImageCreated(kind)
	img.log.V(logging.VERBOSE).Info("Created local image", "bytes", fields.DataSize, "location", o.location)
	return img, nil
}

func createShared(o *options, fields shm.HeaderFields) (*Image, error) {
	const op = "create"
	name := fields.Name

	dir, err := resolveDir(o)
	if err != nil {
		return nil, newError(op, name, KindFailure, err)
	}
	path := shm.SegmentFile(dir, name)
	device := o.location >= 0

	if shm.SegmentExists(path) {
		if device {
			return nil, errorf(op, name, KindAlreadyExists, "segment %s exists", path)
		}
		o.log.V(logging.DEFAULT).Info("Replacing existing segment", "image", name, "path", path)
	}
	if device && o.device == nil {
		return nil, errorf(op, name, KindFailure, "no device memory support for location %d", o.location)
	}

	n, err := shm.RemoveArtifacts(dir, name)
	if err != nil {
		return nil, newError(op, name, KindFailure, err)
	}
	metrics.RecordArtifactsReclaimed(n)

	segSize := uint64(shm.HeaderSize)
	if device {
		// The buffer lives on the device; the segment carries the header only.
		fields.DataSize = 0
	}
	segSize += fields.DataSize
	fields.NbSem = uint32(o.nbSem)

	b := &builder{dir: dir, name: name}
	img, err := b.build(o, fields, int(segSize))
	if err != nil {
		b.abort()
		return nil, newError(op, name, KindFailure, err)
	}

	kind := "host"
	if device {
		kind = "device"
	}
	metrics.RecordImageCreated(kind)
	img.log.V(logging.VERBOSE).Info("Created shared image", "path", path, "bytes", segSize, "semaphores", o.nbSem, "location", o.location)
	return img, nil
}

// builder assembles a segment and its semaphores under temporary names
// and renames them into place, semaphores first and the segment last, so
// an opener that finds the segment also finds every semaphore.
type builder struct {
	dir, name string

	seg       *shm.Segment
	sems      []*shm.Semaphore
	devBuf    DeviceBuffer
	temps     []string
	published []string
}

func (b *builder) build(o *options, fields shm.HeaderFields, segSize int) (*Image, error) {
	segTemp := shm.TempFile(b.dir)
	seg, err := shm.CreateSegment(segTemp, segSize)
	if err != nil {
		return nil, err
	}
	b.seg = seg
	b.temps = append(b.temps, segTemp)
	seg.Header().Init(fields)

	for i := 0; i < o.nbSem; i++ {
		tmp := shm.TempFile(b.dir)
		sem, err := shm.CreateSemaphore(tmp)
		if err != nil {
			return nil, err
		}
		b.sems = append(b.sems, sem)
		b.temps = append(b.temps, tmp)
	}

	if o.location >= 0 {
		buf, err := allocateDevice(o, fields.NElement*uint64(datatype.Type(fields.Datatype).Size()))
		if err != nil {
			return nil, err
		}
		b.devBuf = buf
	}

	for i, sem := range b.sems {
		final := shm.SemaphoreFile(b.dir, b.name, i)
		if err := os.Rename(sem.Path, final); err != nil {
			return nil, fmt.Errorf("publishing semaphore: %w", err)
		}
		sem.Path = final
		b.published = append(b.published, final)
	}

	final := shm.SegmentFile(b.dir, b.name)
	if err := os.Rename(seg.Path, final); err != nil {
		return nil, fmt.Errorf("publishing segment: %w", err)
	}
	seg.Path = final

	img := newImage(o, b.name, b.dir, true)
	img.seg = seg
	img.hdr = seg.Header()
	img.sems = b.sems
	if b.devBuf != nil {
		img.devBuf = b.devBuf
		img.data = b.devBuf.Bytes()
	} else {
		img.data = seg.Data()
	}
	return img, nil
}

// abort releases everything build created and removes every file it
// wrote, under both temporary and final names.
func (b *builder) abort() {
	for _, sem := range b.sems {
		sem.Close()
	}
	if b.seg != nil {
		b.seg.Close()
	}
	if b.devBuf != nil {
		b.devBuf.Free()
	}
	for _, p := range append(b.temps, b.published...) {
		os.Remove(p)
	}
}

// Open maps the existing shared image name and its semaphores. It fails
// with ErrOpenFailed when no valid segment exists under that name or a
// semaphore is missing; it never creates anything.
func Open(name string, opts ...Option) (*Image, error) {
	const op = "open"
	o := applyOptions(opts)

	if err := validateName(name); err != nil {
		return nil, newError(op, name, KindInvalidArgument, err)
	}
	dir, err := resolveDir(&o)
	if err != nil {
		return nil, newError(op, name, KindOpenFailed, err)
	}

	seg, err := shm.OpenSegment(shm.SegmentFile(dir, name))
	if err != nil {
		return nil, newError(op, name, KindOpenFailed, err)
	}
	h := seg.Header()

	sems := make([]*shm.Semaphore, 0, h.NbSem())
	for i := 0; i < int(h.NbSem()); i++ {
		sem, err := shm.OpenSemaphore(shm.SemaphoreFile(dir, name, i))
		if err != nil {
			for _, s := range sems {
				s.Close()
			}
			seg.Close()
			return nil, newError(op, name, KindOpenFailed, err)
		}
		sems = append(sems, sem)
	}

	img := newImage(&o, name, dir, false)
	img.seg = seg
	img.hdr = h
	img.sems = sems
	if h.Location() < 0 {
		img.data = seg.Data()
	}

	metrics.RecordImageOpened()
	img.log.V(logging.DEBUG).Info("Opened image", "path", seg.Path, "semaphores", len(sems), "creatorPID", h.CreatorPID())
	return img, nil
}

// Close unmaps the image and its semaphores. The segment files stay in
// place; see Destroy and Reclaim. A device buffer is freed by the creating
// handle only. Close is idempotent.
func (img *Image) Close() error {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.closed.Load() {
		return nil
	}
	img.closed.Store(true)

	var errs []error
	for _, sem := range img.sems {
		if err := sem.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if img.devBuf != nil && img.owner {
		if err := img.devBuf.Free(); err != nil {
			errs = append(errs, err)
		}
	}
	if img.seg != nil {
		// Keep a detached copy so accessors stay safe after unmapping.
		snapshot := *img.hdr
		img.hdr = &snapshot
		if err := img.seg.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	img.sems = nil
	img.data = nil
	img.devBuf = nil
	if err := errors.Join(errs...); err != nil {
		return newError("close", img.name, KindFailure, err)
	}
	return nil
}

// Destroy closes the image and, for a shared image, reclaims its files.
func (img *Image) Destroy() error {
	closeErr := img.Close()
	if img.dir == "" {
		return closeErr
	}
	_, err := Reclaim(img.name, WithDir(img.dir), WithLogger(img.log))
	return errors.Join(closeErr, err)
}

// Reclaim removes the segment and every semaphore file of name and
// returns how many files it removed. It is safe from any process, with
// or without the image open, after its writer died, and more than once.
func Reclaim(name string, opts ...Option) (int, error) {
	const op = "reclaim"
	o := applyOptions(opts)

	if err := validateName(name); err != nil {
		return 0, newError(op, name, KindInvalidArgument, err)
	}
	dir, err := resolveDir(&o)
	if err != nil {
		return 0, newError(op, name, KindFailure, err)
	}
	n, err := shm.RemoveArtifacts(dir, name)
	metrics.RecordArtifactsReclaimed(n)
	if err != nil {
		return n, newError(op, name, KindFailure, err)
	}
	if n > 0 {
		o.log.V(logging.VERBOSE).Info("Reclaimed image", "image", name, "dir", dir, "files", n)
	}
	return n, nil
}

// Artifacts lists the segment and semaphore files present for name.
func Artifacts(name string, opts ...Option) ([]string, error) {
	o := applyOptions(opts)
	if err := validateName(name); err != nil {
		return nil, newError("artifacts", name, KindInvalidArgument, err)
	}
	dir, err := resolveDir(&o)
	if err != nil {
		return nil, newError("artifacts", name, KindFailure, err)
	}
	return shm.Artifacts(dir, name)
}

// Name returns the image name.
func (img *Image) Name() string { return img.name }

// Path returns the backing segment file, or "" for a local image.
func (img *Image) Path() string {
	if img.dir == "" {
		return ""
	}
	return shm.SegmentFile(img.dir, img.name)
}

// Data returns the whole data buffer. It is nil for a device image whose
// memory is not host addressable and after Close.
func (img *Image) Data() []byte { return img.data }

// Cnt0 returns the write generation counter.
func (img *Image) Cnt0() uint64 { return img.hdr.Cnt0() }

// NbSem returns the number of semaphores bound to the image.
func (img *Image) NbSem() int { return len(img.sems) }

// Metadata returns a snapshot of the descriptor.
func (img *Image) Metadata() Metadata {
	h := img.hdr
	return Metadata{
		Name:           h.Name(),
		Naxis:          h.Naxis(),
		Size:           h.Size(),
		Datatype:       datatype.Type(h.Datatype()),
		ImageType:      h.ImageType(),
		Location:       h.Location(),
		Shared:         h.Shared(),
		NbSem:          int(h.NbSem()),
		NElement:       h.NElement(),
		Cnt0:           h.Cnt0(),
		Cnt1:           h.Cnt1(),
		CBSize:         h.CBSize(),
		Write:          h.Writing(),
		CreatorPID:     int(h.CreatorPID()),
		CreationTime:   time.Unix(0, h.CreationTime()),
		LastAccessTime: time.Unix(0, h.LastAccessTime()),
	}
}

// layout is the subset of Metadata the addressing functions read.
func (img *Image) layout() Metadata {
	h := img.hdr
	return Metadata{
		Naxis:     h.Naxis(),
		Size:      h.Size(),
		Datatype:  datatype.Type(h.Datatype()),
		ImageType: h.ImageType(),
		NElement:  h.NElement(),
		Cnt1:      h.Cnt1(),
	}
}

// NbSlices returns the number of slices of the image.
func (img *Image) NbSlices() uint32 {
	md := img.layout()
	return NbSlices(&md)
}

// LastWroteIndex returns the slice written last.
func (img *Image) LastWroteIndex() uint64 {
	md := img.layout()
	return LastWroteIndex(&md)
}

// WriteIndex returns the slice the next write goes to.
func (img *Image) WriteIndex() uint64 {
	md := img.layout()
	return WriteIndex(&md)
}

// ReadBufferAt returns slice index of the data buffer.
func (img *Image) ReadBufferAt(index int) ([]byte, error) {
	md := img.layout()
	return ReadBufferAt(&md, img.data, index)
}

// ReadLastWroteBuffer returns the slice written last.
func (img *Image) ReadLastWroteBuffer() ([]byte, error) {
	md := img.layout()
	return ReadLastWroteBuffer(&md, img.data)
}

// WriteBuffer returns the slice the next write goes to.
func (img *Image) WriteBuffer() []byte {
	md := img.layout()
	return WriteBuffer(&md, img.data)
}
