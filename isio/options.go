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

	"github.com/go-logr/logr"
)

const (
	// DefaultSemaphores is the number of semaphores created with an image.
	DefaultSemaphores = 10

	// DefaultWaitTimeout bounds ReadFrame when its context has no deadline.
	DefaultWaitTimeout = time.Second
)

type options struct {
	location    int
	shared      bool
	imageType   uint32
	nbSem       int
	cbSize      uint32
	device      DeviceMemory
	log         logr.Logger
	waitTimeout time.Duration
	dir         string
}

func defaultOptions() options {
	return options{
		location:    HostLocation,
		shared:      true,
		imageType:   MathData,
		nbSem:       DefaultSemaphores,
		log:         logr.Discard(),
		waitTimeout: DefaultWaitTimeout,
	}
}

// Option configures Create, Open and Reclaim. Options that only make sense
// at create time are ignored elsewhere.
type Option func(*options)

// WithLocation selects host memory (HostLocation) or a device index.
func WithLocation(location int) Option {
	return func(o *options) { o.location = location }
}

// WithShared selects a named shared segment (the default) or process
// local memory without semaphores.
func WithShared(shared bool) Option {
	return func(o *options) { o.shared = shared }
}

// WithCircularBuffer makes a three axis image a circular buffer of
// size[2] slices.
func WithCircularBuffer() Option {
	return func(o *options) { o.imageType |= CircularBuffer }
}

// WithImageType sets the image type flags. CircularBuffer may be included.
func WithImageType(flags uint32) Option {
	return func(o *options) { o.imageType = flags }
}

// WithSemaphores sets the number of semaphores, one per reader class.
func WithSemaphores(n int) Option {
	return func(o *options) { o.nbSem = n }
}

// WithCBSize records a slice count hint in the descriptor.
func WithCBSize(n uint32) Option {
	return func(o *options) { o.cbSize = n }
}

// WithDevice supplies the allocator for images with a device location.
func WithDevice(d DeviceMemory) Option {
	return func(o *options) { o.device = d }
}

// WithLogger sets the logger of the image.
func WithLogger(l logr.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithWaitTimeout bounds ReadFrame waits that carry no deadline.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *options) { o.waitTimeout = d }
}

// WithDir takes the place of MILK_SHM_DIR for this call. When dir does
// not exist the build-time default and /tmp are tried as usual.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
