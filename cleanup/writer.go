//go:build unix

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

package cleanup

import (
	"encoding/binary"
	"math"
	"os"

	"github.com/go-logr/logr"

	"github.com/magao-x/ImageStreamIO/datatype"
	"github.com/magao-x/ImageStreamIO/internal/config"
	"github.com/magao-x/ImageStreamIO/internal/logging"
	"github.com/magao-x/ImageStreamIO/internal/subproc"
	"github.com/magao-x/ImageStreamIO/isio"
)

// Environment of a subordinate writer.
const (
	RoleEnv = "ISIO_CLEANUP_ROLE"
	NameEnv = "ISIO_CLEANUP_NAME"

	roleWriter = "writer"
)

// Shape of the image the subordinate writer creates.
const (
	WriterWidth  = 32
	WriterHeight = 32
)

// Exit codes of RunWriter.
const (
	exitOK = iota
	exitCreate
	exitSignal
	exitRelease
	exitWrite
)

// IsSubordinate reports whether this process was spawned as a writer by a
// Harness.
func IsSubordinate() bool {
	return os.Getenv(RoleEnv) == roleWriter
}

// WriterFrame returns the frame the subordinate writer publishes: a
// WriterWidth by WriterHeight float ramp.
func WriterFrame() []byte {
	frame := make([]byte, WriterWidth*WriterHeight*4)
	for i := 0; i < WriterWidth*WriterHeight; i++ {
		binary.NativeEndian.PutUint32(frame[i*4:], math.Float32bits(float32(i)))
	}
	return frame
}

// RunWriter is the subordinate side of the handshake. It creates the image
// named by NameEnv, signals readiness, waits for release on stdin, then
// publishes one frame and returns an exit code. The image is closed but
// left in place for the parent to reclaim. Failures are logged to the
// stderr inherited from the parent.
func RunWriter() int {
	name := os.Getenv(NameEnv)
	log := writerLogger().WithValues("image", name)

	img, err := isio.Create(name, []uint32{WriterWidth, WriterHeight}, datatype.Float, isio.WithLogger(log))
	if err != nil {
		log.Error(err, "Creating image")
		return exitCreate
	}
	defer img.Close()

	if err := subproc.SignalReady(); err != nil {
		log.Error(err, "Signaling parent")
		return exitSignal
	}
	if err := subproc.AwaitRelease(os.Stdin); err != nil {
		log.Error(err, "Awaiting release")
		return exitRelease
	}
	if err := img.WriteFrame(WriterFrame()); err != nil {
		log.Error(err, "Writing frame")
		return exitWrite
	}
	log.V(logging.DEBUG).Info("Frame written")
	return exitOK
}

// writerLogger builds the subordinate's logger from the environment it
// inherited.
func writerLogger() logr.Logger {
	cfg, err := config.Load()
	if err != nil {
		cfg.LogLevel = logging.DEFAULT
	}
	log, err := logging.NewLogger(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return logr.Discard()
	}
	return log.WithName("writer").WithValues("pid", os.Getpid())
}
