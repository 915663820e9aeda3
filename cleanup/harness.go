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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sys/unix"

	"github.com/magao-x/ImageStreamIO/internal/logging"
	"github.com/magao-x/ImageStreamIO/internal/subproc"
	"github.com/magao-x/ImageStreamIO/isio"
)

const (
	defaultReadyTimeout = 10 * time.Second
	defaultWaitTimeout  = time.Second

	// waitSlack is how far past its bound the data wait may return
	// before it counts as hung.
	waitSlack = time.Second
)

// ErrLeftovers is returned by Teardown when files of the image remain.
var ErrLeftovers = errors.New("image files left after teardown")

// ErrUnexpectedOutcome is returned by Run when the handshake completed
// but did not end the way the variant requires.
var ErrUnexpectedOutcome = errors.New("unexpected handshake outcome")

// Harness drives one run of the handshake. A Harness is not reusable.
type Harness struct {
	// Name is the image the writer creates.
	Name string

	// Dir is the segment directory handed to the writer through
	// MILK_SHM_DIR. Empty means the usual resolution.
	Dir string

	// KillWriter selects the crash variant.
	KillWriter bool

	ReadyTimeout time.Duration
	WaitTimeout  time.Duration

	// Command builds the subordinate command. It defaults to running the
	// current executable without arguments.
	Command func(ctx context.Context) (*exec.Cmd, error)

	Log logr.Logger

	ready    *subproc.Readiness
	proc     *subproc.Process
	released bool
	img      *isio.Image
	outcome  Outcome
}

// Outcome records what a handshake observed.
type Outcome struct {
	// WaitErr is the result of the bounded data wait. It matches
	// isio.ErrTimeout in the crash variant.
	WaitErr error

	// WaitElapsed is how long the data wait took.
	WaitElapsed time.Duration

	// Cnt0 is the write counter seen after the wait.
	Cnt0 uint64

	// FrameOK reports that the frame read matched WriterFrame.
	FrameOK bool

	// WriterAlive is the liveness probe taken after the wait.
	WriterAlive bool

	// Status is how the writer ended.
	Status subproc.ExitStatus

	// Reclaimed is the number of files Teardown removed.
	Reclaimed int
}

func (h *Harness) opts() []isio.Option {
	opts := []isio.Option{isio.WithLogger(h.Log)}
	if h.Dir != "" {
		opts = append(opts, isio.WithDir(h.Dir))
	}
	return opts
}

func (h *Harness) setDefaults() {
	if h.ReadyTimeout <= 0 {
		h.ReadyTimeout = defaultReadyTimeout
	}
	if h.WaitTimeout <= 0 {
		h.WaitTimeout = defaultWaitTimeout
	}
	if h.Log.GetSink() == nil {
		h.Log = logr.Discard()
	}
	if h.Command == nil {
		h.Command = func(ctx context.Context) (*exec.Cmd, error) {
			exe, err := os.Executable()
			if err != nil {
				return nil, err
			}
			return exec.CommandContext(ctx, exe), nil
		}
	}
}

// Prepare removes stale files of the image and starts capturing the
// readiness signal, so it is consumed here instead of by a handler.
func (h *Harness) Prepare() error {
	h.setDefaults()
	h.Log = h.Log.WithValues("image", h.Name, "kill", h.KillWriter)

	n, err := isio.Reclaim(h.Name, h.opts()...)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	if n > 0 {
		h.Log.V(logging.DEFAULT).Info("Removed stale files", "files", n)
	}
	h.ready = subproc.NotifyReady()
	return nil
}

// Spawn starts the writer and waits for its readiness signal.
func (h *Harness) Spawn(ctx context.Context) error {
	cmd, err := h.Command(ctx)
	if err != nil {
		return fmt.Errorf("spawn: %w", err)
	}
	cmd.Env = append(cmd.Environ(), RoleEnv+"="+roleWriter, NameEnv+"="+h.Name)
	if h.Dir != "" {
		cmd.Env = append(cmd.Env, "MILK_SHM_DIR="+h.Dir)
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	h.proc, err = subproc.Spawn(cmd)
	if err != nil {
		return fmt.Errorf("spawn: %w", err)
	}
	h.Log.V(logging.VERBOSE).Info("Spawned writer", "pid", h.proc.Pid())

	readyCtx, cancel := context.WithTimeout(ctx, h.ReadyTimeout)
	defer cancel()
	if err := h.ready.Wait(readyCtx); err != nil {
		return fmt.Errorf("spawn: writer %d not ready: %w", h.proc.Pid(), err)
	}
	return nil
}

// Attach opens the image and checks that creation completed: the segment
// and every semaphore file must exist.
func (h *Harness) Attach() error {
	img, err := isio.Open(h.Name, h.opts()...)
	if err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	h.img = img

	files, err := isio.Artifacts(h.Name, h.opts()...)
	if err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	if want := 1 + img.NbSem(); len(files) != want {
		return fmt.Errorf("attach: found %d files, want segment and %d semaphores", len(files), img.NbSem())
	}
	h.Log.V(logging.DEBUG).Info("Attached", "files", files)
	return nil
}

// ReleaseAndWait releases the writer, or kills and reaps it in the crash
// variant, then waits on semaphore 0 for at most WaitTimeout.
func (h *Harness) ReleaseAndWait(ctx context.Context) error {
	h.released = true
	if h.KillWriter {
		if err := h.proc.Kill(); err != nil {
			return fmt.Errorf("release: %w", err)
		}
		// Reap first so the liveness probe below sees the writer gone.
		if _, err := h.proc.Reap(ctx); err != nil {
			return fmt.Errorf("release: %w", err)
		}
	} else if err := h.proc.Release(); err != nil {
		return fmt.Errorf("release: %w", err)
	}

	start := time.Now()
	h.outcome.WaitErr = h.img.SemTimedWait(0, h.WaitTimeout)
	h.outcome.WaitElapsed = time.Since(start)
	h.outcome.Cnt0 = h.img.Cnt0()

	if h.outcome.WaitErr == nil {
		frame, err := h.img.ReadLastWroteBuffer()
		h.outcome.FrameOK = err == nil && bytes.Equal(frame, WriterFrame())
	}
	h.outcome.WriterAlive = h.img.WriterAlive() && !h.proc.Exited()

	h.Log.V(logging.VERBOSE).Info("Data wait finished", "err", h.outcome.WaitErr, "elapsed", h.outcome.WaitElapsed, "cnt0", h.outcome.Cnt0)
	return nil
}

// Teardown closes the image, reaps the writer and reclaims every file of
// the image. It runs whatever phases came before it and may be called
// after any of them failed.
func (h *Harness) Teardown(ctx context.Context) (Outcome, error) {
	var errs []error

	if h.img != nil {
		if err := h.img.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if h.proc != nil {
		if !h.released && !h.proc.Exited() {
			// An earlier phase failed and the writer still awaits release.
			h.proc.Kill()
		}
		status, err := h.proc.Reap(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("teardown: reaping writer: %w", err))
		}
		h.outcome.Status = status
	}
	if h.ready != nil {
		h.ready.Stop()
	}

	n, err := isio.Reclaim(h.Name, h.opts()...)
	h.outcome.Reclaimed = n
	if err != nil {
		errs = append(errs, err)
	}
	left, err := isio.Artifacts(h.Name, h.opts()...)
	if err != nil {
		errs = append(errs, err)
	} else if len(left) > 0 {
		errs = append(errs, fmt.Errorf("%w: %v", ErrLeftovers, left))
	}

	h.Log.V(logging.VERBOSE).Info("Teardown complete", "writer", h.outcome.Status.String(), "reclaimed", n)
	return h.outcome, errors.Join(errs...)
}

// Check verifies that the outcome is the one the variant requires.
func (h *Harness) Check(o Outcome) error {
	if o.WaitElapsed > h.WaitTimeout+waitSlack {
		return fmt.Errorf("%w: wait took %v with a %v bound", ErrUnexpectedOutcome, o.WaitElapsed, h.WaitTimeout)
	}
	if h.KillWriter {
		if !errors.Is(o.WaitErr, isio.ErrTimeout) {
			return fmt.Errorf("%w: wait after kill returned %v, want timeout", ErrUnexpectedOutcome, o.WaitErr)
		}
		if !o.Status.Signaled || o.Status.Signal != unix.SIGKILL {
			return fmt.Errorf("%w: writer ended with %v, want SIGKILL", ErrUnexpectedOutcome, o.Status)
		}
		if o.Cnt0 != 0 {
			return fmt.Errorf("%w: killed writer published %d frames", ErrUnexpectedOutcome, o.Cnt0)
		}
		return nil
	}
	if o.WaitErr != nil {
		return fmt.Errorf("%w: wait returned %v", ErrUnexpectedOutcome, o.WaitErr)
	}
	if !o.FrameOK || o.Cnt0 != 1 {
		return fmt.Errorf("%w: frame mismatch (cnt0 %d)", ErrUnexpectedOutcome, o.Cnt0)
	}
	if !o.Status.Clean() {
		return fmt.Errorf("%w: writer ended with %v", ErrUnexpectedOutcome, o.Status)
	}
	return nil
}

// Run executes all five phases, always tearing down, and checks the
// outcome.
func (h *Harness) Run(ctx context.Context) (Outcome, error) {
	if err := h.Prepare(); err != nil {
		return Outcome{}, err
	}

	err := h.Spawn(ctx)
	if err == nil {
		err = h.Attach()
	}
	if err == nil {
		err = h.ReleaseAndWait(ctx)
	}

	outcome, terr := h.Teardown(ctx)
	if err != nil || terr != nil {
		return outcome, errors.Join(err, terr)
	}
	return outcome, h.Check(outcome)
}
