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

// Package subproc provides the process primitives of the crash recovery
// handshake: spawn a subordinate, wait for its readiness signal, release
// it, kill it and reap it.
//
// Readiness travels as SIGUSR2 from the subordinate to its parent. The
// parent must call NotifyReady before spawning so the signal is queued for
// it instead of terminating the process. Release travels over the
// subordinate's stdin: the parent writes one byte and closes the pipe.
package subproc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// ReadySignal is sent by a subordinate to its parent once it is ready.
const ReadySignal = unix.SIGUSR2

// ErrNotReleased is returned by AwaitRelease when stdin closes without a
// release token, typically because the parent died.
var ErrNotReleased = errors.New("stdin closed before release")

// Readiness receives ReadySignal.
type Readiness struct {
	ch chan os.Signal
}

// NotifyReady starts capturing ReadySignal for this process.
func NotifyReady() *Readiness {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, ReadySignal)
	return &Readiness{ch: ch}
}

// Wait blocks until ReadySignal arrives or ctx is done.
func (r *Readiness) Wait(ctx context.Context) error {
	select {
	case <-r.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop stops capturing ReadySignal.
func (r *Readiness) Stop() {
	signal.Stop(r.ch)
}

// SignalReady sends ReadySignal to the parent process.
func SignalReady() error {
	return unix.Kill(os.Getppid(), ReadySignal)
}

// AwaitRelease blocks until the parent releases this process through r.
func AwaitRelease(r io.Reader) error {
	var token [1]byte
	n, err := r.Read(token[:])
	if n == 1 {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return ErrNotReleased
	}
	return fmt.Errorf("awaiting release: %w", err)
}

// ExitStatus describes how a subordinate ended.
type ExitStatus struct {
	Code     int
	Signaled bool
	Signal   syscall.Signal
}

// Clean reports a zero exit without a signal.
func (s ExitStatus) Clean() bool {
	return !s.Signaled && s.Code == 0
}

func (s ExitStatus) String() string {
	if s.Signaled {
		return fmt.Sprintf("killed by %v", s.Signal)
	}
	return fmt.Sprintf("exit %d", s.Code)
}

// Process is a spawned subordinate.
type Process struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	done  chan struct{}

	status ExitStatus
	err    error
}

// Spawn starts cmd with a stdin pipe used for release. The process is
// reaped in the background as soon as it exits.
func Spawn(cmd *exec.Cmd) (*Process, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", cmd.Path, err)
	}

	p := &Process{cmd: cmd, stdin: stdin, done: make(chan struct{})}
	go p.wait()
	return p, nil
}

func (p *Process) wait() {
	defer close(p.done)
	err := p.cmd.Wait()

	if ws, ok := p.cmd.ProcessState.Sys().(syscall.WaitStatus); ok {
		p.status = ExitStatus{Code: ws.ExitStatus(), Signaled: ws.Signaled()}
		if ws.Signaled() {
			p.status.Signal = ws.Signal()
		}
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		p.err = err
	}
}

// Pid returns the process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Release writes the release token and closes stdin.
func (p *Process) Release() error {
	_, werr := p.stdin.Write([]byte{1})
	cerr := p.stdin.Close()
	if werr != nil {
		return fmt.Errorf("releasing %d: %w", p.Pid(), werr)
	}
	return cerr
}

// Kill terminates the process with SIGKILL.
func (p *Process) Kill() error {
	err := p.cmd.Process.Signal(unix.SIGKILL)
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("killing %d: %w", p.Pid(), err)
	}
	return nil
}

// Reap waits until the process has exited and been reaped.
func (p *Process) Reap(ctx context.Context) (ExitStatus, error) {
	select {
	case <-p.done:
		return p.status, p.err
	case <-ctx.Done():
		return ExitStatus{}, ctx.Err()
	}
}

// Exited reports whether the process has been reaped.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
