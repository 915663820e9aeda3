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
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/magao-x/ImageStreamIO/internal/logging"
	"github.com/magao-x/ImageStreamIO/internal/shm"
	"github.com/magao-x/ImageStreamIO/isio"
)

func TestMain(m *testing.M) {
	if IsSubordinate() {
		os.Exit(RunWriter())
	}
	os.Exit(m.Run())
}

func newHarness(t *testing.T, name string, kill bool) *Harness {
	t.Helper()
	return &Harness{
		Name:        name,
		Dir:         t.TempDir(),
		KillWriter:  kill,
		WaitTimeout: 500 * time.Millisecond,
		Log:         logging.NewTestLogger(),
		Command: func(ctx context.Context) (*exec.Cmd, error) {
			return exec.CommandContext(ctx, os.Args[0], "-test.run=^$"), nil
		},
	}
}

func TestHandshakeClean(t *testing.T) {
	h := newHarness(t, "cleanup_clean", false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	outcome, err := h.Run(ctx)
	require.NoError(t, err)

	assert.NoError(t, outcome.WaitErr)
	assert.True(t, outcome.FrameOK)
	assert.Equal(t, uint64(1), outcome.Cnt0)
	assert.True(t, outcome.Status.Clean(), outcome.Status.String())
	assert.Equal(t, 1+isio.DefaultSemaphores, outcome.Reclaimed)

	entries, err := os.ReadDir(h.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandshakeWriterKilled(t *testing.T) {
	h := newHarness(t, "cleanup_crash", true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	outcome, err := h.Run(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, outcome.WaitErr, isio.ErrTimeout)
	assert.Less(t, outcome.WaitElapsed, h.WaitTimeout+waitSlack, "wait must not hang")
	assert.Zero(t, outcome.Cnt0)
	assert.False(t, outcome.WriterAlive)
	assert.True(t, outcome.Status.Signaled)
	assert.Equal(t, unix.SIGKILL, outcome.Status.Signal)
	assert.Equal(t, 1+isio.DefaultSemaphores, outcome.Reclaimed)

	entries, err := os.ReadDir(h.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no file may survive the crash variant")
}

func TestPrepareRemovesStaleFiles(t *testing.T) {
	h := newHarness(t, "cleanup_stale", false)
	for _, p := range []string{
		shm.SegmentFile(h.Dir, h.Name),
		shm.SemaphoreFile(h.Dir, h.Name, 0),
		shm.SemaphoreFile(h.Dir, h.Name, 7),
	} {
		require.NoError(t, os.WriteFile(p, []byte("stale"), 0o644))
	}

	require.NoError(t, h.Prepare())
	defer h.ready.Stop()

	entries, err := os.ReadDir(h.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTeardownAfterFailedAttach(t *testing.T) {
	h := newHarness(t, "cleanup_attach", false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, h.Prepare())
	require.NoError(t, h.Spawn(ctx))

	// Remove a semaphore behind the harness so attach fails.
	require.NoError(t, os.Remove(shm.SemaphoreFile(h.Dir, h.Name, 3)))
	assert.ErrorIs(t, h.Attach(), isio.ErrOpenFailed)

	outcome, err := h.Teardown(ctx)
	require.NoError(t, err)
	assert.True(t, outcome.Status.Signaled, "an unreleased writer is killed")

	entries, err := os.ReadDir(h.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCheckRejectsWrongOutcome(t *testing.T) {
	h := &Harness{WaitTimeout: time.Second}
	assert.ErrorIs(t, h.Check(Outcome{WaitErr: isio.ErrTimeout}), ErrUnexpectedOutcome)

	h.KillWriter = true
	assert.ErrorIs(t, h.Check(Outcome{}), ErrUnexpectedOutcome)
	assert.ErrorIs(t, h.Check(Outcome{WaitErr: isio.ErrTimeout, WaitElapsed: time.Minute}), ErrUnexpectedOutcome)
}

func TestWriterLogsCreateFailure(t *testing.T) {
	var stderr bytes.Buffer
	cmd := exec.Command(os.Args[0], "-test.run=^$")
	cmd.Env = append(cmd.Environ(),
		RoleEnv+"="+roleWriter,
		NameEnv+"=",
		"MILK_SHM_DIR="+t.TempDir(),
		"ISIO_LOG_DEV=false",
	)
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, exitCreate, exitErr.ExitCode())
	assert.Contains(t, stderr.String(), `"msg":"Creating image"`)
	assert.Contains(t, stderr.String(), `"logger":"writer"`)
}
