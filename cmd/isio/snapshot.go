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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/magao-x/ImageStreamIO/internal/logging"
	"github.com/magao-x/ImageStreamIO/internal/snapshot"
	"github.com/magao-x/ImageStreamIO/isio"
)

func runDump(ctx context.Context, e *env, args []string) error {
	var iopts imageOptions
	fs := newFlagSet(e, "dump")
	iopts.AddFlags(fs)
	rest, err := parseArgs(fs, args, 2, 2)
	if err != nil {
		return err
	}
	name, path := rest[0], rest[1]

	img, err := isio.Open(name, iopts.isioOptions(ctx, e)...)
	if err != nil {
		return err
	}
	defer img.Close()

	snap, err := snapshot.Capture(img)
	if err != nil {
		return err
	}

	n, err := writeSnapshot(e.out, path, snap)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	logging.FromContext(ctx).V(logging.VERBOSE).Info("Saved snapshot", "image", name, "cnt0", snap.Cnt0, "file", path, "bytes", n)
	return nil
}

// writeSnapshot writes snap to path, or to stdout when path is "-".
func writeSnapshot(stdout io.Writer, path string, snap *snapshot.Snapshot) (int64, error) {
	if path == "-" {
		return snap.WriteTo(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := snap.WriteTo(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func runLoad(ctx context.Context, e *env, args []string) error {
	var (
		iopts      imageOptions
		create     bool
		semaphores = e.cfg.Semaphores
	)
	fs := newFlagSet(e, "load")
	iopts.AddFlags(fs)
	fs.BoolVar(&create, "create", create, "Create the image from the snapshot's shape when it does not exist.")
	fs.IntVar(&semaphores, "semaphores", semaphores, "Number of semaphores of a created image.")
	rest, err := parseArgs(fs, args, 1, 2)
	if err != nil {
		return err
	}

	snap, err := readSnapshot(rest[0])
	if err != nil {
		return err
	}
	name := snap.Name
	if len(rest) == 2 {
		name = rest[1]
	}

	opts := iopts.isioOptions(ctx, e)
	img, err := isio.Open(name, opts...)
	if errors.Is(err, isio.ErrOpenFailed) && create {
		createOpts := append(opts, isio.WithSemaphores(semaphores), isio.WithImageType(snap.ImageType))
		img, err = isio.Create(name, snap.Size[:snap.Naxis], snap.Datatype, createOpts...)
	}
	if err != nil {
		return err
	}
	defer img.Close()

	if err := snap.Restore(img); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s: cnt0 %d\n", name, img.Cnt0())
	return nil
}

func readSnapshot(path string) (*snapshot.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	snap, err := snapshot.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return snap, nil
}
