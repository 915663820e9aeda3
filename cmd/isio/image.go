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
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/magao-x/ImageStreamIO/datatype"
	"github.com/magao-x/ImageStreamIO/internal/logging"
	"github.com/magao-x/ImageStreamIO/isio"
)

func runCreate(ctx context.Context, e *env, args []string) error {
	var (
		iopts      imageOptions
		dims       = "32x32"
		typeName   = datatype.Float.Name()
		circular   bool
		semaphores = e.cfg.Semaphores
		cbSize     uint32
		imageType  uint32
	)
	fs := newFlagSet(e, "create")
	iopts.AddFlags(fs)
	fs.StringVar(&dims, "dims", dims, "Axis lengths, e.g. 512x512 or 64x64x10.")
	fs.StringVarP(&typeName, "type", "t", typeName, "Element type, by name (FLT32, UI16, ...).")
	fs.BoolVar(&circular, "circular", circular, "Make a circular buffer of slices along the third axis.")
	fs.IntVar(&semaphores, "semaphores", semaphores, "Number of semaphores, one per reader.")
	fs.Uint32Var(&cbSize, "cbsize", cbSize, "Slice count hint stored in the descriptor.")
	fs.Uint32Var(&imageType, "image-type", imageType, "Additional image type flags.")
	rest, err := parseArgs(fs, args, 1, 1)
	if err != nil {
		return err
	}

	axes, err := parseDims(dims)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	dt, err := parseType(typeName)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	opts := append(iopts.isioOptions(ctx, e),
		isio.WithSemaphores(semaphores),
		isio.WithImageType(imageType),
		isio.WithCBSize(cbSize),
	)
	if circular {
		opts = append(opts, isio.WithCircularBuffer())
	}
	img, err := isio.Create(rest[0], axes, dt, opts...)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, img.Path())
	return img.Close()
}

func runInfo(ctx context.Context, e *env, args []string) error {
	var iopts imageOptions
	fs := newFlagSet(e, "info")
	iopts.AddFlags(fs)
	names, err := parseArgs(fs, args, 1, -1)
	if err != nil {
		return err
	}

	for i, name := range names {
		if i > 0 {
			fmt.Fprintln(e.out)
		}
		if err := printInfo(e, name, iopts.isioOptions(ctx, e)); err != nil {
			return err
		}
	}
	return nil
}

func printInfo(e *env, name string, opts []isio.Option) error {
	img, err := isio.Open(name, opts...)
	if err != nil {
		return err
	}
	defer img.Close()

	md := img.Metadata()
	dt := md.Datatype
	w := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "name\t%s\n", md.Name)
	fmt.Fprintf(w, "path\t%s\n", img.Path())
	fmt.Fprintf(w, "size\t%s\n", formatDims(&md))
	fmt.Fprintf(w, "datatype\t%s (%s, %q) %d bytes\n", dt.Name(), dt.Name7(), dt.NameShort(), dt.Size())
	fmt.Fprintf(w, "fits\tdatatype %d, bitpix %d\n", datatype.FITSDatatype(dt), datatype.FITSBitpix(dt))
	fmt.Fprintf(w, "image type\t%#x\n", md.ImageType)
	if md.IsCircular() {
		fmt.Fprintf(w, "circular\t%d slices, last written %d\n", img.NbSlices(), md.Cnt1)
	}
	fmt.Fprintf(w, "location\t%s\n", formatLocation(md.Location))
	fmt.Fprintf(w, "elements\t%d\n", md.NElement)
	fmt.Fprintf(w, "cnt0\t%d\n", md.Cnt0)
	fmt.Fprintf(w, "writing\t%t\n", md.Write)
	fmt.Fprintf(w, "creator\tpid %d, alive %t\n", md.CreatorPID, img.WriterAlive())
	fmt.Fprintf(w, "created\t%s\n", md.CreationTime.Format(time.RFC3339Nano))
	fmt.Fprintf(w, "last update\t%s\n", md.LastAccessTime.Format(time.RFC3339Nano))

	values := make([]int, 0, md.NbSem)
	for i := 0; i < md.NbSem; i++ {
		v, err := img.SemValue(i)
		if err != nil {
			return err
		}
		values = append(values, v)
	}
	fmt.Fprintf(w, "semaphores\t%d %v\n", md.NbSem, values)
	return w.Flush()
}

func formatLocation(loc int8) string {
	if loc == isio.HostLocation {
		return "host"
	}
	return fmt.Sprintf("device %d", loc)
}

func runRemove(ctx context.Context, e *env, args []string) error {
	var iopts imageOptions
	fs := newFlagSet(e, "rm")
	iopts.AddFlags(fs)
	names, err := parseArgs(fs, args, 1, -1)
	if err != nil {
		return err
	}

	for _, name := range names {
		n, err := isio.Reclaim(name, iopts.isioOptions(ctx, e)...)
		if err != nil {
			return err
		}
		logging.FromContext(ctx).V(logging.VERBOSE).Info("Removed image", "image", name, "files", n)
		fmt.Fprintf(e.out, "%s: %d files removed\n", name, n)
	}
	return nil
}
