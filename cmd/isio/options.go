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
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/magao-x/ImageStreamIO/datatype"
	"github.com/magao-x/ImageStreamIO/internal/logging"
	"github.com/magao-x/ImageStreamIO/isio"
)

// imageOptions are the flags shared by every command that touches an
// image.
type imageOptions struct {
	Dir string
}

func (o *imageOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Dir, "dir", o.Dir, "Segment directory. Defaults to MILK_SHM_DIR, then /dev/shm, then /tmp.")
}

// isioOptions translates the flags and the environment into library
// options.
func (o *imageOptions) isioOptions(ctx context.Context, e *env) []isio.Option {
	opts := []isio.Option{
		isio.WithLogger(logging.FromContext(ctx)),
		isio.WithWaitTimeout(e.cfg.WaitTimeout),
	}
	if o.Dir != "" {
		opts = append(opts, isio.WithDir(o.Dir))
	}
	return opts
}

func newFlagSet(e *env, name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(e.errOut)
	fs.SortFlags = false
	return fs
}

// parseArgs parses args and checks the positional count is within
// [minArgs, maxArgs]. maxArgs < 0 means unbounded.
func parseArgs(fs *pflag.FlagSet, args []string, minArgs, maxArgs int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	rest := fs.Args()
	if len(rest) < minArgs || (maxArgs >= 0 && len(rest) > maxArgs) {
		return nil, fmt.Errorf("%w: got %d arguments", errUsage, len(rest))
	}
	return rest, nil
}

// parseDims parses axis lengths written as "512x512" or "64,64,10".
func parseDims(s string) ([]uint32, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == 'x' || r == 'X' || r == ',' })
	if len(fields) < 1 || len(fields) > 3 {
		return nil, fmt.Errorf("dims %q: need 1 to 3 axes", s)
	}
	dims := make([]uint32, len(fields))
	for i, f := range fields {
		n, err := strconv.ParseUint(strings.TrimSpace(f), 10, 32)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("dims %q: bad axis length %q", s, f)
		}
		dims[i] = uint32(n)
	}
	return dims, nil
}

func parseType(s string) (datatype.Type, error) {
	t, ok := datatype.ParseType(s)
	if !ok {
		return datatype.Uninitialized, fmt.Errorf("unknown datatype %q", s)
	}
	return t, nil
}

func formatDims(md *isio.Metadata) string {
	parts := make([]string, md.Naxis)
	for i := range parts {
		parts[i] = strconv.FormatUint(uint64(md.Size[i]), 10)
	}
	return strings.Join(parts, "x")
}
