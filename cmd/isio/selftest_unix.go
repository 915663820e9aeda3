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

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/magao-x/ImageStreamIO/cleanup"
	"github.com/magao-x/ImageStreamIO/internal/logging"
)

// subordinate runs the writer side of selftest when this process was
// spawned by it.
func subordinate() (int, bool) {
	if !cleanup.IsSubordinate() {
		return 0, false
	}
	return cleanup.RunWriter(), true
}

func runSelftest(ctx context.Context, e *env, args []string) error {
	var (
		iopts       imageOptions
		variant     = "both"
		name        = fmt.Sprintf("isio-selftest-%d", os.Getpid())
		waitTimeout = time.Second
	)
	fs := newFlagSet(e, "selftest")
	iopts.AddFlags(fs)
	fs.StringVar(&variant, "variant", variant, "Handshake to run: clean, kill or both.")
	fs.StringVar(&name, "name", name, "Image the writer creates.")
	fs.DurationVar(&waitTimeout, "wait-timeout", waitTimeout, "Bound of the data wait.")
	if _, err := parseArgs(fs, args, 0, 0); err != nil {
		return err
	}

	var kills []bool
	switch variant {
	case "clean":
		kills = []bool{false}
	case "kill":
		kills = []bool{true}
	case "both":
		kills = []bool{false, true}
	default:
		return fmt.Errorf("%w: unknown variant %q", errUsage, variant)
	}

	for _, kill := range kills {
		h := &cleanup.Harness{
			Name:        name,
			Dir:         iopts.Dir,
			KillWriter:  kill,
			WaitTimeout: waitTimeout,
			Log:         logging.FromContext(ctx),
		}
		label := "clean"
		if kill {
			label = "kill"
		}
		o, err := h.Run(ctx)
		if err != nil {
			fmt.Fprintf(e.out, "%s: FAIL\n", label)
			return fmt.Errorf("selftest %s: %w", label, err)
		}
		fmt.Fprintf(e.out, "%s: ok (wait %v, cnt0 %d, writer %s, %d files reclaimed)\n",
			label, o.WaitElapsed.Round(time.Millisecond), o.Cnt0, o.Status, o.Reclaimed)
	}
	return nil
}
