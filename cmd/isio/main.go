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

// isio inspects and drives shared memory image streams.
//
// Usage:
//
//	isio create [flags] NAME        Create an image and leave it in place
//	isio info [flags] NAME...       Print the descriptor of each image
//	isio rm [flags] NAME...         Remove the segment and semaphores of each image
//	isio write [flags] NAME         Publish frames filled with a value
//	isio watch [flags] NAME...      Wait on a semaphore and report every frame
//	isio dump [flags] NAME FILE     Save the last written frame to a snapshot
//	isio load [flags] FILE [NAME]   Publish a snapshot as a new frame
//	isio selftest [flags]           Run the writer crash handshake
//
// Settings are read from the environment and from a .env file in the
// working directory: MILK_SHM_DIR, ISIO_LOG_LEVEL, ISIO_LOG_DEV,
// ISIO_WAIT_TIMEOUT, ISIO_SEMAPHORES and ISIO_METRICS_ADDR.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"

	"github.com/magao-x/ImageStreamIO/internal/config"
	"github.com/magao-x/ImageStreamIO/internal/logging"
)

// command is one subcommand. run receives the arguments after the
// subcommand name.
type command struct {
	name  string
	usage string
	run   func(ctx context.Context, e *env, args []string) error
}

// env is what every subcommand shares. The logger travels in the
// context.
type env struct {
	cfg    config.Config
	out    io.Writer
	errOut io.Writer
}

var commands = []command{
	{"create", "create [flags] NAME", runCreate},
	{"info", "info [flags] NAME...", runInfo},
	{"rm", "rm [flags] NAME...", runRemove},
	{"write", "write [flags] NAME", runWrite},
	{"watch", "watch [flags] NAME...", runWatch},
	{"dump", "dump [flags] NAME FILE", runDump},
	{"load", "load [flags] FILE [NAME]", runLoad},
	{"selftest", "selftest [flags]", runSelftest},
}

// errUsage is returned for bad command lines; the usage text has been
// printed already.
var errUsage = errors.New("usage error")

func main() {
	if code, ok := subordinate(); ok {
		os.Exit(code)
	}
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "isio: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.NewLogger(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "isio: creating logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(logr.NewContext(context.Background(), log), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		os.Exit(2)
	default:
		logging.Fatal(log, err, "Command failed", "args", os.Args[1:])
	}
}

func run(ctx context.Context, cfg config.Config, args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		printUsage(stderr)
		return errUsage
	}
	name := args[0]
	if name == "help" || name == "-h" || name == "--help" {
		printUsage(stdout)
		return nil
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "isio: unknown command: %s\n", name)
		printUsage(stderr)
		return errUsage
	}

	ctx = logr.NewContext(ctx, logging.FromContext(ctx).WithName(cmd.name))
	e := &env{cfg: cfg, out: stdout, errOut: stderr}

	err := cmd.run(ctx, e, args[1:])
	switch {
	case errors.Is(err, pflag.ErrHelp):
		return nil
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "usage: isio %s\n", cmd.usage)
	}
	return err
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: isio COMMAND [flags] [args]")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  isio %s\n", c.usage)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'isio COMMAND --help' for the flags of a command.")
}
