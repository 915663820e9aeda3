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
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/magao-x/ImageStreamIO/datatype"
	"github.com/magao-x/ImageStreamIO/internal/logging"
	"github.com/magao-x/ImageStreamIO/internal/metrics"
	"github.com/magao-x/ImageStreamIO/isio"
)

func runWrite(ctx context.Context, e *env, args []string) error {
	var (
		iopts    imageOptions
		value    float64
		step     float64
		ramp     bool
		count    = 1
		interval time.Duration
	)
	fs := newFlagSet(e, "write")
	iopts.AddFlags(fs)
	fs.Float64Var(&value, "value", value, "Value of every element of the first frame.")
	fs.Float64Var(&step, "step", step, "Added to the value for each following frame.")
	fs.BoolVar(&ramp, "ramp", ramp, "Add the element index to each element.")
	fs.IntVarP(&count, "count", "n", count, "Number of frames to write.")
	fs.DurationVar(&interval, "interval", interval, "Pause between frames.")
	rest, err := parseArgs(fs, args, 1, 1)
	if err != nil {
		return err
	}

	img, err := isio.Open(rest[0], iopts.isioOptions(ctx, e)...)
	if err != nil {
		return err
	}
	defer img.Close()

	md := img.Metadata()
	if md.Location != isio.HostLocation {
		return fmt.Errorf("%s lives on device %d", md.Name, md.Location)
	}
	frame := make([]byte, md.FrameBytes())
	values := make([]float64, len(frame)/md.Datatype.Size())

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for k := 0; k < count; k++ {
		if k > 0 && tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		base := value + float64(k)*step
		for i := range values {
			values[i] = base
			if ramp {
				values[i] += float64(i)
			}
		}
		if err := encodeFrame(md.Datatype, frame, values); err != nil {
			return err
		}
		if err := img.WriteFrame(frame); err != nil {
			return err
		}
		logging.FromContext(ctx).V(logging.DEBUG).Info("Wrote frame", "cnt0", img.Cnt0(), "value", base)
	}

	fmt.Fprintf(e.out, "%s: cnt0 %d\n", md.Name, img.Cnt0())
	return nil
}

// encodeFrame fills frame from values. Complex images get values as the
// real part.
func encodeFrame(t datatype.Type, frame []byte, values []float64) error {
	if !t.IsComplex() {
		return datatype.EncodeFloat64(t, frame, values)
	}
	c := make([]complex128, len(values))
	for i, v := range values {
		c[i] = complex(v, 0)
	}
	return datatype.EncodeComplex128(t, frame, c)
}

type watchOptions struct {
	imageOptions
	Semaphore   int
	Count       int
	Timeout     time.Duration
	WaitFor     time.Duration
	Flush       bool
	MetricsAddr string
}

func (o *watchOptions) AddFlags(fs *pflag.FlagSet) {
	o.imageOptions.AddFlags(fs)
	fs.IntVarP(&o.Semaphore, "sem", "s", o.Semaphore, "Semaphore to wait on. Every concurrent reader needs its own.")
	fs.IntVarP(&o.Count, "count", "n", o.Count, "Stop after this many frames per image. 0 runs until interrupted.")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "Bound of each frame wait.")
	fs.DurationVar(&o.WaitFor, "wait-for", o.WaitFor, "Wait this long for a missing image to appear.")
	fs.BoolVar(&o.Flush, "flush", o.Flush, "Drop posts pending on the semaphore before the first wait.")
	fs.StringVar(&o.MetricsAddr, "metrics-addr", o.MetricsAddr, "Serve prometheus metrics on this address while watching.")
}

func runWatch(ctx context.Context, e *env, args []string) error {
	o := watchOptions{
		Timeout:     e.cfg.WaitTimeout,
		Flush:       true,
		MetricsAddr: e.cfg.MetricsAddr,
	}
	fs := newFlagSet(e, "watch")
	o.AddFlags(fs)
	names, err := parseArgs(fs, args, 1, -1)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if o.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics.Register(reg)
		srv := &http.Server{
			Addr:              o.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logging.FromContext(ctx).Info("Serving metrics", "addr", o.MetricsAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	var (
		watchers errgroup.Group
		outMu    sync.Mutex
	)
	report := func(format string, args ...any) {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintf(e.out, format, args...)
	}
	for _, name := range names {
		watchers.Go(func() error {
			return watch(gctx, e, &o, name, report)
		})
	}
	g.Go(func() error {
		// Watchers ending on their own stop the metrics server.
		defer cancel()
		return watchers.Wait()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func watch(ctx context.Context, e *env, o *watchOptions, name string, report func(string, ...any)) error {
	log := logging.FromContext(ctx).WithValues("image", name)
	opts := o.isioOptions(ctx, e)

	if o.WaitFor > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, o.WaitFor)
		err := isio.WaitForSegment(waitCtx, name, opts...)
		cancel()
		if err != nil {
			return err
		}
	}
	img, err := isio.Open(name, opts...)
	if err != nil {
		return err
	}
	defer img.Close()

	if o.Flush {
		n, err := img.SemFlush(o.Semaphore)
		if err != nil {
			return err
		}
		log.V(logging.DEBUG).Info("Flushed semaphore", "sem", o.Semaphore, "posts", n)
	}

	md := img.Metadata()
	var (
		frame  []byte
		values []float64
	)
	for seen := 0; o.Count == 0 || seen < o.Count; {
		waitCtx, cancel := ctx, context.CancelFunc(func() {})
		if o.Timeout > 0 {
			waitCtx, cancel = context.WithTimeout(ctx, o.Timeout)
		}
		frame, err = img.ReadFrame(waitCtx, o.Semaphore, frame[:0])
		cancel()
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, isio.ErrTimeout):
			log.V(logging.VERBOSE).Info("No frame", "timeout", o.Timeout, "writerAlive", img.WriterAlive())
			continue
		default:
			return err
		}
		seen++

		cnt0 := img.Cnt0()
		if md.Datatype.IsComplex() {
			report("%s cnt0=%d slice=%d bytes=%d\n", name, cnt0, img.LastWroteIndex(), len(frame))
			continue
		}
		values, err = datatype.DecodeFloat64(md.Datatype, frame, values[:0])
		if err != nil {
			return err
		}
		lo, hi, mean := stats(values)
		report("%s cnt0=%d slice=%d min=%g max=%g mean=%g\n", name, cnt0, img.LastWroteIndex(), lo, hi, mean)
	}
	return nil
}

func stats(values []float64) (lo, hi, mean float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	var sum float64
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		sum += v
	}
	return lo, hi, sum / float64(len(values))
}
