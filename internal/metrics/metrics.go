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

// Package metrics holds the prometheus counters of the image stream layer.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const component = "isio"

// Wait outcomes used as the result label of semaphore waits.
const (
	WaitOK       = "ok"
	WaitTimeout  = "timeout"
	WaitCanceled = "canceled"
)

var (
	segmentsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: component,
			Name:      "images_created_total",
			Help:      "Count of images created, by backing kind (local, host or device).",
		},
		[]string{"kind"},
	)
	segmentsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Subsystem: component,
			Name:      "images_opened_total",
			Help:      "Count of shared images opened by name.",
		},
	)
	artifactsReclaimed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Subsystem: component,
			Name:      "artifacts_reclaimed_total",
			Help:      "Count of segment and semaphore files removed by reclaim.",
		},
	)
	framesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Subsystem: component,
			Name:      "frames_written_total",
			Help:      "Count of frames published with UpdateImage.",
		},
	)
	semaphorePosts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Subsystem: component,
			Name:      "semaphore_posts_total",
			Help:      "Count of individual semaphore posts.",
		},
	)
	semaphoreWaits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: component,
			Name:      "semaphore_waits_total",
			Help:      "Count of semaphore waits, by result.",
		},
		[]string{"result"},
	)
)

// Register adds all metrics to reg. Any number of registries may be
// used; registering the same registry again is a no-op.
func Register(reg prometheus.Registerer) {
	for _, c := range []prometheus.Collector{
		segmentsCreated,
		segmentsOpened,
		artifactsReclaimed,
		framesWritten,
		semaphorePosts,
		semaphoreWaits,
	} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				panic(err)
			}
		}
	}
}

// RecordImageCreated records a successful create of the given kind.
func RecordImageCreated(kind string) {
	segmentsCreated.WithLabelValues(kind).Inc()
}

// RecordImageOpened records a successful open.
func RecordImageOpened() {
	segmentsOpened.Inc()
}

// RecordArtifactsReclaimed records n removed files.
func RecordArtifactsReclaimed(n int) {
	if n > 0 {
		artifactsReclaimed.Add(float64(n))
	}
}

// RecordFrameWritten records one published frame.
func RecordFrameWritten() {
	framesWritten.Inc()
}

// RecordSemaphorePosts records n semaphore posts.
func RecordSemaphorePosts(n int) {
	if n > 0 {
		semaphorePosts.Add(float64(n))
	}
}

// RecordSemaphoreWait records the outcome of one semaphore wait.
func RecordSemaphoreWait(result string) {
	semaphoreWaits.WithLabelValues(result).Inc()
}
