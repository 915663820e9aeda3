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

package metrics

import (
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCounters(t *testing.T) {
	created := testutil.ToFloat64(segmentsCreated.WithLabelValues("host"))
	frames := testutil.ToFloat64(framesWritten)
	posts := testutil.ToFloat64(semaphorePosts)
	timeouts := testutil.ToFloat64(semaphoreWaits.WithLabelValues(WaitTimeout))
	reclaimed := testutil.ToFloat64(artifactsReclaimed)

	RecordImageCreated("host")
	RecordFrameWritten()
	RecordFrameWritten()
	RecordSemaphorePosts(10)
	RecordSemaphorePosts(0)
	RecordSemaphoreWait(WaitTimeout)
	RecordArtifactsReclaimed(3)
	RecordArtifactsReclaimed(-1)

	assert.Equal(t, created+1, testutil.ToFloat64(segmentsCreated.WithLabelValues("host")))
	assert.Equal(t, frames+2, testutil.ToFloat64(framesWritten))
	assert.Equal(t, posts+10, testutil.ToFloat64(semaphorePosts))
	assert.Equal(t, timeouts+1, testutil.ToFloat64(semaphoreWaits.WithLabelValues(WaitTimeout)))
	assert.Equal(t, reclaimed+3, testutil.ToFloat64(artifactsReclaimed))
}

func TestRegister(t *testing.T) {
	first := prometheus.NewRegistry()
	second := prometheus.NewRegistry()
	Register(first)
	Register(first)
	Register(second)

	RecordImageOpened()
	want := `
# HELP isio_images_opened_total Count of shared images opened by name.
# TYPE isio_images_opened_total counter
isio_images_opened_total ` + strconv.FormatFloat(testutil.ToFloat64(segmentsOpened), 'g', -1, 64) + `
`
	for _, reg := range []*prometheus.Registry{first, second} {
		require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want), "isio_images_opened_total"))
	}
}
