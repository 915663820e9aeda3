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

// Package config reads image stream settings from the environment.
package config

import (
	"errors"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrParsingConfig is returned when environment variables cannot be
// parsed into Config.
var ErrParsingConfig = errors.New("failed to parse environment variables into config")

// Config holds the process-wide image stream settings.
type Config struct {
	// ShmDir overrides the segment directory when it exists.
	ShmDir string `env:"MILK_SHM_DIR"`

	// LogLevel is the logr verbosity of the command line tool.
	LogLevel int `env:"ISIO_LOG_LEVEL" envDefault:"2"`

	// LogDevelopment selects zap's development encoder.
	LogDevelopment bool `env:"ISIO_LOG_DEV" envDefault:"false"`

	// WaitTimeout bounds semaphore waits that carry no deadline.
	WaitTimeout time.Duration `env:"ISIO_WAIT_TIMEOUT" envDefault:"1s"`

	// Semaphores is the number of semaphores created with each image.
	Semaphores int `env:"ISIO_SEMAPHORES" envDefault:"10"`

	// MetricsAddr, when set, serves prometheus metrics from watch.
	MetricsAddr string `env:"ISIO_METRICS_ADDR"`
}

type shmEnv struct {
	Dir string `env:"MILK_SHM_DIR"`
}

// ShmDir returns the MILK_SHM_DIR override, or "" when unset.
func ShmDir() string {
	v, err := env.ParseAs[shmEnv]()
	if err != nil {
		return ""
	}
	return v.Dir
}

var dotEnvLoaded sync.Once

// LoadDotEnv loads a .env file from the working directory once. A missing
// file is not an error.
func LoadDotEnv() {
	dotEnvLoaded.Do(func() {
		_ = godotenv.Load()
	})
}

// Load parses the current environment. It is not cached, so changes to the
// environment are seen by the next call.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}
