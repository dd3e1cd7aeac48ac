// Copyright 2025 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config provides basic infrastructure to set configuration settings
// for sigsim. Each setting has a command line flag and may also be given in a
// TOML configuration file. Flags set on the command line take precedence over
// the file.
package config

import (
	"fmt"

	"gvisor.dev/sigcore/pkg/log"
)

// Config holds configuration that is not part of a simulated scenario.
type Config struct {
	// ConfigFile is the TOML file the remaining settings were read from, if
	// any.
	ConfigFile string `flag:"config"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug"`

	// LogFilename is the filename to log to, if not empty.
	LogFilename string `flag:"log"`

	// DebugLogFormat is the log format for debug: text, json, or json-k8s.
	DebugLogFormat string `flag:"debug-log-format"`

	// AlsoLogToStderr allows to send log messages to stderr.
	AlsoLogToStderr bool `flag:"alsologtostderr"`

	// MaxQueuedRealtime bounds the number of realtime signal instances
	// pending on a simulated process or thread. Zero means unbounded.
	MaxQueuedRealtime int `flag:"max-queued-realtime"`

	// DefaultRestorer is the handler return address used for actions
	// without SA_RESTORER. Zero selects the rt_sigreturn trampoline.
	DefaultRestorer uint64 `flag:"default-restorer"`

	// MetricsOutput is where commands write the metrics export: a file
	// path, "-" for stdout, or empty to skip it.
	MetricsOutput string `flag:"metrics-output"`
}

func (c *Config) validate() error {
	switch c.DebugLogFormat {
	case "text", "json", "json-k8s":
	default:
		return fmt.Errorf("invalid debug log format %q, must be 'text', 'json', or 'json-k8s'", c.DebugLogFormat)
	}
	if c.MaxQueuedRealtime < 0 {
		return fmt.Errorf("max-queued-realtime must not be negative, got %d", c.MaxQueuedRealtime)
	}
	return nil
}

// Log logs the effective configuration.
func (c *Config) Log() {
	log.Infof("Config:")
	log.Infof("\tDebug: %t", c.Debug)
	log.Infof("\tLogFilename: %q", c.LogFilename)
	log.Infof("\tDebugLogFormat: %s", c.DebugLogFormat)
	log.Infof("\tMaxQueuedRealtime: %d", c.MaxQueuedRealtime)
	log.Infof("\tDefaultRestorer: %#x", c.DefaultRestorer)
	if c.ConfigFile != "" {
		log.Infof("\tConfigFile: %q", c.ConfigFile)
	}
	if c.MetricsOutput != "" {
		log.Infof("\tMetricsOutput: %q", c.MetricsOutput)
	}
}
