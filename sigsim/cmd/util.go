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

// Package cmd holds implementations of the sigsim commands.
package cmd

import (
	"fmt"
	"io"
	"os"

	"gvisor.dev/sigcore/pkg/log"
	"gvisor.dev/sigcore/pkg/metric"
	"gvisor.dev/sigcore/pkg/prometheus"
	"gvisor.dev/sigcore/sigsim/config"
)

// Fatalf logs the message as a warning, prints it to stderr and exits with
// code 128.
func Fatalf(format string, args ...any) {
	log.WarningfAtDepth(1, format, args...)
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(128)
}

// writeMetrics writes the Prometheus export of all registered metrics to the
// destination named by conf.MetricsOutput.
func writeMetrics(conf *config.Config, commentHeader string) error {
	var w io.Writer
	switch conf.MetricsOutput {
	case "":
		return nil
	case "-":
		w = os.Stdout
	default:
		f, err := os.Create(conf.MetricsOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	written, err := prometheus.Write(w, prometheus.ExportOptions{
		CommentHeader: commentHeader,
	}, metric.GetSnapshot(metric.SnapshotOptions{}), prometheus.SnapshotExportOptions{
		ExporterPrefix: "sigsim_",
	})
	if err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	log.Infof("Wrote %d bytes of Prometheus metric data to %q", written, conf.MetricsOutput)
	return nil
}
