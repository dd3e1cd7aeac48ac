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

// Package prometheus contains Prometheus-compliant metric data structures and utilities.
// It can export data in Prometheus data format, documented at:
// https://prometheus.io/docs/instrumenting/exposition_formats/
package prometheus

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"
)

// timeNow is the time.Now() function. Can be mocked in tests.
var timeNow = time.Now

// Type is a Prometheus metric type.
type Type int

// List of supported Prometheus metric types.
const (
	TypeUntyped = Type(iota)
	TypeGauge
	TypeCounter
)

// Metric is a Prometheus metric metadata.
type Metric struct {
	// Name is the Prometheus metric name.
	Name string `json:"name"`

	// Type is the type of the metric.
	Type Type `json:"type"`

	// Help is an optional helpful string explaining what the metric is about.
	Help string `json:"help"`
}

// writeHeaderTo writes the metric comment header to the given writer.
func (m *Metric) writeHeaderTo(w io.Writer, options SnapshotExportOptions) error {
	if m.Help != "" {
		// Prometheus metric description escape rules: Only backslashes and line breaks need escaping.
		help := strings.ReplaceAll(strings.ReplaceAll(m.Help, "\\", "\\\\"), "\n", "\\n")
		if _, err := fmt.Fprintf(w, "# HELP %s%s %s\n", options.ExporterPrefix, m.Name, help); err != nil {
			return err
		}
	}
	var metricType string
	switch m.Type {
	case TypeGauge:
		metricType = "gauge"
	case TypeCounter:
		metricType = "counter"
	case TypeUntyped:
		metricType = "untyped"
	}
	if metricType != "" {
		if _, err := fmt.Fprintf(w, "# TYPE %s%s %s\n", options.ExporterPrefix, m.Name, metricType); err != nil {
			return err
		}
	}
	return nil
}

// Number represents a numerical value.
// In Prometheus, all numbers are float64s.
// However, for the purpose of usage of this library, we support expressing numbers as integers,
// which makes things like counters much easier and more precise.
// At data export time (i.e. when written out in Prometheus data format), it is coallesced into
// a float.
type Number struct {
	// Float is the float value of this number.
	// Mutually exclusive with Int.
	Float float64 `json:"float,omitempty"`

	// Int is the integer value of this number.
	// Mutually exclusive with Float.
	Int int64 `json:"int,omitempty"`
}

// String returns a string representation of this number.
func (n *Number) String() string {
	var s strings.Builder
	if err := n.writeTo(&s); err != nil {
		panic(err)
	}
	return s.String()
}

// writeTo writes the number to the given writer.
func (n *Number) writeTo(w io.Writer) error {
	var s string
	switch {
	// Zero case:
	case n.Int == 0 && n.Float == 0:
		s = "0"

	// Integer case:
	case n.Int != 0:
		s = fmt.Sprintf("%d", n.Int)

	// Special float cases:
	case n.Float == math.Inf(-1):
		s = "-Inf"
	case n.Float == math.Inf(1):
		s = "+Inf"
	case math.IsNaN(n.Float):
		s = "NaN"

	// Regular float case:
	default:
		s = fmt.Sprintf("%f", n.Float)
	}
	_, err := io.WriteString(w, s)
	return err
}

// Data is an observation of the value of a single metric at a certain point in time.
type Data struct {
	// Metric is the metric for which the value is being reported.
	Metric *Metric `json:"metric"`

	// Labels is a key-value pair representing the labels set on this metric.
	// This may be merged with other labels during export.
	Labels map[string]string `json:"labels,omitempty"`

	// Number is the observed value.
	Number *Number `json:"val,omitempty"`
}

// NewIntData returns a new Data struct with the given metric and value.
func NewIntData(metric *Metric, val int64) *Data {
	return &Data{Metric: metric, Number: &Number{Int: val}}
}

// LabeledIntData returns a new Data struct with the given metric, labels, and value.
func LabeledIntData(metric *Metric, labels map[string]string, val int64) *Data {
	return &Data{Metric: metric, Labels: labels, Number: &Number{Int: val}}
}

// ExportOptions contains options that control how metric data is exported in Prometheus format.
type ExportOptions struct {
	// CommentHeader is prepended as a comment before any metric data is exported.
	CommentHeader string
}

// SnapshotExportOptions contains options that control how metric data is exported for an
// individual Snapshot.
type SnapshotExportOptions struct {
	// ExporterPrefix is prepended to all metric names.
	ExporterPrefix string

	// ExtraLabels is added as labels for all metric values.
	ExtraLabels map[string]string
}

// OrderedLabels returns the list of 'label_key="label_value"' in sorted order.
func OrderedLabels(labels ...map[string]string) ([]string, error) {
	keys := make(map[string]struct{})
	var orderedKeys []string
	for _, labelMap := range labels {
		for k, v := range labelMap {
			if _, found := keys[k]; found {
				return nil, fmt.Errorf("duplicate label name %q", k)
			}
			keys[k] = struct{}{}
			orderedKeys = append(orderedKeys, fmt.Sprintf("%s=%q", k, v))
		}
	}
	sort.Strings(orderedKeys)
	return orderedKeys, nil
}

// writeLabelsTo writes a set of metric labels.
func (d *Data) writeLabelsTo(w io.Writer, extraLabels map[string]string) error {
	if len(d.Labels) == 0 && len(extraLabels) == 0 {
		return nil
	}
	orderedLabels, err := OrderedLabels(d.Labels, extraLabels)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, "{"+strings.Join(orderedLabels, ",")+"}"); err != nil {
		return err
	}
	return nil
}

// writeTo writes the Data to the given writer in Prometheus format.
func (d *Data) writeTo(w io.Writer, when time.Time, options SnapshotExportOptions, metricsWritten map[string]bool) error {
	switch d.Metric.Type {
	case TypeUntyped, TypeGauge, TypeCounter:
	default:
		return fmt.Errorf("unknown metric type for metric %s: %v", d.Metric.Name, d.Metric.Type)
	}

	// Metric header, if we haven't printed it yet.
	if !metricsWritten[d.Metric.Name] {
		// Extra newline before each preamble for aesthetic reasons.
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
		if err := d.Metric.writeHeaderTo(w, options); err != nil {
			return err
		}
		metricsWritten[d.Metric.Name] = true
	}
	if _, err := io.WriteString(w, options.ExporterPrefix+d.Metric.Name); err != nil {
		return err
	}
	if err := d.writeLabelsTo(w, options.ExtraLabels); err != nil {
		return err
	}
	if _, err := io.WriteString(w, " "); err != nil {
		return err
	}
	if err := d.Number.writeTo(w); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, " %d\n", when.UnixMilli())
	return err
}

// Snapshot is a snapshot of the values of all the metrics at a certain point in time.
type Snapshot struct {
	// When is the timestamp at which the snapshot was taken.
	// Note that Prometheus ultimately encodes timestamps as millisecond-precision int64s from epoch.
	When time.Time `json:"when,omitempty"`

	// Data is the whole snapshot data.
	// Each Data must be a unique combination of (Metric, Labels) within a Snapshot.
	Data []*Data `json:"data,omitempty"`
}

// NewSnapshot returns a new Snapshot at the current time.
func NewSnapshot() *Snapshot {
	return &Snapshot{When: timeNow()}
}

// Add data point(s) to the snapshot.
// Returns itself for chainability.
func (s *Snapshot) Add(data ...*Data) *Snapshot {
	s.Data = append(s.Data, data...)
	return s
}

// countingWriter implements io.Writer, and counts the number of bytes written to it.
// Useful in this file to keep track of total number of bytes without having to plumb this
// everywhere in the writeX() functions in this file.
type countingWriter struct {
	w       *bufio.Writer
	written int
}

// Write implements io.Writer.Write.
func (w *countingWriter) Write(b []byte) (int, error) {
	written, err := w.w.Write(b)
	w.written += written
	return written, err
}

// Written returns the number of bytes written to the underlying writer (minus buffered writes).
func (w *countingWriter) Written() int {
	return w.written - w.w.Buffered()
}

// Write writes the snapshot to the writer. Data points of the same metric are
// grouped together and metrics are written in name order.
func Write(w io.Writer, options ExportOptions, snapshot *Snapshot, snapshotOptions SnapshotExportOptions) (int, error) {
	cw := &countingWriter{w: bufio.NewWriter(w)}
	if options.CommentHeader != "" {
		for _, commentLine := range strings.Split(options.CommentHeader, "\n") {
			if _, err := fmt.Fprintf(cw, "# %s\n", commentLine); err != nil {
				return cw.Written(), err
			}
		}
	}
	if _, err := fmt.Fprintf(cw, "# Writing data from snapshot containing %d data points taken at %v.\n", len(snapshot.Data), snapshot.When); err != nil {
		return cw.Written(), err
	}

	byName := make(map[string][]*Data)
	for _, d := range snapshot.Data {
		byName[d.Metric.Name] = append(byName[d.Metric.Name], d)
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	metricsWritten := make(map[string]bool, len(names))
	for _, name := range names {
		for _, d := range byName[name] {
			if err := d.writeTo(cw, snapshot.When, snapshotOptions, metricsWritten); err != nil {
				return cw.Written(), err
			}
		}
	}
	if _, err := io.WriteString(cw, "\n# End of metric data.\n"); err != nil {
		return cw.Written(), err
	}
	if err := cw.w.Flush(); err != nil {
		return cw.Written(), err
	}
	return cw.Written(), nil
}
