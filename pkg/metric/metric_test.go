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

package metric

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"gvisor.dev/sigcore/pkg/prometheus"
)

// reset clears all global state in the metric package.
func reset() {
	initialized.Store(false)
	allMetrics = makeMetricSet()
}

func TestFieldMapper(t *testing.T) {
	m, err := newFieldMapper(
		NewField("target", []string{"thread", "process"}),
		NewField("class", []string{"standard", "realtime", "unknown"}),
	)
	if err != nil {
		t.Fatalf("newFieldMapper: %v", err)
	}
	if got, want := m.numKeys(), 6; got != want {
		t.Errorf("numKeys() = %d, want %d", got, want)
	}
	seen := make(map[int]bool)
	for _, target := range []string{"thread", "process"} {
		for _, class := range []string{"standard", "realtime", "unknown"} {
			key := m.lookup(target, class)
			if seen[key] {
				t.Errorf("lookup(%q, %q) = %d, which is already used", target, class, key)
			}
			seen[key] = true
			if diff := cmp.Diff([]string{target, class}, m.keyToMultiField(key)); diff != "" {
				t.Errorf("keyToMultiField(%d) mismatch (-want +got):\n%s", key, diff)
			}
		}
	}
}

func TestFieldMapperErrors(t *testing.T) {
	if _, err := newFieldMapper(NewField("empty", nil)); err != ErrFieldHasNoAllowedValues {
		t.Errorf("newFieldMapper with no values: got %v, want %v", err, ErrFieldHasNoAllowedValues)
	}
}

func TestUint64Metric(t *testing.T) {
	defer reset()

	plain := MustCreateNewUint64Metric("/test/plain", "plain counter")
	plain.Increment()
	plain.IncrementBy(4)
	if got := plain.Value(); got != 5 {
		t.Errorf("Value() = %d, want 5", got)
	}

	fielded := MustCreateNewUint64Metric("/test/fielded", "fielded counter", NewField("action", []string{"ignore", "handler"}))
	fielded.Increment("handler")
	fielded.Increment("handler")
	if got := fielded.Value("handler"); got != 2 {
		t.Errorf("Value(handler) = %d, want 2", got)
	}
	if got := fielded.Value("ignore"); got != 0 {
		t.Errorf("Value(ignore) = %d, want 0", got)
	}

	if _, err := NewUint64Metric("/test/plain", "dup"); err != ErrNameInUse {
		t.Errorf("duplicate registration: got %v, want %v", err, ErrNameInUse)
	}

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := NewUint64Metric("/test/late", "late"); err != ErrInitializationDone {
		t.Errorf("registration after Initialize: got %v, want %v", err, ErrInitializationDone)
	}
	if err := Initialize(); err == nil {
		t.Errorf("second Initialize succeeded")
	}
}

func TestDisallowedFieldValuePanics(t *testing.T) {
	defer reset()
	m := MustCreateNewUint64Metric("/test/strict", "strict", NewField("f", []string{"a"}))
	defer func() {
		if recover() == nil {
			t.Errorf("Increment with a disallowed value did not panic")
		}
	}()
	m.Increment("b")
}

func TestSnapshotExport(t *testing.T) {
	defer reset()

	sent := MustCreateNewUint64Metric("/signal/sent", "Signals sent.",
		NewField("target", []string{"thread", "process"}),
		NewField("class", []string{"standard", "realtime"}))
	faults := MustCreateNewUint64Metric("/signal/frame_faults", "Frame faults.")
	sent.IncrementBy(3, "process", "standard")
	sent.Increment("thread", "realtime")
	faults.Increment()

	snapshot := GetSnapshot(SnapshotOptions{})
	if got, want := len(snapshot.Data), 5; got != want {
		t.Fatalf("snapshot has %d data points, want %d", got, want)
	}

	var buf bytes.Buffer
	if _, err := prometheus.Write(&buf, prometheus.ExportOptions{CommentHeader: "sigcore test"}, snapshot, prometheus.SnapshotExportOptions{ExporterPrefix: "sigcore_"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("TextToMetricFamilies: %v\n%s", err, buf.String())
	}

	ff, ok := families["sigcore_signal_frame_faults"]
	if !ok {
		t.Fatalf("missing sigcore_signal_frame_faults in:\n%s", buf.String())
	}
	if ff.GetType() != dto.MetricType_COUNTER {
		t.Errorf("frame_faults type = %v, want COUNTER", ff.GetType())
	}
	if got := ff.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("frame_faults = %v, want 1", got)
	}

	got := make(map[string]float64)
	for _, m := range families["sigcore_signal_sent"].GetMetric() {
		var target, class string
		for _, l := range m.GetLabel() {
			switch l.GetName() {
			case "target":
				target = l.GetValue()
			case "class":
				class = l.GetValue()
			}
		}
		got[target+"/"+class] = m.GetCounter().GetValue()
	}
	want := map[string]float64{
		"thread/standard":  0,
		"thread/realtime":  1,
		"process/standard": 3,
		"process/realtime": 0,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("signal_sent mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotFilter(t *testing.T) {
	defer reset()
	MustCreateNewUint64Metric("/keep/me", "kept")
	MustCreateNewUint64Metric("/drop/me", "dropped")
	snapshot := GetSnapshot(SnapshotOptions{Filter: func(name string) bool {
		return strings.HasPrefix(name, "/keep/")
	}})
	if len(snapshot.Data) != 1 || snapshot.Data[0].Metric.Name != "keep_me" {
		t.Errorf("filtered snapshot = %+v, want only keep_me", snapshot.Data)
	}
}
