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

package log

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

type testWriter struct {
	lines []string
	fail  bool
}

func (w *testWriter) Write(bytes []byte) (int, error) {
	if w.fail {
		return 0, fmt.Errorf("simulated failure")
	}
	w.lines = append(w.lines, string(bytes))
	return len(bytes), nil
}

func TestDropMessages(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("line 1\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	tw.fail = true
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}

	tw.fail = false
	if _, err := w.Write([]byte("line 2\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	expected := []string{
		"line 1\n",
		"line 2\n",
		"\n*** Dropped 2 log messages ***\n",
	}
	if len(tw.lines) != len(expected) {
		t.Fatalf("Writer should have logged %d lines, got: %v, expected: %v", len(expected), tw.lines, expected)
	}
	for i, l := range tw.lines {
		if l != expected[i] {
			t.Errorf("line %d doesn't match, got: %q, expected: %q", i, l, expected[i])
		}
	}
}

func TestWriterAppendsNewline(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("no newline")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}
	if got, want := strings.Join(tw.lines, ""), "no newline\n"; got != want {
		t.Errorf("output: got %q, wanted %q", got, want)
	}
}

func TestBasicLoggerLevels(t *testing.T) {
	tw := &testWriter{}
	l := &BasicLogger{Level: Info, Emitter: &Writer{Next: tw}}

	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warningf("warning %d", 3)
	if got, want := strings.Join(tw.lines, ""), "info 2\nwarning 3\n"; got != want {
		t.Errorf("at Info: got %q, wanted %q", got, want)
	}

	tw.lines = nil
	l.SetLevel(Debug)
	if !l.IsLogging(Debug) {
		t.Errorf("IsLogging(Debug) = false after SetLevel(Debug)")
	}
	l.Debugf("debug %d", 4)
	if got, want := strings.Join(tw.lines, ""), "debug 4\n"; got != want {
		t.Errorf("at Debug: got %q, wanted %q", got, want)
	}
}

func TestGoogleEmitterFormat(t *testing.T) {
	tw := &testWriter{}
	e := GoogleEmitter{&Writer{Next: tw}}
	ts := time.Date(2025, time.May, 7, 13, 4, 5, 6000, time.UTC)
	e.Emit(0, Warning, ts, "hello %s", "world")
	if len(tw.lines) != 1 {
		t.Fatalf("got %d lines, wanted 1: %v", len(tw.lines), tw.lines)
	}
	line := tw.lines[0]
	if !strings.HasPrefix(line, "W0507 13:04:05.000006 ") {
		t.Errorf("unexpected header: %q", line)
	}
	if !strings.Contains(line, "log_test.go:") {
		t.Errorf("caller missing from %q", line)
	}
	if !strings.HasSuffix(line, "] hello world\n") {
		t.Errorf("unexpected message: %q", line)
	}
}

func TestRateLimitedLogger(t *testing.T) {
	tw := &testWriter{}
	l := &BasicLogger{Level: Debug, Emitter: &Writer{Next: tw}}
	rl := RateLimitedLogger(l, time.Hour)
	for i := 0; i < 10; i++ {
		rl.Warningf("message %d", i)
	}
	if got, want := strings.Join(tw.lines, ""), "message 0\n"; got != want {
		t.Errorf("rate limited output: got %q, wanted %q", got, want)
	}
	if !rl.IsLogging(Debug) {
		t.Errorf("IsLogging(Debug) = false, wanted true")
	}
}

func TestMultiEmitter(t *testing.T) {
	tw1, tw2 := &testWriter{}, &testWriter{}
	m := MultiEmitter{&Writer{Next: tw1}, &Writer{Next: tw2}}
	m.Emit(0, Info, time.Now(), "both")
	for i, tw := range []*testWriter{tw1, tw2} {
		if got := strings.Join(tw.lines, ""); got != "both\n" {
			t.Errorf("emitter %d: got %q, wanted %q", i, got, "both\n")
		}
	}
}
