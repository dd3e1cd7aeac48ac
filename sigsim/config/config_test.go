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

package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestFlags() *flag.FlagSet {
	testFlags := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(testFlags)
	return testFlags
}

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sigsim.toml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c, err := NewFromFlags(newTestFlags())
	if err != nil {
		t.Fatal(err)
	}
	// All defaults doesn't require setting flags.
	if flags := c.ToFlags(); len(flags) > 0 {
		t.Errorf("default flags not set correctly for: %s", flags)
	}
	if c.DebugLogFormat != "text" {
		t.Errorf("DebugLogFormat=%q, want: text", c.DebugLogFormat)
	}
}

func TestFromFlags(t *testing.T) {
	testFlags := newTestFlags()
	for name, value := range map[string]string{
		"debug":               "true",
		"max-queued-realtime": "16",
		"default-restorer":    "0x401000",
		"metrics-output":      "-",
	} {
		if err := testFlags.Set(name, value); err != nil {
			t.Fatalf("Flag set %s=%s: %v", name, value, err)
		}
	}
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	want := Config{
		Debug:             true,
		DebugLogFormat:    "text",
		MaxQueuedRealtime: 16,
		DefaultRestorer:   0x401000,
		MetricsOutput:     "-",
	}
	if diff := cmp.Diff(want, *c); diff != "" {
		t.Errorf("NewFromFlags mismatch (-want +got):\n%s", diff)
	}

	flags := c.ToFlags()
	fm := map[string]string{}
	for _, f := range flags {
		kv := strings.SplitN(f, "=", 2)
		fm[kv[0]] = kv[1]
	}
	if diff := cmp.Diff(map[string]string{
		"--debug":               "true",
		"--max-queued-realtime": "16",
		"--default-restorer":    "4198400",
		"--metrics-output":      "-",
	}, fm); diff != "" {
		t.Errorf("ToFlags mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name  string
		flag  string
		value string
	}{
		{"log format", "debug-log-format", "yaml"},
		{"negative limit", "max-queued-realtime", "-1"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			testFlags := newTestFlags()
			if err := testFlags.Set(tc.flag, tc.value); err != nil {
				t.Fatal(err)
			}
			if _, err := NewFromFlags(testFlags); err == nil {
				t.Errorf("NewFromFlags(--%s=%s) succeeded, want error", tc.flag, tc.value)
			}
		})
	}
}

func TestConfigFile(t *testing.T) {
	path := writeConfigFile(t, `
debug = true
debug-log-format = "json"
max-queued-realtime = 8
default-restorer = 0x500000
`)
	testFlags := newTestFlags()
	if err := testFlags.Set("config", path); err != nil {
		t.Fatal(err)
	}
	// Command line wins over the file.
	if err := testFlags.Set("max-queued-realtime", "4"); err != nil {
		t.Fatal(err)
	}
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	want := Config{
		ConfigFile:        path,
		Debug:             true,
		DebugLogFormat:    "json",
		MaxQueuedRealtime: 4,
		DefaultRestorer:   0x500000,
	}
	if diff := cmp.Diff(want, *c); diff != "" {
		t.Errorf("NewFromFlags mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigFileErrors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		contents string
	}{
		{"unknown key", "platform = \"kvm\"\n"},
		{"wrong type", "max-queued-realtime = \"many\"\n"},
		{"syntax", "debug = \n"},
		{"nested config", "config = \"other.toml\"\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			testFlags := newTestFlags()
			if err := testFlags.Set("config", writeConfigFile(t, tc.contents)); err != nil {
				t.Fatal(err)
			}
			if _, err := NewFromFlags(testFlags); err == nil {
				t.Errorf("NewFromFlags succeeded, want error")
			}
		})
	}
}
