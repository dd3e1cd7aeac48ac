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

package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/sigcore/pkg/abi/linux"
)

func TestParseScenario(t *testing.T) {
	sc, err := ParseScenario(`
[[action]]
signal = "usr1"
handler = "0x401000"
flags = ["SA_SIGINFO", "restorer"]
mask = ["USR2", "15"]
restorer = 0x402000

[[step]]
op = "wait"
signals = ["RTMIN+1"]
timeout = "25ms"
`)
	if err != nil {
		t.Fatalf("ParseScenario: %v", err)
	}
	if sc.Threads != 1 {
		t.Errorf("Threads = %d, want 1", sc.Threads)
	}
	if got := sc.Steps[0].Timeout.Duration; got != 25*time.Millisecond {
		t.Errorf("Timeout = %v, want 25ms", got)
	}

	got, err := sc.Actions[0].toABI()
	if err != nil {
		t.Fatalf("toABI: %v", err)
	}
	want := linux.SigAction{
		Handler:  0x401000,
		Flags:    linux.SA_SIGINFO | linux.SA_RESTORER,
		Restorer: 0x402000,
		Mask:     linux.MakeSignalSet(linux.SIGUSR2, linux.SIGTERM),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("toABI mismatch (-want +got):\n%s", diff)
	}
}

func TestParseScenarioErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		data string
		want string
	}{
		{
			name: "unknown key",
			data: "threads = 1\nprocesses = 2\n",
			want: "unknown scenario keys",
		},
		{
			name: "negative threads",
			data: "threads = -1\n",
			want: "invalid thread count",
		},
		{
			name: "unknown op",
			data: "[[step]]\nop = \"fork\"\n",
			want: "unknown op",
		},
		{
			name: "thread out of range",
			data: "threads = 2\n[[step]]\nop = \"check\"\nthread = 2\n",
			want: "out of range",
		},
		{
			name: "bad signal",
			data: "[[step]]\nop = \"send\"\nsignal = \"SIGFOO\"\n",
			want: "unknown signal",
		},
		{
			name: "signal zero",
			data: "[[step]]\nop = \"send\"\nsignal = \"0\"\n",
			want: "unknown signal",
		},
		{
			name: "bad mask how",
			data: "[[step]]\nop = \"mask\"\nhow = \"toggle\"\n",
			want: "unknown mask operation",
		},
		{
			name: "sigaction without action",
			data: "[[step]]\nop = \"sigaction\"\nsignal = \"INT\"\n",
			want: "without action",
		},
		{
			name: "bad timeout",
			data: "[[step]]\nop = \"wait\"\ntimeout = \"soon\"\n",
			want: "soon",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseScenario(tc.data)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("ParseScenario() = %v, want error containing %q", err, tc.want)
			}
		})
	}
}

func TestActionConfigErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		a    ActionConfig
	}{
		{name: "handler", a: ActionConfig{Handler: "main"}},
		{name: "flag", a: ActionConfig{Flags: []string{"SA_FAST"}}},
		{name: "mask", a: ActionConfig{Mask: []string{"SIGNONE"}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.a.toABI(); err == nil {
				t.Errorf("toABI(%+v) succeeded, want error", tc.a)
			}
		})
	}
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.toml")
	if err := os.WriteFile(path, []byte("threads = 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if sc.Threads != 3 {
		t.Errorf("Threads = %d, want 3", sc.Threads)
	}

	if _, err := LoadScenario(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Errorf("LoadScenario of a missing file succeeded")
	}
}
