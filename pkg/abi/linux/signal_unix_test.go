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

//go:build linux && (amd64 || arm64 || riscv64 || ppc64le || s390x || loong64 || mips64 || mips64le)

package linux

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestSignalSetUnixRoundTrip(t *testing.T) {
	set := MakeSignalSet(SIGINT, SIGUSR1, SIGRTMAX)
	host := set.ToUnix()
	if got := SignalSetFromUnix(&host); got != set {
		t.Errorf("SignalSetFromUnix(ToUnix(%v)) = %v", set, got)
	}
}

func TestHostName(t *testing.T) {
	for _, sig := range []Signal{SIGINT, SIGKILL, SIGTERM, SIGUSR1, SIGSEGV} {
		if got, want := sig.HostName(), sig.String(); got != want {
			t.Errorf("HostName(%d) = %q, want %q", int(sig), got, want)
		}
		if got, want := unix.SignalNum(sig.String()), unix.Signal(sig); got != want {
			t.Errorf("unix.SignalNum(%q) = %d, want %d", sig.String(), got, want)
		}
	}
}
