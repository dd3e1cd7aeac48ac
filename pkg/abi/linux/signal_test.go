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

package linux

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSignalSetAddRemove(t *testing.T) {
	var set SignalSet
	if !set.Add(SIGINT) {
		t.Errorf("Add(SIGINT) on empty set: got false, want true")
	}
	if !set.Has(SIGINT) {
		t.Errorf("Has(SIGINT) after Add: got false, want true")
	}
	if set.Add(SIGINT) {
		t.Errorf("second Add(SIGINT): got true, want false")
	}
	if !set.Remove(SIGINT) {
		t.Errorf("Remove(SIGINT): got false, want true")
	}
	if set.Has(SIGINT) {
		t.Errorf("Has(SIGINT) after Remove: got true, want false")
	}
	if set.Remove(SIGINT) {
		t.Errorf("second Remove(SIGINT): got true, want false")
	}
	if !set.Empty() {
		t.Errorf("set = %v, want empty", set)
	}
}

func TestSignalSetBitIndex(t *testing.T) {
	for sig := Signal(1); sig <= SignalMaximum; sig++ {
		set := SignalSetOf(sig)
		if got, want := uint64(set), uint64(1)<<(sig-1); got != want {
			t.Errorf("SignalSetOf(%d) = %#x, want %#x", sig, got, want)
		}
	}
}

func TestSignalSetDequeue(t *testing.T) {
	for _, tc := range []struct {
		name string
		set  SignalSet
		mask SignalSet
		want Signal
		ok   bool
	}{
		{"empty", 0, FullSignalSet, 0, false},
		{"lowest", MakeSignalSet(SIGHUP, SIGTERM), FullSignalSet, SIGHUP, true},
		{"masked", MakeSignalSet(SIGHUP, SIGTERM), SignalSetOf(SIGHUP).Not(), SIGTERM, true},
		{"disjoint", MakeSignalSet(SIGUSR1), MakeSignalSet(SIGUSR2), 0, false},
		{"realtime", MakeSignalSet(SIGRTMAX, SIGRTMIN), FullSignalSet, SIGRTMIN, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			set := tc.set
			got, ok := set.Dequeue(tc.mask)
			if got != tc.want || ok != tc.ok {
				t.Errorf("Dequeue(%v) = (%v, %t), want (%v, %t)", tc.mask, got, ok, tc.want, tc.ok)
			}
			if set != tc.set {
				t.Errorf("Dequeue mutated the set: got %v, want %v", set, tc.set)
			}
		})
	}
}

func TestSignalSetCombine(t *testing.T) {
	a := MakeSignalSet(SIGINT, SIGTERM)
	b := MakeSignalSet(SIGTERM, SIGUSR1)
	if got, want := a.And(b), SignalSetOf(SIGTERM); got != want {
		t.Errorf("And = %v, want %v", got, want)
	}
	if got, want := a.Or(b), MakeSignalSet(SIGINT, SIGTERM, SIGUSR1); got != want {
		t.Errorf("Or = %v, want %v", got, want)
	}
	if got := a.Not().And(a); got != 0 {
		t.Errorf("Not().And(self) = %v, want {}", got)
	}
	if got, want := a.Not().Or(a), FullSignalSet; got != want {
		t.Errorf("Not().Or(self) = %v, want %v", got, want)
	}
}

func TestDefaultAction(t *testing.T) {
	classes := map[DefaultSignalAction][]Signal{
		SignalActionTerminate: {SIGHUP, SIGINT, SIGKILL, SIGUSR1, SIGUSR2, SIGPIPE, SIGALRM, SIGTERM, SIGSTKFLT, SIGVTALRM, SIGPROF, SIGIO, SIGPWR},
		SignalActionCoreDump:  {SIGQUIT, SIGILL, SIGTRAP, SIGABRT, SIGBUS, SIGFPE, SIGSEGV, SIGXCPU, SIGXFSZ, SIGSYS},
		SignalActionStop:      {SIGSTOP, SIGTSTP, SIGTTIN, SIGTTOU},
		SignalActionContinue:  {SIGCONT},
		SignalActionIgnore:    {SIGCHLD, SIGURG, SIGWINCH},
	}
	seen := 0
	for want, sigs := range classes {
		for _, sig := range sigs {
			seen++
			if got := sig.DefaultAction(); got != want {
				t.Errorf("%v.DefaultAction() = %v, want %v", sig, got, want)
			}
		}
	}
	if seen != NumStdSignals {
		t.Errorf("table covers %d standard signals, want %d", seen, NumStdSignals)
	}
	for sig := Signal(FirstRTSignal); sig <= LastRTSignal; sig++ {
		if got := sig.DefaultAction(); got != SignalActionIgnore {
			t.Errorf("%v.DefaultAction() = %v, want %v", sig, got, SignalActionIgnore)
		}
	}
}

func TestSignalClasses(t *testing.T) {
	if !SIGSYS.IsStandard() || SIGSYS.IsRealtime() {
		t.Errorf("SIGSYS should be standard")
	}
	if SIGRTMIN.IsStandard() || !SIGRTMIN.IsRealtime() {
		t.Errorf("SIGRTMIN should be realtime")
	}
	if Signal(0).IsValid() || Signal(65).IsValid() {
		t.Errorf("0 and 65 should not be valid")
	}
	if !SIGKILL.IsUnblockable() || !SIGSTOP.IsUnblockable() || SIGTERM.IsUnblockable() {
		t.Errorf("only SIGKILL and SIGSTOP are unblockable")
	}
}

func TestSignalNames(t *testing.T) {
	for _, tc := range []struct {
		name string
		sig  Signal
	}{
		{"SIGINT", SIGINT},
		{"INT", SIGINT},
		{"SIGCHLD", SIGCHLD},
		{"SIGRTMIN", SIGRTMIN},
		{"SIGRTMIN+3", SIGRTMIN + 3},
		{"SIGRTMAX", SIGRTMAX},
		{"SIGRTMAX-1", SIGRTMAX - 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := SignalByName(tc.name)
			if !ok || got != tc.sig {
				t.Errorf("SignalByName(%q) = (%v, %t), want (%v, true)", tc.name, got, ok, tc.sig)
			}
		})
	}
	for _, bad := range []string{"SIGNOPE", "SIGRTMIN+40", "SIGRTMIN+x"} {
		if sig, ok := SignalByName(bad); ok {
			t.Errorf("SignalByName(%q) = %v, want failure", bad, sig)
		}
	}
	if got, want := (SIGRTMIN + 2).String(), "SIGRTMIN+2"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got, want := MakeSignalSet(SIGINT, SIGTERM).String(), "{SIGINT, SIGTERM}"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestSignalInfoLayout(t *testing.T) {
	info := SignalInfo{Signo: int32(SIGRTMIN), Code: SI_QUEUE}
	info.SetPID(42)
	info.SetUID(1000)
	info.SetSigval(0xdeadbeef)

	buf := make([]byte, info.SizeBytes())
	if rest := info.MarshalBytes(buf); len(rest) != 0 {
		t.Fatalf("MarshalBytes left %d bytes", len(rest))
	}
	if got, want := byteOrder.Uint32(buf[0:4]), uint32(SIGRTMIN); got != want {
		t.Errorf("si_signo = %d, want %d", got, want)
	}
	if got, want := int32(byteOrder.Uint32(buf[8:12])), int32(SI_QUEUE); got != want {
		t.Errorf("si_code = %d, want %d", got, want)
	}
	if got, want := byteOrder.Uint32(buf[16:20]), uint32(42); got != want {
		t.Errorf("si_pid = %d, want %d", got, want)
	}
	if got, want := byteOrder.Uint64(buf[24:32]), uint64(0xdeadbeef); got != want {
		t.Errorf("si_value = %#x, want %#x", got, want)
	}

	var out SignalInfo
	out.UnmarshalBytes(buf)
	if out != info {
		t.Errorf("UnmarshalBytes = %+v, want %+v", out, info)
	}
	if out.PID() != 42 || out.UID() != 1000 {
		t.Errorf("PID/UID = %d/%d, want 42/1000", out.PID(), out.UID())
	}
}

func TestSigActionLayout(t *testing.T) {
	act := SigAction{
		Handler:  0x401000,
		Flags:    SA_SIGINFO | SA_RESTORER,
		Restorer: 0x402000,
		Mask:     MakeSignalSet(SIGUSR2),
	}
	buf := make([]byte, act.SizeBytes())
	act.MarshalBytes(buf)
	if got, want := byteOrder.Uint64(buf[24:32]), uint64(SignalSetOf(SIGUSR2)); got != want {
		t.Errorf("sa_mask = %#x, want %#x", got, want)
	}
	var out SigAction
	out.UnmarshalBytes(buf)
	if diff := cmp.Diff(act, out); diff != "" {
		t.Errorf("UnmarshalBytes mismatch (-want +got):\n%s", diff)
	}
}

func TestSignalStack(t *testing.T) {
	st := SignalStack{Addr: 0x1000, Size: 0x1000}
	if !st.IsEnabled() {
		t.Errorf("IsEnabled() = false, want true")
	}
	for _, tc := range []struct {
		sp   uint64
		want bool
	}{
		{0x1000, false},
		{0x1001, true},
		{0x2000, true},
		{0x2001, false},
	} {
		if got := st.Contains(tc.sp); got != tc.want {
			t.Errorf("Contains(%#x) = %t, want %t", tc.sp, got, tc.want)
		}
	}
	st.Flags = SS_DISABLE
	if st.IsEnabled() {
		t.Errorf("IsEnabled() with SS_DISABLE = true, want false")
	}
	buf := make([]byte, SizeOfSignalStack)
	st.MarshalBytes(buf)
	if got, want := byteOrder.Uint64(buf[16:24]), st.Size; got != want {
		t.Errorf("ss_size = %#x, want %#x", got, want)
	}
}
