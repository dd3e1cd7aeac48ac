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

package arch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/sigcore/pkg/abi/linux"
	"gvisor.dev/sigcore/pkg/errors/linuxerr"
	"gvisor.dev/sigcore/pkg/hostarch"
	"gvisor.dev/sigcore/pkg/usermem"
)

func testRegisters() Registers {
	return Registers{
		R15: 15, R14: 14, R13: 13, R12: 12, Rbp: 0x7000, Rbx: 3,
		R11: 11, R10: 10, R9: 9, R8: 8, Rax: 0xa, Rcx: 0xc, Rdx: 0xd,
		Rsi: 0x51, Rdi: 0xd1, Orig_rax: 39, Rip: 0x401000, Cs: 0x33,
		Eflags: eflagsIF | eflagsZF, Rsp: 0x7ff0, Ss: 0x2b,
	}
}

func TestContextRoundTrip(t *testing.T) {
	svc := NewContextService(0x1000)
	regs := testRegisters()
	alt := linux.SignalStack{Addr: 0x9000, Size: linux.MINSIGSTKSZ}
	mask := linux.MakeSignalSet(linux.SIGUSR1)

	uc := svc.CreateContext(&regs, mask, alt)
	if uc.Sigset != mask {
		t.Errorf("Sigset = %v, want %v", uc.Sigset, mask)
	}
	if uc.Stack != alt {
		t.Errorf("Stack = %+v, want %+v", uc.Stack, alt)
	}

	var restored Registers
	svc.RestoreContext(&uc, &restored)
	want := regs
	want.Orig_rax = ^uint64(0)
	want.Ss = 0
	want.Eflags = regs.Eflags & eflagsRestorable
	if diff := cmp.Diff(want, restored); diff != "" {
		t.Errorf("RestoreContext mismatch (-want +got):\n%s", diff)
	}
	if got, want := svc.TrampolineAddress(), hostarch.Addr(0x1000); got != want {
		t.Errorf("TrampolineAddress() = %v, want %v", got, want)
	}
}

func TestRestoreContextEflags(t *testing.T) {
	svc := NewContextService(0)
	uc := UContext64{}
	uc.MContext.Eflags = ^uint64(0)
	regs := Registers{Eflags: eflagsIF}
	svc.RestoreContext(&uc, &regs)
	if got, want := regs.Eflags, uint64(eflagsIF|eflagsRestorable); got != want {
		t.Errorf("Eflags = %#x, want %#x", got, want)
	}
}

func TestSetupHandlerEntry(t *testing.T) {
	regs := testRegisters()
	regs.Eflags |= eflagsDF | eflagsTF
	regs.SetupHandlerEntry(0x402000, 0x6fe8, int(linux.SIGUSR2), 0x6ff0, 0x6ff8)
	if regs.IP() != 0x402000 || regs.Stack() != 0x6fe8 {
		t.Errorf("ip/sp = %v/%v, want 0x402000/0x6fe8", regs.IP(), regs.Stack())
	}
	if regs.Rdi != uint64(linux.SIGUSR2) || regs.Rsi != 0x6ff0 || regs.Rdx != 0x6ff8 || regs.Rax != 0 {
		t.Errorf("argument registers = %v", &regs)
	}
	if regs.Eflags&(eflagsDF|eflagsTF) != 0 {
		t.Errorf("Eflags = %#x, DF and TF should be clear", regs.Eflags)
	}
}

func TestSignalFrameLayout(t *testing.T) {
	if got, want := SizeOfUContext64, 304; got != want {
		t.Errorf("SizeOfUContext64 = %d, want %d", got, want)
	}
	if got, want := SignalFrameInfoOffset, 312; got != want {
		t.Errorf("SignalFrameInfoOffset = %d, want %d", got, want)
	}
	f := SignalFrame{Restorer: 0xabc, Trap: testRegisters()}
	f.Info.Signo = int32(linux.SIGSEGV)
	f.UC.Sigset = linux.MakeSignalSet(linux.SIGINT)
	buf := make([]byte, f.SizeBytes())
	if rest := f.MarshalBytes(buf); len(rest) != 0 {
		t.Fatalf("MarshalBytes left %d bytes", len(rest))
	}
	if got := hostarch.ByteOrder.Uint32(buf[SignalFrameInfoOffset:]); got != uint32(linux.SIGSEGV) {
		t.Errorf("si_signo at info offset = %d, want %d", got, linux.SIGSEGV)
	}
	// uc_sigmask is the last word of the ucontext.
	if got := hostarch.ByteOrder.Uint64(buf[SignalFrameInfoOffset-8:]); got != uint64(f.UC.Sigset) {
		t.Errorf("uc_sigmask = %#x, want %#x", got, uint64(f.UC.Sigset))
	}
	var out SignalFrame
	if rest := out.UnmarshalBytes(buf); len(rest) != 0 {
		t.Fatalf("UnmarshalBytes left %d bytes", len(rest))
	}
	if out != f {
		t.Errorf("UnmarshalBytes = %+v, want %+v", out, f)
	}
}

func TestPushPopFrame(t *testing.T) {
	mem := &usermem.BytesIO{Bytes: make([]byte, 0x2000), Base: 0x10000}
	st := Stack{IO: mem, Bottom: 0x12000}
	f := SignalFrame{Restorer: 0x1000, Trap: testRegisters()}
	addr, err := st.PushFrame(&f)
	if err != nil {
		t.Fatalf("PushFrame: %v", err)
	}
	if (addr+8)%16 != 0 {
		t.Errorf("frame address %v: (addr+8) is not 16-byte aligned", addr)
	}
	if addr+SizeOfSignalFrame > 0x12000 {
		t.Errorf("frame [%v, %v) overlaps the original stack", addr, addr+SizeOfSignalFrame)
	}

	// Simulate the handler's ret consuming the restorer slot.
	pop := Stack{IO: mem, Bottom: addr + 8}
	var out SignalFrame
	got, err := pop.PopFrame(&out)
	if err != nil {
		t.Fatalf("PopFrame: %v", err)
	}
	if got != addr {
		t.Errorf("PopFrame address = %v, want %v", got, addr)
	}
	if out != f {
		t.Errorf("PopFrame = %+v, want %+v", out, f)
	}
}

func TestPushFrameFault(t *testing.T) {
	mem := &usermem.BytesIO{Bytes: make([]byte, 0x100), Base: 0x10000}
	st := Stack{IO: mem, Bottom: 0x10100}
	if _, err := st.PushFrame(&SignalFrame{}); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("PushFrame on a short stack: got %v, want %v", err, linuxerr.EFAULT)
	}
	st = Stack{IO: mem, Bottom: 0x10}
	if _, err := st.PushFrame(&SignalFrame{}); !linuxerr.Equals(linuxerr.EFAULT, err) {
		t.Errorf("PushFrame near zero: got %v, want %v", err, linuxerr.EFAULT)
	}
}

func TestStackPushPop(t *testing.T) {
	mem := &usermem.BytesIO{Bytes: make([]byte, 64)}
	st := Stack{IO: mem, Bottom: 64}
	set := linux.MakeSignalSet(linux.SIGTERM)
	addr, err := st.Push(&set)
	if err != nil || addr != 56 {
		t.Fatalf("Push = (%v, %v), want (0x38, nil)", addr, err)
	}
	var out linux.SignalSet
	if _, err := st.Pop(&out); err != nil || out != set {
		t.Errorf("Pop = (%v, %v), want (%v, nil)", out, err, set)
	}
	if st.Bottom != 64 {
		t.Errorf("Bottom = %v, want 0x40", st.Bottom)
	}
}
