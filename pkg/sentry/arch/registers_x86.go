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
	"fmt"

	"gvisor.dev/sigcore/pkg/hostarch"
)

// eflags bits.
const (
	eflagsCF = 1 << 0
	eflagsPF = 1 << 2
	eflagsAF = 1 << 4
	eflagsZF = 1 << 6
	eflagsSF = 1 << 7
	eflagsTF = 1 << 8
	eflagsIF = 1 << 9
	eflagsDF = 1 << 10
	eflagsOF = 1 << 11
	eflagsRF = 1 << 16
	eflagsAC = 1 << 18

	// eflagsRestorable is the set of flags that rt_sigreturn(2) takes from
	// the saved context; see FIX_EFLAGS in arch/x86/kernel/signal.c.
	eflagsRestorable = eflagsAC | eflagsOF | eflagsDF | eflagsTF | eflagsSF |
		eflagsZF | eflagsAF | eflagsPF | eflagsCF | eflagsRF
)

// Registers is the general-purpose register file of an x86-64 thread, laid
// out like struct user_regs_struct.
type Registers struct {
	R15      uint64
	R14      uint64
	R13      uint64
	R12      uint64
	Rbp      uint64
	Rbx      uint64
	R11      uint64
	R10      uint64
	R9       uint64
	R8       uint64
	Rax      uint64
	Rcx      uint64
	Rdx      uint64
	Rsi      uint64
	Rdi      uint64
	Orig_rax uint64
	Rip      uint64
	Cs       uint64
	Eflags   uint64
	Rsp      uint64
	Ss       uint64
	Fs_base  uint64
	Gs_base  uint64
	Ds       uint64
	Es       uint64
	Fs       uint64
	Gs       uint64
}

// registersWords is the number of 64-bit words in Registers.
const registersWords = 27

// SizeOfRegisters is the size of a marshalled Registers.
const SizeOfRegisters = registersWords * 8

// IP returns the current instruction pointer.
func (r *Registers) IP() hostarch.Addr {
	return hostarch.Addr(r.Rip)
}

// SetIP sets the current instruction pointer.
func (r *Registers) SetIP(value hostarch.Addr) {
	r.Rip = uint64(value)
}

// Stack returns the current stack pointer.
func (r *Registers) Stack() hostarch.Addr {
	return hostarch.Addr(r.Rsp)
}

// SetStack sets the current stack pointer.
func (r *Registers) SetStack(value hostarch.Addr) {
	r.Rsp = uint64(value)
}

// SetupHandlerEntry redirects r so that execution resumes at handler on the
// stack sp, with the handler's arguments in the System V argument registers.
// infoAddr and ucAddr are zero for handlers that did not ask for SA_SIGINFO.
func (r *Registers) SetupHandlerEntry(handler, sp hostarch.Addr, signo int, infoAddr, ucAddr hostarch.Addr) {
	r.Rip = uint64(handler)
	r.Rsp = uint64(sp)
	r.Rdi = uint64(signo)
	r.Rsi = uint64(infoAddr)
	r.Rdx = uint64(ucAddr)
	// Non-variadic calling convention.
	r.Rax = 0
	// The handler starts with a clean direction flag and no single-stepping.
	r.Eflags &^= eflagsDF | eflagsRF | eflagsTF
}

// String implements fmt.Stringer.String.
func (r *Registers) String() string {
	return fmt.Sprintf("rip=%#x rsp=%#x rax=%#x rdi=%#x rsi=%#x rdx=%#x eflags=%#x",
		r.Rip, r.Rsp, r.Rax, r.Rdi, r.Rsi, r.Rdx, r.Eflags)
}

func (r *Registers) words() [registersWords]*uint64 {
	return [registersWords]*uint64{
		&r.R15, &r.R14, &r.R13, &r.R12, &r.Rbp, &r.Rbx, &r.R11, &r.R10,
		&r.R9, &r.R8, &r.Rax, &r.Rcx, &r.Rdx, &r.Rsi, &r.Rdi, &r.Orig_rax,
		&r.Rip, &r.Cs, &r.Eflags, &r.Rsp, &r.Ss, &r.Fs_base, &r.Gs_base,
		&r.Ds, &r.Es, &r.Fs, &r.Gs,
	}
}

// SizeBytes implements marshal.Marshallable.SizeBytes.
func (r *Registers) SizeBytes() int {
	return SizeOfRegisters
}

// MarshalBytes implements marshal.Marshallable.MarshalBytes.
func (r *Registers) MarshalBytes(dst []byte) []byte {
	for _, w := range r.words() {
		hostarch.ByteOrder.PutUint64(dst[:8], *w)
		dst = dst[8:]
	}
	return dst
}

// UnmarshalBytes implements marshal.Marshallable.UnmarshalBytes.
func (r *Registers) UnmarshalBytes(src []byte) []byte {
	for _, w := range r.words() {
		*w = hostarch.ByteOrder.Uint64(src[:8])
		src = src[8:]
	}
	return src
}
