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
	"gvisor.dev/sigcore/pkg/abi/linux"
	"gvisor.dev/sigcore/pkg/hostarch"
)

// SignalContext64 is equivalent to struct sigcontext, the type passed as the
// second argument to signal handlers set by signal(2).
type SignalContext64 struct {
	R8      uint64
	R9      uint64
	R10     uint64
	R11     uint64
	R12     uint64
	R13     uint64
	R14     uint64
	R15     uint64
	Rdi     uint64
	Rsi     uint64
	Rbp     uint64
	Rbx     uint64
	Rdx     uint64
	Rax     uint64
	Rcx     uint64
	Rsp     uint64
	Rip     uint64
	Eflags  uint64
	Cs      uint16
	Gs      uint16 // always 0 on amd64.
	Fs      uint16 // always 0 on amd64.
	Ss      uint16 // only restored if _UC_STRICT_RESTORE_SS (unsupported).
	Err     uint64
	Trapno  uint64
	Oldmask linux.SignalSet
	Cr2     uint64
	// Pointer to a struct _fpstate. Floating point state is not part of
	// the saved context.
	Fpstate  uint64
	Reserved [8]uint64
}

// SizeOfSignalContext64 is the size of a marshalled SignalContext64.
const SizeOfSignalContext64 = 256

func (c *SignalContext64) leadingWords() [18]*uint64 {
	return [18]*uint64{
		&c.R8, &c.R9, &c.R10, &c.R11, &c.R12, &c.R13, &c.R14, &c.R15,
		&c.Rdi, &c.Rsi, &c.Rbp, &c.Rbx, &c.Rdx, &c.Rax, &c.Rcx, &c.Rsp,
		&c.Rip, &c.Eflags,
	}
}

// SizeBytes implements marshal.Marshallable.SizeBytes.
func (c *SignalContext64) SizeBytes() int {
	return SizeOfSignalContext64
}

// MarshalBytes implements marshal.Marshallable.MarshalBytes.
func (c *SignalContext64) MarshalBytes(dst []byte) []byte {
	for _, w := range c.leadingWords() {
		hostarch.ByteOrder.PutUint64(dst[:8], *w)
		dst = dst[8:]
	}
	for _, s := range [4]uint16{c.Cs, c.Gs, c.Fs, c.Ss} {
		hostarch.ByteOrder.PutUint16(dst[:2], s)
		dst = dst[2:]
	}
	for _, v := range [5]uint64{c.Err, c.Trapno, uint64(c.Oldmask), c.Cr2, c.Fpstate} {
		hostarch.ByteOrder.PutUint64(dst[:8], v)
		dst = dst[8:]
	}
	for _, v := range c.Reserved {
		hostarch.ByteOrder.PutUint64(dst[:8], v)
		dst = dst[8:]
	}
	return dst
}

// UnmarshalBytes implements marshal.Marshallable.UnmarshalBytes.
func (c *SignalContext64) UnmarshalBytes(src []byte) []byte {
	for _, w := range c.leadingWords() {
		*w = hostarch.ByteOrder.Uint64(src[:8])
		src = src[8:]
	}
	for _, s := range [4]*uint16{&c.Cs, &c.Gs, &c.Fs, &c.Ss} {
		*s = hostarch.ByteOrder.Uint16(src[:2])
		src = src[2:]
	}
	c.Err = hostarch.ByteOrder.Uint64(src[:8])
	c.Trapno = hostarch.ByteOrder.Uint64(src[8:16])
	c.Oldmask = linux.SignalSet(hostarch.ByteOrder.Uint64(src[16:24]))
	c.Cr2 = hostarch.ByteOrder.Uint64(src[24:32])
	c.Fpstate = hostarch.ByteOrder.Uint64(src[32:40])
	src = src[40:]
	for i := range c.Reserved {
		c.Reserved[i] = hostarch.ByteOrder.Uint64(src[:8])
		src = src[8:]
	}
	return src
}

// UContext64 is equivalent to ucontext_t on 64-bit x86.
type UContext64 struct {
	Flags    uint64
	Link     uint64
	Stack    linux.SignalStack
	MContext SignalContext64
	Sigset   linux.SignalSet
}

// SizeOfUContext64 is the size of a marshalled UContext64.
const SizeOfUContext64 = 16 + linux.SizeOfSignalStack + SizeOfSignalContext64 + linux.SignalSetSize

// SizeBytes implements marshal.Marshallable.SizeBytes.
func (uc *UContext64) SizeBytes() int {
	return SizeOfUContext64
}

// MarshalBytes implements marshal.Marshallable.MarshalBytes.
func (uc *UContext64) MarshalBytes(dst []byte) []byte {
	hostarch.ByteOrder.PutUint64(dst[:8], uc.Flags)
	hostarch.ByteOrder.PutUint64(dst[8:16], uc.Link)
	dst = uc.Stack.MarshalBytes(dst[16:])
	dst = uc.MContext.MarshalBytes(dst)
	return uc.Sigset.MarshalBytes(dst)
}

// UnmarshalBytes implements marshal.Marshallable.UnmarshalBytes.
func (uc *UContext64) UnmarshalBytes(src []byte) []byte {
	uc.Flags = hostarch.ByteOrder.Uint64(src[:8])
	uc.Link = hostarch.ByteOrder.Uint64(src[8:16])
	src = uc.Stack.UnmarshalBytes(src[16:])
	src = uc.MContext.UnmarshalBytes(src)
	return uc.Sigset.UnmarshalBytes(src)
}

// X86ContextService implements ContextService for x86-64 register files.
type X86ContextService struct {
	trampoline hostarch.Addr
}

var _ ContextService = (*X86ContextService)(nil)

// NewContextService returns a context service whose default restorer is the
// rt_sigreturn trampoline mapped at trampoline.
func NewContextService(trampoline hostarch.Addr) *X86ContextService {
	return &X86ContextService{trampoline: trampoline}
}

// CreateContext implements ContextService.CreateContext.
func (s *X86ContextService) CreateContext(regs *Registers, mask linux.SignalSet, alt linux.SignalStack) UContext64 {
	return UContext64{
		Stack: alt,
		MContext: SignalContext64{
			R8:      regs.R8,
			R9:      regs.R9,
			R10:     regs.R10,
			R11:     regs.R11,
			R12:     regs.R12,
			R13:     regs.R13,
			R14:     regs.R14,
			R15:     regs.R15,
			Rdi:     regs.Rdi,
			Rsi:     regs.Rsi,
			Rbp:     regs.Rbp,
			Rbx:     regs.Rbx,
			Rdx:     regs.Rdx,
			Rax:     regs.Rax,
			Rcx:     regs.Rcx,
			Rsp:     regs.Rsp,
			Rip:     regs.Rip,
			Eflags:  regs.Eflags,
			Cs:      uint16(regs.Cs),
			Ss:      uint16(regs.Ss),
			Oldmask: mask,
		},
		Sigset: mask,
	}
}

// RestoreContext implements ContextService.RestoreContext.
func (s *X86ContextService) RestoreContext(uc *UContext64, regs *Registers) {
	mc := &uc.MContext
	regs.R8 = mc.R8
	regs.R9 = mc.R9
	regs.R10 = mc.R10
	regs.R11 = mc.R11
	regs.R12 = mc.R12
	regs.R13 = mc.R13
	regs.R14 = mc.R14
	regs.R15 = mc.R15
	regs.Rdi = mc.Rdi
	regs.Rsi = mc.Rsi
	regs.Rbp = mc.Rbp
	regs.Rbx = mc.Rbx
	regs.Rdx = mc.Rdx
	regs.Rax = mc.Rax
	regs.Rcx = mc.Rcx
	regs.Rsp = mc.Rsp
	regs.Rip = mc.Rip
	regs.Cs = uint64(mc.Cs)
	regs.Eflags = (regs.Eflags &^ eflagsRestorable) | (mc.Eflags & eflagsRestorable)
	// Prevent syscall restart.
	regs.Orig_rax = ^uint64(0)
}

// TrampolineAddress implements ContextService.TrampolineAddress.
func (s *X86ContextService) TrampolineAddress() hostarch.Addr {
	return s.trampoline
}
