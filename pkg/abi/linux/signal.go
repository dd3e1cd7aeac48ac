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

// Package linux contains the constants and types needed to interface with a
// Linux kernel's signal ABI.
package linux

import (
	"fmt"

	"gvisor.dev/sigcore/pkg/bits"
)

const (
	// SignalMaximum is the highest valid signal number.
	SignalMaximum = 64

	// FirstStdSignal is the lowest standard signal number.
	FirstStdSignal = 1

	// LastStdSignal is the highest standard signal number.
	LastStdSignal = 31

	// FirstRTSignal is the lowest real-time signal number.
	//
	// 32 (SIGCANCEL) and 33 (SIGSETXID) are used internally by glibc.
	FirstRTSignal = 32

	// LastRTSignal is the highest real-time signal number.
	LastRTSignal = 64

	// NumStdSignals is the number of standard signals.
	NumStdSignals = LastStdSignal - FirstStdSignal + 1

	// NumRTSignals is the number of realtime signals.
	NumRTSignals = LastRTSignal - FirstRTSignal + 1
)

// Signal is a signal number.
type Signal int

// IsValid returns true if s is a valid standard or realtime signal. (0 is not
// considered valid; interfaces special-casing signal number 0 should check for
// 0 first before asserting validity.)
func (s Signal) IsValid() bool {
	return s > 0 && s <= SignalMaximum
}

// IsStandard returns true if s is a standard signal.
//
// Preconditions: s.IsValid().
func (s Signal) IsStandard() bool {
	return s <= LastStdSignal
}

// IsRealtime returns true if s is a realtime signal.
//
// Preconditions: s.IsValid().
func (s Signal) IsRealtime() bool {
	return s >= FirstRTSignal
}

// Index returns the index for signal s into arrays of both standard and
// realtime signals (e.g. signal masks).
//
// Preconditions: s.IsValid().
func (s Signal) Index() int {
	return int(s - 1)
}

// String implements fmt.Stringer.String.
func (s Signal) String() string {
	if name, ok := signalNames[s]; ok {
		return name
	}
	if s.IsValid() && s.IsRealtime() {
		if s == FirstRTSignal {
			return "SIGRTMIN"
		}
		return fmt.Sprintf("SIGRTMIN+%d", int(s-FirstRTSignal))
	}
	return fmt.Sprintf("signal %d", int(s))
}

// Signals.
const (
	SIGABRT   = Signal(6)
	SIGALRM   = Signal(14)
	SIGBUS    = Signal(7)
	SIGCHLD   = Signal(17)
	SIGCLD    = Signal(17)
	SIGCONT   = Signal(18)
	SIGFPE    = Signal(8)
	SIGHUP    = Signal(1)
	SIGILL    = Signal(4)
	SIGINT    = Signal(2)
	SIGIO     = Signal(29)
	SIGIOT    = Signal(6)
	SIGKILL   = Signal(9)
	SIGPIPE   = Signal(13)
	SIGPOLL   = Signal(29)
	SIGPROF   = Signal(27)
	SIGPWR    = Signal(30)
	SIGQUIT   = Signal(3)
	SIGSEGV   = Signal(11)
	SIGSTKFLT = Signal(16)
	SIGSTOP   = Signal(19)
	SIGSYS    = Signal(31)
	SIGTERM   = Signal(15)
	SIGTRAP   = Signal(5)
	SIGTSTP   = Signal(20)
	SIGTTIN   = Signal(21)
	SIGTTOU   = Signal(22)
	SIGUNUSED = Signal(31)
	SIGURG    = Signal(23)
	SIGUSR1   = Signal(10)
	SIGUSR2   = Signal(12)
	SIGVTALRM = Signal(26)
	SIGWINCH  = Signal(28)
	SIGXCPU   = Signal(24)
	SIGXFSZ   = Signal(25)

	SIGRTMIN = Signal(FirstRTSignal)
	SIGRTMAX = Signal(LastRTSignal)
)

var signalNames = map[Signal]string{
	SIGHUP:    "SIGHUP",
	SIGINT:    "SIGINT",
	SIGQUIT:   "SIGQUIT",
	SIGILL:    "SIGILL",
	SIGTRAP:   "SIGTRAP",
	SIGABRT:   "SIGABRT",
	SIGBUS:    "SIGBUS",
	SIGFPE:    "SIGFPE",
	SIGKILL:   "SIGKILL",
	SIGUSR1:   "SIGUSR1",
	SIGSEGV:   "SIGSEGV",
	SIGUSR2:   "SIGUSR2",
	SIGPIPE:   "SIGPIPE",
	SIGALRM:   "SIGALRM",
	SIGTERM:   "SIGTERM",
	SIGSTKFLT: "SIGSTKFLT",
	SIGCHLD:   "SIGCHLD",
	SIGCONT:   "SIGCONT",
	SIGSTOP:   "SIGSTOP",
	SIGTSTP:   "SIGTSTP",
	SIGTTIN:   "SIGTTIN",
	SIGTTOU:   "SIGTTOU",
	SIGURG:    "SIGURG",
	SIGXCPU:   "SIGXCPU",
	SIGXFSZ:   "SIGXFSZ",
	SIGVTALRM: "SIGVTALRM",
	SIGPROF:   "SIGPROF",
	SIGWINCH:  "SIGWINCH",
	SIGIO:     "SIGIO",
	SIGPWR:    "SIGPWR",
	SIGSYS:    "SIGSYS",
}

// SignalByName returns the signal with the given name. Both "SIGINT" and
// "INT" are accepted, as are "SIGRTMIN+n" and "SIGRTMAX-n".
func SignalByName(name string) (Signal, bool) {
	if len(name) < 3 || name[:3] != "SIG" {
		name = "SIG" + name
	}
	for sig, n := range signalNames {
		if n == name {
			return sig, true
		}
	}
	var off int
	switch {
	case name == "SIGRTMIN":
		return SIGRTMIN, true
	case name == "SIGRTMAX":
		return SIGRTMAX, true
	case len(name) > 9 && name[:9] == "SIGRTMIN+":
		if _, err := fmt.Sscanf(name[9:], "%d", &off); err != nil {
			return 0, false
		}
	case len(name) > 9 && name[:9] == "SIGRTMAX-":
		if _, err := fmt.Sscanf(name[9:], "%d", &off); err != nil {
			return 0, false
		}
		off = NumRTSignals - 1 - off
	default:
		return 0, false
	}
	sig := SIGRTMIN + Signal(off)
	if off < 0 || !sig.IsValid() {
		return 0, false
	}
	return sig, true
}

// DefaultSignalAction is the built-in behavior for a signal whose disposition
// is SIG_DFL.
type DefaultSignalAction int

// Default signal actions, see signal(7).
const (
	SignalActionTerminate DefaultSignalAction = iota
	SignalActionCoreDump
	SignalActionStop
	SignalActionContinue
	SignalActionIgnore
)

// String implements fmt.Stringer.String.
func (a DefaultSignalAction) String() string {
	switch a {
	case SignalActionTerminate:
		return "terminate"
	case SignalActionCoreDump:
		return "coredump"
	case SignalActionStop:
		return "stop"
	case SignalActionContinue:
		return "continue"
	case SignalActionIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("DefaultSignalAction(%d)", int(a))
	}
}

var defaultActions = [NumStdSignals + 1]DefaultSignalAction{
	SIGHUP:    SignalActionTerminate,
	SIGINT:    SignalActionTerminate,
	SIGQUIT:   SignalActionCoreDump,
	SIGILL:    SignalActionCoreDump,
	SIGTRAP:   SignalActionCoreDump,
	SIGABRT:   SignalActionCoreDump,
	SIGBUS:    SignalActionCoreDump,
	SIGFPE:    SignalActionCoreDump,
	SIGKILL:   SignalActionTerminate,
	SIGUSR1:   SignalActionTerminate,
	SIGSEGV:   SignalActionCoreDump,
	SIGUSR2:   SignalActionTerminate,
	SIGPIPE:   SignalActionTerminate,
	SIGALRM:   SignalActionTerminate,
	SIGTERM:   SignalActionTerminate,
	SIGSTKFLT: SignalActionTerminate,
	SIGCHLD:   SignalActionIgnore,
	SIGCONT:   SignalActionContinue,
	SIGSTOP:   SignalActionStop,
	SIGTSTP:   SignalActionStop,
	SIGTTIN:   SignalActionStop,
	SIGTTOU:   SignalActionStop,
	SIGURG:    SignalActionIgnore,
	SIGXCPU:   SignalActionCoreDump,
	SIGXFSZ:   SignalActionCoreDump,
	SIGVTALRM: SignalActionTerminate,
	SIGPROF:   SignalActionTerminate,
	SIGWINCH:  SignalActionIgnore,
	SIGIO:     SignalActionTerminate,
	SIGPWR:    SignalActionTerminate,
	SIGSYS:    SignalActionCoreDump,
}

// DefaultAction returns the action taken for s when its disposition is
// SIG_DFL. Realtime signals are ignored by default.
//
// Preconditions: s.IsValid().
func (s Signal) DefaultAction() DefaultSignalAction {
	if s.IsRealtime() {
		return SignalActionIgnore
	}
	return defaultActions[s]
}

// IsUnblockable returns true if s can be neither blocked, caught nor
// ignored.
func (s Signal) IsUnblockable() bool {
	return s == SIGKILL || s == SIGSTOP
}

// SignalSet is a signal mask with a bit corresponding to each signal.
type SignalSet uint64

// SignalSetSize is the size in bytes of a SignalSet.
const SignalSetSize = 8

// FullSignalSet contains every valid signal.
const FullSignalSet = ^SignalSet(0)

// UnblockableSignals contains the signals that may never be blocked.
var UnblockableSignals = MakeSignalSet(SIGKILL, SIGSTOP)

// MakeSignalSet returns SignalSet with the bit corresponding to each of the
// given signals set.
func MakeSignalSet(sigs ...Signal) SignalSet {
	indices := make([]int, len(sigs))
	for i, sig := range sigs {
		indices[i] = sig.Index()
	}
	return SignalSet(bits.Mask64(indices...))
}

// SignalSetOf returns a SignalSet with a single signal set.
func SignalSetOf(sig Signal) SignalSet {
	return SignalSet(bits.MaskOf64(sig.Index()))
}

// ForEachSignal invokes f for each signal set in the given mask.
func ForEachSignal(mask SignalSet, f func(sig Signal)) {
	bits.ForEachSetBit64(uint64(mask), func(i int) {
		f(Signal(i + 1))
	})
}

// Add adds sig to s. It returns true if sig was not already a member.
func (s *SignalSet) Add(sig Signal) bool {
	bit := SignalSetOf(sig)
	added := *s&bit == 0
	*s |= bit
	return added
}

// Remove removes sig from s. It returns true if sig was a member.
func (s *SignalSet) Remove(sig Signal) bool {
	bit := SignalSetOf(sig)
	removed := *s&bit != 0
	*s &^= bit
	return removed
}

// Has returns true if sig is a member of s.
func (s SignalSet) Has(sig Signal) bool {
	return bits.IsOn64(uint64(s), bits.MaskOf64(sig.Index()))
}

// Dequeue returns the lowest-numbered signal present in both s and mask. s is
// not modified.
func (s SignalSet) Dequeue(mask SignalSet) (Signal, bool) {
	i, ok := bits.LowestSetBit64(uint64(s), uint64(mask))
	if !ok {
		return 0, false
	}
	return Signal(i + 1), true
}

// Not returns the complement of s.
func (s SignalSet) Not() SignalSet {
	return ^s
}

// And returns the intersection of s and other.
func (s SignalSet) And(other SignalSet) SignalSet {
	return s & other
}

// Or returns the union of s and other.
func (s SignalSet) Or(other SignalSet) SignalSet {
	return s | other
}

// Empty returns true if s contains no signals.
func (s SignalSet) Empty() bool {
	return s == 0
}

// String implements fmt.Stringer.String.
func (s SignalSet) String() string {
	if s == 0 {
		return "{}"
	}
	out := "{"
	first := true
	ForEachSignal(s, func(sig Signal) {
		if !first {
			out += ", "
		}
		first = false
		out += sig.String()
	})
	return out + "}"
}

// 'how' values for rt_sigprocmask(2).
const (
	// SIG_BLOCK blocks the signals in the set.
	SIG_BLOCK = 0

	// SIG_UNBLOCK blocks the signals in the set.
	SIG_UNBLOCK = 1

	// SIG_SETMASK sets the signal mask to set.
	SIG_SETMASK = 2
)

// Signal actions for rt_sigaction(2), from uapi/asm-generic/signal-defs.h.
const (
	// SIG_DFL performs the default action.
	SIG_DFL = 0

	// SIG_IGN ignores the signal.
	SIG_IGN = 1
)

// Signal action flags for rt_sigaction(2), from uapi/asm-generic/signal.h
const (
	SA_NOCLDSTOP = 0x00000001
	SA_NOCLDWAIT = 0x00000002
	SA_SIGINFO   = 0x00000004
	SA_RESTORER  = 0x04000000
	SA_ONSTACK   = 0x08000000
	SA_RESTART   = 0x10000000
	SA_NODEFER   = 0x40000000
	SA_RESETHAND = 0x80000000
	SA_NOMASK    = SA_NODEFER
	SA_ONESHOT   = SA_RESETHAND
)

// Signal stack flags for sigaltstack(2), from include/uapi/linux/signal.h.
const (
	SS_ONSTACK = 1
	SS_DISABLE = 2
)

// Alternate stack sizes, from arch/x86/include/uapi/asm/signal.h.
const (
	MINSIGSTKSZ = 2048
	SIGSTKSZ    = 8192
)

// si_code values, from include/uapi/asm-generic/siginfo.h.
const (
	// SI_USER is sent by kill, sigsend, raise.
	SI_USER = 0

	// SI_KERNEL is sent by the kernel from somewhere.
	SI_KERNEL = 0x80

	// SI_QUEUE is sent by sigqueue.
	SI_QUEUE = -1

	// SI_TIMER is sent by timer expiration.
	SI_TIMER = -2

	// SI_TKILL is sent by tkill system call.
	SI_TKILL = -6
)

// SIGSEGV si_codes.
const (
	// SEGV_MAPERR indicates an address not mapped to an object.
	SEGV_MAPERR = 1

	// SEGV_ACCERR indicates invalid permissions for a mapped object.
	SEGV_ACCERR = 2
)

// SignalStack represents information about a user stack, and is equivalent to
// stack_t.
type SignalStack struct {
	Addr  uint64
	Flags uint32
	_     uint32
	Size  uint64
}

// Top returns the stack's top address.
func (s *SignalStack) Top() uint64 {
	return s.Addr + s.Size
}

// SetOnStack marks this signal stack as in use.
//
// Note that there is no corresponding ClearOnStack, and that this should only
// be called on copies that are serialized to userspace.
func (s *SignalStack) SetOnStack() {
	s.Flags |= SS_ONSTACK
}

// Contains checks if the stack pointer is within this stack.
func (s *SignalStack) Contains(sp uint64) bool {
	return s.Addr < sp && sp <= s.Addr+s.Size
}

// IsEnabled returns true iff this signal stack is marked as enabled.
func (s SignalStack) IsEnabled() bool {
	return s.Flags&SS_DISABLE == 0
}

// SigAction represents struct sigaction as seen by rt_sigaction(2) on
// x86-64.
type SigAction struct {
	Handler  uint64
	Flags    uint64
	Restorer uint64
	Mask     SignalSet
}

// SignalInfo represents information about a signal being delivered, and is
// equivalent to struct siginfo in linux kernel(linux/include/uapi/asm-generic/siginfo.h).
type SignalInfo struct {
	Signo int32 // Signal number
	Errno int32 // Errno value
	Code  int32 // Signal code
	_     uint32

	// struct siginfo::_sifields is a union. In SignalInfo, fields in the union
	// are accessed through methods.
	//
	// _sifields is padded so that the size of siginfo is SI_MAX_SIZE = 128
	// bytes.
	Fields [128 - 16]byte
}

// FixSignalCodeForUser fixes up si_code.
//
// The si_code we get from Linux may contain the kernel-specific code in the
// top 16 bits if it's positive (e.g., from ptrace). Linux's
// copy_siginfo_to_user does
//
//	err |= __put_user((short)from->si_code, &to->si_code);
//
// to mask out those bits and we need to do the same.
func (s *SignalInfo) FixSignalCodeForUser() {
	if s.Code > 0 {
		s.Code &= 0x0000ffff
	}
}

// Signal returns the si_signo field as a Signal.
func (s *SignalInfo) Signal() Signal {
	return Signal(s.Signo)
}

// PID returns the si_pid field.
func (s *SignalInfo) PID() int32 {
	return int32(byteOrder.Uint32(s.Fields[0:4]))
}

// SetPID mutates the si_pid field.
func (s *SignalInfo) SetPID(val int32) {
	byteOrder.PutUint32(s.Fields[0:4], uint32(val))
}

// UID returns the si_uid field.
func (s *SignalInfo) UID() int32 {
	return int32(byteOrder.Uint32(s.Fields[4:8]))
}

// SetUID mutates the si_uid field.
func (s *SignalInfo) SetUID(val int32) {
	byteOrder.PutUint32(s.Fields[4:8], uint32(val))
}

// Sigval returns the sigval field, which is aliased to both si_int and si_ptr.
func (s *SignalInfo) Sigval() uint64 {
	return byteOrder.Uint64(s.Fields[8:16])
}

// SetSigval mutates the sigval field.
func (s *SignalInfo) SetSigval(val uint64) {
	byteOrder.PutUint64(s.Fields[8:16], val)
}

// TimerID returns the si_timerid field.
func (s *SignalInfo) TimerID() int32 {
	return int32(byteOrder.Uint32(s.Fields[0:4]))
}

// SetTimerID sets the si_timerid field.
func (s *SignalInfo) SetTimerID(val int32) {
	byteOrder.PutUint32(s.Fields[0:4], uint32(val))
}

// Overrun returns the si_overrun field.
func (s *SignalInfo) Overrun() int32 {
	return int32(byteOrder.Uint32(s.Fields[4:8]))
}

// SetOverrun sets the si_overrun field.
func (s *SignalInfo) SetOverrun(val int32) {
	byteOrder.PutUint32(s.Fields[4:8], uint32(val))
}

// Addr returns the si_addr field.
func (s *SignalInfo) Addr() uint64 {
	return byteOrder.Uint64(s.Fields[0:8])
}

// SetAddr sets the si_addr field.
func (s *SignalInfo) SetAddr(val uint64) {
	byteOrder.PutUint64(s.Fields[0:8], val)
}

// Status returns the si_status field.
func (s *SignalInfo) Status() int32 {
	return int32(byteOrder.Uint32(s.Fields[8:12]))
}

// SetStatus mutates the si_status field.
func (s *SignalInfo) SetStatus(val int32) {
	byteOrder.PutUint32(s.Fields[8:12], uint32(val))
}
