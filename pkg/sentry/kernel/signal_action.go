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

package kernel

import (
	"fmt"

	"gvisor.dev/sigcore/pkg/abi/linux"
	"gvisor.dev/sigcore/pkg/errors/linuxerr"
	"gvisor.dev/sigcore/pkg/hostarch"
)

// SignalActionFlags are the SA_* flags of a signal action.
type SignalActionFlags uint64

// Signal action flags understood by the signal core.
const (
	SignalActionNoCldStop SignalActionFlags = linux.SA_NOCLDSTOP
	SignalActionNoCldWait SignalActionFlags = linux.SA_NOCLDWAIT
	SignalActionSigInfo   SignalActionFlags = linux.SA_SIGINFO
	SignalActionRestorer  SignalActionFlags = linux.SA_RESTORER
	SignalActionOnStack   SignalActionFlags = linux.SA_ONSTACK
	SignalActionRestart   SignalActionFlags = linux.SA_RESTART
	SignalActionNoDefer   SignalActionFlags = linux.SA_NODEFER
	SignalActionResetHand SignalActionFlags = linux.SA_RESETHAND

	knownSignalActionFlags = SignalActionNoCldStop | SignalActionNoCldWait |
		SignalActionSigInfo | SignalActionRestorer | SignalActionOnStack |
		SignalActionRestart | SignalActionNoDefer | SignalActionResetHand
)

type dispositionKind uint8

const (
	dispositionDefault dispositionKind = iota
	dispositionIgnore
	dispositionHandler
)

// SignalDisposition is the configured response to a signal: the default
// action, ignore, or a user handler at some address. The zero value is the
// default disposition.
type SignalDisposition struct {
	kind    dispositionKind
	handler hostarch.Addr
}

var (
	// DispositionDefault takes the signal's default action.
	DispositionDefault = SignalDisposition{kind: dispositionDefault}

	// DispositionIgnore discards the signal.
	DispositionIgnore = SignalDisposition{kind: dispositionIgnore}
)

// DispositionHandler returns a disposition that runs the handler at addr.
//
// Preconditions: addr is neither SIG_DFL nor SIG_IGN.
func DispositionHandler(addr hostarch.Addr) SignalDisposition {
	if addr == linux.SIG_DFL || addr == linux.SIG_IGN {
		panic(fmt.Sprintf("handler address %v collides with SIG_DFL/SIG_IGN", addr))
	}
	return SignalDisposition{kind: dispositionHandler, handler: addr}
}

// IsDefault returns true if d takes the default action.
func (d SignalDisposition) IsDefault() bool {
	return d.kind == dispositionDefault
}

// IsIgnore returns true if d discards the signal.
func (d SignalDisposition) IsIgnore() bool {
	return d.kind == dispositionIgnore
}

// Handler returns the handler address. ok is false unless d is a handler.
func (d SignalDisposition) Handler() (addr hostarch.Addr, ok bool) {
	return d.handler, d.kind == dispositionHandler
}

// String implements fmt.Stringer.String.
func (d SignalDisposition) String() string {
	switch d.kind {
	case dispositionDefault:
		return "SIG_DFL"
	case dispositionIgnore:
		return "SIG_IGN"
	default:
		return fmt.Sprintf("handler@%v", d.handler)
	}
}

// SignalAction is the configuration for one signal number of a process.
type SignalAction struct {
	Flags       SignalActionFlags
	Mask        linux.SignalSet
	Disposition SignalDisposition

	// Restorer is only meaningful when Flags has SignalActionRestorer.
	Restorer hostarch.Addr
}

// IsSigInfo returns true iff this handle expects siginfo.
func (a SignalAction) IsSigInfo() bool {
	return a.Flags&SignalActionSigInfo != 0
}

// IsNoDefer returns true iff this SignalAction has the NoDefer flag set.
func (a SignalAction) IsNoDefer() bool {
	return a.Flags&SignalActionNoDefer != 0
}

// IsRestart returns true iff this SignalAction has the Restart flag set.
func (a SignalAction) IsRestart() bool {
	return a.Flags&SignalActionRestart != 0
}

// IsResetHandler returns true iff this SignalAction has the ResetHand flag set.
func (a SignalAction) IsResetHandler() bool {
	return a.Flags&SignalActionResetHand != 0
}

// IsOnStack returns true iff this SignalAction has the OnStack flag set.
func (a SignalAction) IsOnStack() bool {
	return a.Flags&SignalActionOnStack != 0
}

// HasRestorer returns true iff this SignalAction has the Restorer flag set.
func (a SignalAction) HasRestorer() bool {
	return a.Flags&SignalActionRestorer != 0
}

// SignalActionFromABI converts a struct sigaction to a SignalAction. Unknown
// flag bits are rejected with EINVAL.
func SignalActionFromABI(act *linux.SigAction) (SignalAction, error) {
	flags := SignalActionFlags(act.Flags)
	if flags&^knownSignalActionFlags != 0 {
		return SignalAction{}, linuxerr.EINVAL
	}
	out := SignalAction{
		Flags: flags,
		Mask:  act.Mask,
	}
	switch act.Handler {
	case linux.SIG_DFL:
		out.Disposition = DispositionDefault
	case linux.SIG_IGN:
		out.Disposition = DispositionIgnore
	default:
		out.Disposition = DispositionHandler(hostarch.Addr(act.Handler))
	}
	if out.HasRestorer() {
		out.Restorer = hostarch.Addr(act.Restorer)
	}
	return out, nil
}

// ToABI converts a to a struct sigaction.
func (a SignalAction) ToABI() linux.SigAction {
	out := linux.SigAction{
		Flags: uint64(a.Flags),
		Mask:  a.Mask,
	}
	switch {
	case a.Disposition.IsDefault():
		out.Handler = linux.SIG_DFL
	case a.Disposition.IsIgnore():
		out.Handler = linux.SIG_IGN
	default:
		addr, _ := a.Disposition.Handler()
		out.Handler = uint64(addr)
	}
	if a.HasRestorer() {
		out.Restorer = uint64(a.Restorer)
	}
	return out
}

// SignalOSAction is the outcome of resolving a delivered signal.
type SignalOSAction int

// Possible outcomes of signal delivery.
const (
	// SignalOSActionNone means nothing further needs to happen.
	SignalOSActionNone SignalOSAction = iota

	// SignalOSActionTerminate terminates the process.
	SignalOSActionTerminate

	// SignalOSActionCoreDump terminates the process with a core dump.
	SignalOSActionCoreDump

	// SignalOSActionStop stops the process.
	SignalOSActionStop

	// SignalOSActionContinue continues a stopped process.
	SignalOSActionContinue

	// SignalOSActionHandler means a handler frame has been set up and the
	// thread resumes in the handler.
	SignalOSActionHandler
)

// String implements fmt.Stringer.String.
func (a SignalOSAction) String() string {
	switch a {
	case SignalOSActionNone:
		return "none"
	case SignalOSActionTerminate:
		return "terminate"
	case SignalOSActionCoreDump:
		return "coredump"
	case SignalOSActionStop:
		return "stop"
	case SignalOSActionContinue:
		return "continue"
	case SignalOSActionHandler:
		return "handler"
	default:
		return fmt.Sprintf("SignalOSAction(%d)", int(a))
	}
}

// defaultOSAction maps sig's built-in action to a SignalOSAction.
func defaultOSAction(sig linux.Signal) SignalOSAction {
	switch sig.DefaultAction() {
	case linux.SignalActionTerminate:
		return SignalOSActionTerminate
	case linux.SignalActionCoreDump:
		return SignalOSActionCoreDump
	case linux.SignalActionStop:
		return SignalOSActionStop
	case linux.SignalActionContinue:
		return SignalOSActionContinue
	default:
		return SignalOSActionNone
	}
}

// OSAction resolves a's disposition for sig. Handlers resolve to
// SignalOSActionHandler without any frame being set up.
func (a SignalAction) OSAction(sig linux.Signal) SignalOSAction {
	switch {
	case a.Disposition.IsIgnore():
		return SignalOSActionNone
	case a.Disposition.IsDefault():
		return defaultOSAction(sig)
	default:
		return SignalOSActionHandler
	}
}
