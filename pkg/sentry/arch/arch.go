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

// Package arch provides the execution-context service used by the signal core:
// the saved register file, the ucontext record, the signal frame written to the
// user stack and the helpers that push and pop it.
package arch

import (
	"gvisor.dev/sigcore/pkg/abi/linux"
	"gvisor.dev/sigcore/pkg/hostarch"
)

// RedZoneSize is the number of bytes below the stack pointer that leaf
// functions may use without adjusting it. Signal frames pushed onto the
// current stack skip over it.
const RedZoneSize = 128

// ContextService snapshots and restores the architectural state around signal
// handler invocation.
type ContextService interface {
	// CreateContext returns a ucontext holding the register state in regs,
	// the signal mask to restore on return from the handler and the
	// alternate stack in effect at delivery.
	CreateContext(regs *Registers, mask linux.SignalSet, alt linux.SignalStack) UContext64

	// RestoreContext writes the register state held in uc back into regs.
	RestoreContext(uc *UContext64, regs *Registers)

	// TrampolineAddress returns the address of the code that issues
	// rt_sigreturn(2). It is used as the handler's return address when the
	// action carries no restorer of its own.
	TrampolineAddress() hostarch.Addr
}
