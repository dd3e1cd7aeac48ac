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
	"gvisor.dev/sigcore/pkg/abi/linux"
	"gvisor.dev/sigcore/pkg/errors/linuxerr"
	"gvisor.dev/sigcore/pkg/sync"
)

// SignalActions is the table of signal actions shared by all threads of a
// process.
type SignalActions struct {
	mu sync.Mutex

	// actions is indexed by Signal.Index(). Protected by mu.
	actions [linux.SignalMaximum]SignalAction
}

// NewSignalActions returns a table with every signal at its default
// disposition.
func NewSignalActions() *SignalActions {
	return &SignalActions{}
}

// Get returns the action for sig.
//
// Preconditions: sig.IsValid().
func (sa *SignalActions) Get(sig linux.Signal) SignalAction {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	return sa.actions[sig.Index()]
}

// Set installs act for sig and returns the previous action. SIGKILL and SIGSTOP
// cannot be caught or ignored; they, and invalid signals, yield EINVAL. Both
// are silently removed from act.Mask.
func (sa *SignalActions) Set(sig linux.Signal, act SignalAction) (SignalAction, error) {
	if !sig.IsValid() {
		return SignalAction{}, linuxerr.EINVAL
	}
	if sig.IsUnblockable() && !act.Disposition.IsDefault() {
		return SignalAction{}, linuxerr.EINVAL
	}
	act.Mask &^= linux.UnblockableSignals

	sa.mu.Lock()
	defer sa.mu.Unlock()
	old := sa.actions[sig.Index()]
	sa.actions[sig.Index()] = act
	return old, nil
}

// Reset restores sig to its default disposition, clearing flags and mask.
func (sa *SignalActions) Reset(sig linux.Signal) {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	sa.actions[sig.Index()] = SignalAction{}
}

// Fork returns a copy of sa for a child process.
func (sa *SignalActions) Fork() *SignalActions {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	return &SignalActions{actions: sa.actions}
}

// CopyForExec returns the table a process starts with after execve(2): caught
// signals revert to the default disposition, ignored signals stay ignored,
// and all flags and masks are cleared.
func (sa *SignalActions) CopyForExec() *SignalActions {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	out := &SignalActions{}
	for i, act := range sa.actions {
		if act.Disposition.IsIgnore() {
			out.actions[i].Disposition = DispositionIgnore
		}
	}
	return out
}
