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
	"gvisor.dev/sigcore/pkg/hostarch"
	"gvisor.dev/sigcore/pkg/sync"
	"gvisor.dev/sigcore/pkg/waiter"
)

// ProcessOptions configures a ProcessSignalManager.
type ProcessOptions struct {
	// MaxQueuedRealtime bounds the number of realtime signal instances
	// pending on the process. Zero means unbounded.
	MaxQueuedRealtime int

	// WaitQueue parks threads waiting for signals. If nil, a waiter.Queue
	// is used.
	WaitQueue WaitQueue
}

// ProcessSignalManager holds the signal state shared by every thread of a
// process: the process-directed pending signals, the action table and the
// queue that threads waiting for signals sleep on.
type ProcessSignalManager struct {
	// actions is shared with Fork and exec callers; it has its own lock.
	actions *SignalActions

	defaultRestorer hostarch.Addr

	waitQueue WaitQueue

	// mu protects pending.
	mu      sync.Mutex
	pending PendingSignals
}

// NewProcessSignalManager returns a manager using the given action table.
// defaultRestorer is the handler return address used for actions without
// SA_RESTORER; zero selects the context service trampoline.
func NewProcessSignalManager(actions *SignalActions, defaultRestorer hostarch.Addr, opts ProcessOptions) *ProcessSignalManager {
	if actions == nil {
		actions = NewSignalActions()
	}
	wq := opts.WaitQueue
	if wq == nil {
		wq = &waiter.Queue{}
	}
	p := &ProcessSignalManager{
		actions:         actions,
		defaultRestorer: defaultRestorer,
		waitQueue:       wq,
	}
	p.pending.SetRealtimeLimit(opts.MaxQueuedRealtime)
	return p
}

// SendSignal queues info on the process and wakes threads waiting for
// signals. Coalescing a standard signal that is already pending is not an
// error.
func (p *ProcessSignalManager) SendSignal(info *linux.SignalInfo) error {
	p.mu.Lock()
	queued, err := p.pending.PutSignal(info)
	p.mu.Unlock()
	if err := accountSend(info, "process", queued, err); err != nil {
		return err
	}
	if queued {
		p.waitQueue.NotifyAll()
	}
	return nil
}

// accountSend records the outcome of a PutSignal call in metrics and logs.
func accountSend(info *linux.SignalInfo, target string, queued bool, err error) error {
	sig := info.Signal()
	switch {
	case linuxerr.Equals(linuxerr.EAGAIN, err):
		signalsRejected.Increment()
		warnLog.Warningf("Realtime signal %v rejected by %s: queue limit reached", sig, target)
		return err
	case err != nil:
		return err
	case !queued:
		signalsCoalesced.Increment()
	default:
		signalsSent.Increment(target, signalClass(sig))
	}
	return nil
}

// DequeueSignal removes the lowest-numbered process-directed signal in mask.
func (p *ProcessSignalManager) DequeueSignal(mask linux.SignalSet) *linux.SignalInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending.DequeueSignal(mask)
}

// Pending returns the set of process-directed pending signals.
func (p *ProcessSignalManager) Pending() linux.SignalSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending.PendingSet()
}

// WaitSignal blocks until a signal is sent to the process or one of its
// threads. It may return spuriously.
func (p *ProcessSignalManager) WaitSignal() {
	p.waitQueue.Wait()
}

// Actions returns the process's action table.
func (p *ProcessSignalManager) Actions() *SignalActions {
	return p.actions
}

// SetAction installs act for sig and returns the previous action.
func (p *ProcessSignalManager) SetAction(sig linux.Signal, act SignalAction) (SignalAction, error) {
	return p.actions.Set(sig, act)
}

// DefaultRestorer returns the handler return address used for actions
// without SA_RESTORER.
func (p *ProcessSignalManager) DefaultRestorer() hostarch.Addr {
	return p.defaultRestorer
}
