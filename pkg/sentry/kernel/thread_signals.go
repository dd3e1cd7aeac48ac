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
	"gvisor.dev/sigcore/pkg/log"
	"gvisor.dev/sigcore/pkg/sentry/arch"
	"gvisor.dev/sigcore/pkg/sync"
	"gvisor.dev/sigcore/pkg/usermem"
)

// ThreadSignalManager holds the signal state private to one thread and
// delivers signals to it.
type ThreadSignalManager struct {
	process *ProcessSignalManager

	// mem is the memory signal frames are written to and read from.
	mem usermem.IO

	ctx arch.ContextService

	// interrupt is signalled by Interrupt and consumed by WaitContext.
	interrupt chan struct{}

	// mu protects the fields below.
	mu sync.Mutex

	// pending holds signals directed at this thread only.
	pending PendingSignals

	// blocked never contains SIGKILL or SIGSTOP.
	blocked linux.SignalSet

	// altStack is the configured alternate signal stack, without
	// SS_ONSTACK.
	altStack linux.SignalStack
}

// NewThreadSignalManager returns a manager for a new thread of process. The
// thread starts with no blocked signals and the alternate stack disabled.
func NewThreadSignalManager(process *ProcessSignalManager, mem usermem.IO, ctx arch.ContextService) *ThreadSignalManager {
	t := &ThreadSignalManager{
		process:   process,
		mem:       mem,
		ctx:       ctx,
		interrupt: make(chan struct{}, 1),
		altStack:  linux.SignalStack{Flags: linux.SS_DISABLE},
	}
	t.pending.SetRealtimeLimit(process.pending.maxQueuedRealtime)
	return t
}

// Process returns the manager of the thread's process.
func (t *ThreadSignalManager) Process() *ProcessSignalManager {
	return t.process
}

// SendSignal queues info on this thread only and wakes threads waiting for
// signals.
func (t *ThreadSignalManager) SendSignal(info *linux.SignalInfo) error {
	t.mu.Lock()
	queued, err := t.pending.PutSignal(info)
	t.mu.Unlock()
	if err := accountSend(info, "thread", queued, err); err != nil {
		return err
	}
	if queued {
		t.process.waitQueue.NotifyAll()
	}
	return nil
}

// DequeueSignal removes the lowest-numbered signal in mask, preferring
// signals directed at this thread over process-directed ones.
func (t *ThreadSignalManager) DequeueSignal(mask linux.SignalSet) *linux.SignalInfo {
	t.mu.Lock()
	info := t.pending.DequeueSignal(mask)
	t.mu.Unlock()
	if info != nil {
		return info
	}
	return t.process.DequeueSignal(mask)
}

// Pending returns the signals pending on the thread or its process.
func (t *ThreadSignalManager) Pending() linux.SignalSet {
	t.mu.Lock()
	set := t.pending.PendingSet()
	t.mu.Unlock()
	return set | t.process.Pending()
}

// Blocked returns the thread's blocked signal mask.
func (t *ThreadSignalManager) Blocked() linux.SignalSet {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.blocked
}

// SetBlocked replaces the blocked mask. SIGKILL and SIGSTOP are removed.
func (t *ThreadSignalManager) SetBlocked(mask linux.SignalSet) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.blocked = mask &^ linux.UnblockableSignals
}

// SigProcMask implements the mask update of rt_sigprocmask(2) and returns the
// previous mask.
func (t *ThreadSignalManager) SigProcMask(how int, set linux.SignalSet) (linux.SignalSet, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	old := t.blocked
	switch how {
	case linux.SIG_BLOCK:
		t.blocked |= set
	case linux.SIG_UNBLOCK:
		t.blocked &^= set
	case linux.SIG_SETMASK:
		t.blocked = set
	default:
		return old, linuxerr.EINVAL
	}
	t.blocked &^= linux.UnblockableSignals
	return old, nil
}

// CheckSignals dequeues unblocked signals until one requires action and
// handles it. Signals whose resolved action is to ignore them are discarded.
// It returns nil and SignalOSActionNone if nothing requires action.
//
// restoreBlocked, if not nil, replaces the blocked mask saved in a handler
// frame, as sigsuspend(2) does.
func (t *ThreadSignalManager) CheckSignals(regs *arch.Registers, restoreBlocked *linux.SignalSet) (*linux.SignalInfo, SignalOSAction) {
	for {
		info := t.DequeueSignal(^t.Blocked())
		if info == nil {
			return nil, SignalOSActionNone
		}
		act := t.process.actions.Get(info.Signal())
		if act.OSAction(info.Signal()) == SignalOSActionNone {
			recordDelivery(SignalOSActionNone)
			log.Debugf("Discarding ignored signal %v", info.Signal())
			continue
		}
		action := t.HandleSignal(regs, restoreBlocked, info, act)
		if action == SignalOSActionNone {
			// Frame setup failed; the forced SIGSEGV is now pending.
			continue
		}
		return info, action
	}
}

// HandleSignal delivers info according to act. For a handler disposition it
// writes a signal frame and redirects regs to the handler; otherwise it
// resolves the default or ignore action. If the frame cannot be written the
// thread is sent a SIGSEGV and SignalOSActionNone is returned.
func (t *ThreadSignalManager) HandleSignal(regs *arch.Registers, restoreBlocked *linux.SignalSet, info *linux.SignalInfo, act SignalAction) SignalOSAction {
	sig := info.Signal()
	action := act.OSAction(sig)
	if action != SignalOSActionHandler {
		recordDelivery(action)
		if action != SignalOSActionNone {
			log.Infof("Signal %v: %v", sig, action)
		}
		return action
	}

	if err := t.deliverToHandler(regs, restoreBlocked, info, act); err != nil {
		frameFaults.Increment()
		warnLog.Warningf("Failed to set up handler frame for %v: %v; forcing SIGSEGV", sig, err)
		t.forceSignal(linux.SIGSEGV)
		return SignalOSActionNone
	}
	recordDelivery(SignalOSActionHandler)
	if log.IsLogging(log.Debug) {
		handler, _ := act.Disposition.Handler()
		log.Debugf("Delivered %v to handler %v: %v", sig, handler, regs)
	}
	return SignalOSActionHandler
}

func (t *ThreadSignalManager) deliverToHandler(regs *arch.Registers, restoreBlocked *linux.SignalSet, info *linux.SignalInfo, act SignalAction) error {
	sig := info.Signal()
	handler, _ := act.Disposition.Handler()

	t.mu.Lock()
	alt := t.altStack
	blocked := t.blocked
	t.mu.Unlock()

	sp := regs.Stack()
	onAltStack := alt.IsEnabled() && alt.Contains(uint64(sp))
	if act.IsOnStack() && alt.IsEnabled() && !onAltStack {
		sp = hostarch.Addr(alt.Top())
	} else {
		sp -= arch.RedZoneSize
		if onAltStack {
			// The frame must not run off the bottom of the alternate
			// stack.
			frame, ok := arch.SignalFrameAddress(sp)
			if !ok || !alt.Contains(uint64(frame)+1) {
				return linuxerr.EFAULT
			}
		}
	}

	restorer := t.process.defaultRestorer
	if act.HasRestorer() {
		restorer = act.Restorer
	}
	if restorer == 0 {
		restorer = t.ctx.TrampolineAddress()
	}

	saved := blocked
	if restoreBlocked != nil {
		saved = *restoreBlocked
	}
	ucStack := alt
	if onAltStack {
		ucStack.SetOnStack()
	}
	frame := arch.SignalFrame{
		Restorer: uint64(restorer),
		UC:       t.ctx.CreateContext(regs, saved, ucStack),
		Info:     *info,
		Trap:     *regs,
	}
	frame.Info.FixSignalCodeForUser()

	st := arch.Stack{IO: t.mem, Bottom: sp}
	addr, err := st.PushFrame(&frame)
	if err != nil {
		return err
	}

	var infoAddr, ucAddr hostarch.Addr
	if act.IsSigInfo() {
		infoAddr = arch.InfoAddr(addr)
		ucAddr = arch.UCAddr(addr)
	}
	regs.SetupHandlerEntry(handler, addr, int(sig), infoAddr, ucAddr)

	newBlocked := blocked | act.Mask
	if !act.IsNoDefer() {
		newBlocked.Add(sig)
	}
	t.mu.Lock()
	t.blocked = newBlocked &^ linux.UnblockableSignals
	t.mu.Unlock()

	if act.IsResetHandler() {
		t.process.actions.Reset(sig)
	}
	return nil
}

// forceSignal delivers sig to the thread even if it is blocked or ignored,
// as Linux's force_sig does.
func (t *ThreadSignalManager) forceSignal(sig linux.Signal) {
	t.process.actions.Reset(sig)
	t.mu.Lock()
	t.blocked.Remove(sig)
	t.mu.Unlock()
	if err := t.SendSignal(SignalInfoPriv(sig)); err != nil {
		panic(fmt.Sprintf("failed to force %v: %v", sig, err))
	}
}

// Restore returns from a signal handler: it reads the frame the handler was
// entered with, restores the interrupted register state, blocked mask and
// alternate stack, and returns the signal the frame was built for.
//
// The handler's return consumed the restorer slot, so the frame starts 8
// bytes below the current stack pointer. A frame that cannot be read is a
// fatal error.
func (t *ThreadSignalManager) Restore(regs *arch.Registers) linux.Signal {
	var frame arch.SignalFrame
	st := arch.Stack{IO: t.mem, Bottom: regs.Stack()}
	if _, err := st.PopFrame(&frame); err != nil {
		panic(fmt.Sprintf("failed to read signal frame at %v: %v", regs.Stack(), err))
	}
	sig := frame.Info.Signal()
	if !sig.IsValid() {
		panic(fmt.Sprintf("signal frame at %v holds invalid signal %d", regs.Stack(), frame.Info.Signo))
	}

	*regs = frame.Trap
	t.ctx.RestoreContext(&frame.UC, regs)
	t.SetBlocked(frame.UC.Sigset)

	alt := frame.UC.Stack
	alt.Flags &^= linux.SS_ONSTACK
	if err := t.SetSignalStack(alt, regs.Stack()); err != nil {
		log.Debugf("Ignoring alternate stack %+v from signal frame: %v", alt, err)
	}
	log.Debugf("Returned from %v handler: %v", sig, regs)
	return sig
}

// SignalStack returns the alternate signal stack, with SS_ONSTACK set if sp
// is on it.
func (t *ThreadSignalManager) SignalStack(sp hostarch.Addr) linux.SignalStack {
	t.mu.Lock()
	defer t.mu.Unlock()
	alt := t.altStack
	if alt.IsEnabled() && alt.Contains(uint64(sp)) {
		alt.SetOnStack()
	}
	return alt
}

// SetSignalStack implements the update of sigaltstack(2) for a thread whose
// stack pointer is sp.
func (t *ThreadSignalManager) SetSignalStack(alt linux.SignalStack, sp hostarch.Addr) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.altStack.IsEnabled() && t.altStack.Contains(uint64(sp)) {
		return linuxerr.EPERM
	}
	switch alt.Flags &^ linux.SS_ONSTACK {
	case 0:
		if alt.Size < linux.MINSIGSTKSZ {
			return linuxerr.ENOMEM
		}
		t.altStack = linux.SignalStack{Addr: alt.Addr, Size: alt.Size}
	case linux.SS_DISABLE:
		t.altStack = linux.SignalStack{Flags: linux.SS_DISABLE}
	default:
		return linuxerr.EINVAL
	}
	return nil
}
