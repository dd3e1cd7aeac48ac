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
	"context"
	"time"

	"gvisor.dev/sigcore/pkg/abi/linux"
	"gvisor.dev/sigcore/pkg/errors/linuxerr"
	"gvisor.dev/sigcore/pkg/waiter"
)

// pollInterval bounds each sleep on a WaitQueue that does not support entry
// registration.
const pollInterval = 10 * time.Millisecond

// WaitTimeout blocks until a signal in set is pending on the thread or its
// process and dequeues it. If haveTimeout is true the wait gives up after
// timeout, returning nil and false. A non-positive timeout polls.
func (t *ThreadSignalManager) WaitTimeout(set linux.SignalSet, timeout time.Duration, haveTimeout bool) (*linux.SignalInfo, bool) {
	info, err := t.wait(context.Background(), set, timeout, haveTimeout, false)
	return info, err == nil
}

// WaitContext is WaitTimeout with the error contract of rt_sigtimedwait(2):
// it returns EAGAIN when the timeout elapses and EINTR when the thread is
// interrupted or ctx is done.
func (t *ThreadSignalManager) WaitContext(ctx context.Context, set linux.SignalSet, timeout time.Duration, haveTimeout bool) (*linux.SignalInfo, error) {
	return t.wait(ctx, set, timeout, haveTimeout, true)
}

// Interrupt interrupts the thread's current or next WaitContext.
func (t *ThreadSignalManager) Interrupt() {
	select {
	case t.interrupt <- struct{}{}:
	default:
	}
	t.process.waitQueue.NotifyAll()
}

func (t *ThreadSignalManager) wait(ctx context.Context, set linux.SignalSet, timeout time.Duration, haveTimeout, interruptible bool) (*linux.SignalInfo, error) {
	if info := t.DequeueSignal(set); info != nil {
		return info, nil
	}
	if haveTimeout && timeout <= 0 {
		waitTimeouts.Increment()
		return nil, linuxerr.EAGAIN
	}

	var (
		info *linux.SignalInfo
		err  error
	)
	if q, ok := t.process.waitQueue.(registrar); ok {
		info, err = t.waitRegistered(ctx, q, set, timeout, haveTimeout, interruptible)
	} else {
		info, err = t.waitPolling(ctx, set, timeout, haveTimeout, interruptible)
	}
	if linuxerr.Equals(linuxerr.EAGAIN, err) {
		waitTimeouts.Increment()
	}
	return info, err
}

// waitRegistered waits on a queue that supports registration. The entry is
// registered before each check, so a signal sent after the check always
// wakes the waiter.
func (t *ThreadSignalManager) waitRegistered(ctx context.Context, q registrar, set linux.SignalSet, timeout time.Duration, haveTimeout, interruptible bool) (*linux.SignalInfo, error) {
	e, ch := waiter.NewChannelEntry(waiter.EventSignal)
	q.EventRegister(&e)
	defer q.EventUnregister(&e)

	var timerC <-chan time.Time
	if haveTimeout {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}
	var done <-chan struct{}
	var interrupt chan struct{}
	if interruptible {
		done = ctx.Done()
		interrupt = t.interrupt
	}

	for {
		if info := t.DequeueSignal(set); info != nil {
			return info, nil
		}
		select {
		case <-ch:
		case <-timerC:
			if info := t.DequeueSignal(set); info != nil {
				return info, nil
			}
			return nil, linuxerr.EAGAIN
		case <-done:
			return nil, linuxerr.EINTR
		case <-interrupt:
			return nil, linuxerr.EINTR
		}
	}
}

// waitPolling waits using only the WaitQueue interface. Such a queue cannot
// report a notification that arrives between a failed check and the next
// sleep, so each sleep is bounded by pollInterval.
func (t *ThreadSignalManager) waitPolling(ctx context.Context, set linux.SignalSet, timeout time.Duration, haveTimeout, interruptible bool) (*linux.SignalInfo, error) {
	wq := t.process.waitQueue
	if interruptible {
		stop := context.AfterFunc(ctx, wq.NotifyAll)
		defer stop()
	}
	deadline := time.Now().Add(timeout)
	for {
		if info := t.DequeueSignal(set); info != nil {
			return info, nil
		}
		if interruptible {
			if ctx.Err() != nil {
				return nil, linuxerr.EINTR
			}
			select {
			case <-t.interrupt:
				return nil, linuxerr.EINTR
			default:
			}
		}
		sleep := pollInterval
		if haveTimeout {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return nil, linuxerr.EAGAIN
			}
			sleep = min(sleep, remaining)
		}
		wq.WaitTimeout(sleep)
	}
}
