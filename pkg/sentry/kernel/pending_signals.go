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
	"gvisor.dev/sigcore/pkg/ilist"
)

// pendingSignal is one queued instance of a realtime signal.
type pendingSignal struct {
	ilist.Entry[*pendingSignal]

	info linux.SignalInfo
}

// pendingSignalQueue is the FIFO of instances of one realtime signal.
type pendingSignalQueue struct {
	list   ilist.List[*pendingSignal]
	length int
}

// PendingSignals holds the signals awaiting delivery to one thread or
// process. Standard signals coalesce: at most one instance of each is
// pending. Realtime signals queue in arrival order.
//
// Invariant: pendingSet has bit sig.Index() set iff the standard slot for sig
// is occupied or the realtime queue for sig is non-empty.
//
// PendingSignals is not synchronized; owners provide locking. The zero value
// is an empty set of pending signals with no realtime queue limit.
type PendingSignals struct {
	// standard is indexed by Signal.Index().
	standard [linux.NumStdSignals]*linux.SignalInfo

	// realtime is indexed by sig - FirstRTSignal.
	realtime [linux.NumRTSignals]pendingSignalQueue

	pendingSet linux.SignalSet

	// queuedRealtime is the number of realtime instances across all queues.
	queuedRealtime int

	// maxQueuedRealtime bounds queuedRealtime if positive.
	maxQueuedRealtime int
}

// SetRealtimeLimit bounds the number of realtime signal instances that may be
// queued at once. A limit of zero or less means unbounded.
func (p *PendingSignals) SetRealtimeLimit(limit int) {
	p.maxQueuedRealtime = limit
}

// PutSignal enqueues a copy of info. It returns true if the signal was newly
// queued and false if a standard signal was already pending and the new
// instance was discarded. A realtime signal that would exceed the queue limit
// is rejected with EAGAIN; an invalid signal number with EINVAL.
func (p *PendingSignals) PutSignal(info *linux.SignalInfo) (bool, error) {
	sig := info.Signal()
	if !sig.IsValid() {
		return false, linuxerr.EINVAL
	}
	if sig.IsStandard() {
		if p.standard[sig.Index()] != nil {
			return false, nil
		}
		copied := *info
		p.standard[sig.Index()] = &copied
		p.pendingSet.Add(sig)
		return true, nil
	}

	if p.maxQueuedRealtime > 0 && p.queuedRealtime >= p.maxQueuedRealtime {
		return false, linuxerr.EAGAIN
	}
	q := &p.realtime[sig-linux.FirstRTSignal]
	q.list.PushBack(&pendingSignal{info: *info})
	q.length++
	p.queuedRealtime++
	p.pendingSet.Add(sig)
	return true, nil
}

// DequeueSignal removes and returns the lowest-numbered pending signal in
// mask, or nil if there is none. A realtime signal stays pending while
// further instances remain queued.
func (p *PendingSignals) DequeueSignal(mask linux.SignalSet) *linux.SignalInfo {
	sig, ok := p.pendingSet.Dequeue(mask)
	if !ok {
		return nil
	}
	if sig.IsStandard() {
		info := p.standard[sig.Index()]
		p.standard[sig.Index()] = nil
		p.pendingSet.Remove(sig)
		return info
	}

	q := &p.realtime[sig-linux.FirstRTSignal]
	ps := q.list.Front()
	q.list.Remove(ps)
	q.length--
	p.queuedRealtime--
	if q.length == 0 {
		p.pendingSet.Remove(sig)
	}
	return &ps.info
}

// PendingSet returns the set of pending signals.
func (p *PendingSignals) PendingSet() linux.SignalSet {
	return p.pendingSet
}

// Count returns the number of pending instances of sig.
func (p *PendingSignals) Count(sig linux.Signal) int {
	if !sig.IsValid() || !p.pendingSet.Has(sig) {
		return 0
	}
	if sig.IsStandard() {
		return 1
	}
	return p.realtime[sig-linux.FirstRTSignal].length
}

// QueuedRealtime returns the number of queued realtime instances.
func (p *PendingSignals) QueuedRealtime() int {
	return p.queuedRealtime
}
