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
	"time"

	"gvisor.dev/sigcore/pkg/waiter"
)

// WaitQueue is the blocking primitive a process uses to park threads waiting
// for signals. Implementations may wake waiters spuriously; every caller
// re-checks its condition after waking.
type WaitQueue interface {
	// WaitTimeout blocks until notified or until timeout elapses. A negative
	// timeout waits forever. It returns true if woken by a notification.
	WaitTimeout(timeout time.Duration) bool

	// Wait blocks until notified.
	Wait()

	// NotifyOne wakes at least one waiter. It returns false if there were
	// none.
	NotifyOne() bool

	// NotifyAll wakes every waiter.
	NotifyAll()
}

// registrar is implemented by wait queues that let a waiter register before
// re-checking its condition, so that a notification between the check and
// the sleep is not lost. *waiter.Queue implements it.
type registrar interface {
	EventRegister(e *waiter.Entry)
	EventUnregister(e *waiter.Entry)
}

var (
	_ WaitQueue = (*waiter.Queue)(nil)
	_ registrar = (*waiter.Queue)(nil)
)
