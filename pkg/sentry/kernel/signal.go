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

// Package kernel implements the signal state machine of an emulated Linux
// kernel: pending queues, per-process action tables, per-thread masks and
// alternate stacks, handler frame setup and signal waits.
//
// Lock order:
//
//	ThreadSignalManager.mu and ProcessSignalManager.mu are never held
//	together. SignalActions.mu is a leaf lock.
package kernel

import (
	"gvisor.dev/sigcore/pkg/abi/linux"
)

// SignalInfoPriv returns a SignalInfo equivalent to Linux's SEND_SIG_PRIV.
func SignalInfoPriv(sig linux.Signal) *linux.SignalInfo {
	return &linux.SignalInfo{
		Signo: int32(sig),
		Code:  linux.SI_KERNEL,
	}
}

// SignalInfoUser returns a SignalInfo equivalent to what kill(2) sends from
// the given sender.
func SignalInfoUser(sig linux.Signal, pid, uid int32) *linux.SignalInfo {
	info := &linux.SignalInfo{
		Signo: int32(sig),
		Code:  linux.SI_USER,
	}
	info.SetPID(pid)
	info.SetUID(uid)
	return info
}

// SignalInfoTkill returns a SignalInfo equivalent to what tgkill(2) sends from
// the given sender.
func SignalInfoTkill(sig linux.Signal, pid, uid int32) *linux.SignalInfo {
	info := SignalInfoUser(sig, pid, uid)
	info.Code = linux.SI_TKILL
	return info
}

// SignalInfoQueue returns a SignalInfo equivalent to what sigqueue(3) sends,
// carrying val.
func SignalInfoQueue(sig linux.Signal, pid, uid int32, val uint64) *linux.SignalInfo {
	info := SignalInfoUser(sig, pid, uid)
	info.Code = linux.SI_QUEUE
	info.SetSigval(val)
	return info
}

func signalClass(sig linux.Signal) string {
	if sig.IsRealtime() {
		return "realtime"
	}
	return "standard"
}
