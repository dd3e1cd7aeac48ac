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

//go:build linux
// +build linux

// Package sighandling inspects the host's signal configuration.
package sighandling

import (
	"unsafe"

	"golang.org/x/sys/unix"
	"gvisor.dev/sigcore/pkg/abi/linux"
	"gvisor.dev/sigcore/pkg/errors/linuxerr"
)

// HostAction returns the action the host kernel has installed for sig in
// the calling process. The handler is left unchanged.
func HostAction(sig linux.Signal) (linux.SigAction, error) {
	var sa linux.SigAction
	if _, _, e := unix.RawSyscall6(unix.SYS_RT_SIGACTION, uintptr(sig), 0, uintptr(unsafe.Pointer(&sa)), linux.SignalSetSize, 0, 0); e != 0 {
		return sa, linuxerr.ErrorFromUnix(e)
	}
	return sa, nil
}

// HostActions returns the host action of every valid signal, indexed by
// signal number minus one.
func HostActions() ([linux.SignalMaximum]linux.SigAction, error) {
	var acts [linux.SignalMaximum]linux.SigAction
	for sig := linux.Signal(1); sig.IsValid(); sig++ {
		act, err := HostAction(sig)
		if err != nil {
			return acts, err
		}
		acts[sig-1] = act
	}
	return acts, nil
}
