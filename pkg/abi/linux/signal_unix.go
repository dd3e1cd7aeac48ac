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

//go:build linux && (amd64 || arm64 || riscv64 || ppc64le || s390x || loong64 || mips64 || mips64le)

package linux

import (
	"golang.org/x/sys/unix"
)

// ToUnix returns s as the host's sigset_t. Only the first word is populated;
// the kernel ABI never looks past signal 64.
func (s SignalSet) ToUnix() unix.Sigset_t {
	var set unix.Sigset_t
	set.Val[0] = uint64(s)
	return set
}

// SignalSetFromUnix converts a host sigset_t to a SignalSet.
func SignalSetFromUnix(set *unix.Sigset_t) SignalSet {
	return SignalSet(set.Val[0])
}

// HostName returns the host's name for s, or "" if the host has none.
func (s Signal) HostName() string {
	return unix.SignalName(unix.Signal(s))
}
