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

//go:build !linux
// +build !linux

package sighandling

import (
	"errors"

	"gvisor.dev/sigcore/pkg/abi/linux"
)

// HostAction is not supported outside Linux.
func HostAction(linux.Signal) (linux.SigAction, error) {
	return linux.SigAction{}, errors.New("HostAction not supported on this platform")
}

// HostActions is not supported outside Linux.
func HostActions() ([linux.SignalMaximum]linux.SigAction, error) {
	return [linux.SignalMaximum]linux.SigAction{}, errors.New("HostActions not supported on this platform")
}
