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

package arch

import (
	"gvisor.dev/sigcore/pkg/errors/linuxerr"
	"gvisor.dev/sigcore/pkg/hostarch"
	"gvisor.dev/sigcore/pkg/marshal"
	"gvisor.dev/sigcore/pkg/usermem"
)

// errStackOverflow is returned when a push would wrap below address zero.
var errStackOverflow = linuxerr.EFAULT

// Stack is a simple wrapper around a usermem.IO and an address.
type Stack struct {
	// IO is the memory the stack lives in.
	IO usermem.IO

	// Bottom is the stack's bottom (lowest, most recently pushed) address.
	Bottom hostarch.Addr
}

// Push pushes the given value onto the stack and returns its address.
func (s *Stack) Push(val marshal.Marshallable) (hostarch.Addr, error) {
	size := val.SizeBytes()
	if s.Bottom < hostarch.Addr(size) {
		return 0, errStackOverflow
	}
	addr := s.Bottom - hostarch.Addr(size)
	if _, err := marshal.CopyOut(s.IO, addr, val); err != nil {
		return 0, err
	}
	s.Bottom = addr
	return addr, nil
}

// Pop pops the given value off the stack and returns the address it was read
// from.
func (s *Stack) Pop(val marshal.Marshallable) (hostarch.Addr, error) {
	addr := s.Bottom
	if _, err := marshal.CopyIn(s.IO, addr, val); err != nil {
		return 0, err
	}
	s.Bottom += hostarch.Addr(val.SizeBytes())
	return addr, nil
}

// Align aligns the stack to the given offset.
func (s *Stack) Align(offset int) {
	if s.Bottom%hostarch.Addr(offset) != 0 {
		s.Bottom -= (s.Bottom % hostarch.Addr(offset))
	}
}

// SignalFrameAddress returns the address at which a signal frame pushed
// below sp is placed. The restorer slot sits 8 bytes below a 16-byte
// boundary, mirroring the stack a call instruction would leave. ok is false
// if the frame does not fit above address zero.
func SignalFrameAddress(sp hostarch.Addr) (addr hostarch.Addr, ok bool) {
	if sp < hostarch.Addr(SizeOfSignalFrame+16) {
		return 0, false
	}
	return (sp - SizeOfSignalFrame).RoundDown(16) - 8, true
}

// PushFrame writes f below s.Bottom and returns the frame's address, which
// also becomes the new bottom.
func (s *Stack) PushFrame(f *SignalFrame) (hostarch.Addr, error) {
	addr, ok := SignalFrameAddress(s.Bottom)
	if !ok {
		return 0, errStackOverflow
	}
	if _, err := marshal.CopyOut(s.IO, addr, f); err != nil {
		return 0, err
	}
	s.Bottom = addr
	return addr, nil
}

// PopFrame reads the frame whose restorer was consumed by the handler's
// return, i.e. the frame that starts 8 bytes below s.Bottom. On success the
// stack is left above the frame.
func (s *Stack) PopFrame(f *SignalFrame) (hostarch.Addr, error) {
	if s.Bottom < 8 {
		return 0, errStackOverflow
	}
	addr := s.Bottom - 8
	if _, err := marshal.CopyIn(s.IO, addr, f); err != nil {
		return 0, err
	}
	s.Bottom = addr + SizeOfSignalFrame
	return addr, nil
}
