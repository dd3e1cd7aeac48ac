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
	"gvisor.dev/sigcore/pkg/abi/linux"
	"gvisor.dev/sigcore/pkg/hostarch"
)

// SignalFrame is the record pushed onto the user stack before a handler runs,
// modeled on the x86-64 struct rt_sigframe. Restorer sits at the lowest
// address so that it is the handler's return address.
type SignalFrame struct {
	Restorer uint64
	UC       UContext64
	Info     linux.SignalInfo

	// Trap is the register file that was live when the signal was
	// delivered.
	Trap Registers
}

// Offsets of the SignalFrame members, relative to the frame's address.
const (
	SignalFrameUCOffset   = 8
	SignalFrameInfoOffset = SignalFrameUCOffset + SizeOfUContext64
	SignalFrameTrapOffset = SignalFrameInfoOffset + linux.SizeOfSignalInfo

	// SizeOfSignalFrame is the size of a marshalled SignalFrame.
	SizeOfSignalFrame = SignalFrameTrapOffset + SizeOfRegisters
)

// UCAddr returns the address of the ucontext in a frame pushed at addr.
func UCAddr(frame hostarch.Addr) hostarch.Addr {
	return frame + SignalFrameUCOffset
}

// InfoAddr returns the address of the siginfo in a frame pushed at addr.
func InfoAddr(frame hostarch.Addr) hostarch.Addr {
	return frame + SignalFrameInfoOffset
}

// SizeBytes implements marshal.Marshallable.SizeBytes.
func (f *SignalFrame) SizeBytes() int {
	return SizeOfSignalFrame
}

// MarshalBytes implements marshal.Marshallable.MarshalBytes.
func (f *SignalFrame) MarshalBytes(dst []byte) []byte {
	hostarch.ByteOrder.PutUint64(dst[:8], f.Restorer)
	dst = f.UC.MarshalBytes(dst[8:])
	dst = f.Info.MarshalBytes(dst)
	return f.Trap.MarshalBytes(dst)
}

// UnmarshalBytes implements marshal.Marshallable.UnmarshalBytes.
func (f *SignalFrame) UnmarshalBytes(src []byte) []byte {
	f.Restorer = hostarch.ByteOrder.Uint64(src[:8])
	src = f.UC.UnmarshalBytes(src[8:])
	src = f.Info.UnmarshalBytes(src)
	return f.Trap.UnmarshalBytes(src)
}
