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

package linux

import (
	"gvisor.dev/sigcore/pkg/hostarch"
	"gvisor.dev/sigcore/pkg/marshal"
)

var byteOrder = hostarch.ByteOrder

// Sizes of the marshalled signal structures.
const (
	SizeOfSignalInfo  = 128
	SizeOfSignalStack = 24
	SizeOfSigAction   = 32
)

var (
	_ marshal.Marshallable = (*SignalSet)(nil)
	_ marshal.Marshallable = (*SignalInfo)(nil)
	_ marshal.Marshallable = (*SignalStack)(nil)
	_ marshal.Marshallable = (*SigAction)(nil)
)

// SizeBytes implements marshal.Marshallable.SizeBytes.
func (s *SignalSet) SizeBytes() int {
	return SignalSetSize
}

// MarshalBytes implements marshal.Marshallable.MarshalBytes.
func (s *SignalSet) MarshalBytes(dst []byte) []byte {
	byteOrder.PutUint64(dst[:8], uint64(*s))
	return dst[8:]
}

// UnmarshalBytes implements marshal.Marshallable.UnmarshalBytes.
func (s *SignalSet) UnmarshalBytes(src []byte) []byte {
	*s = SignalSet(byteOrder.Uint64(src[:8]))
	return src[8:]
}

// SizeBytes implements marshal.Marshallable.SizeBytes.
func (s *SignalInfo) SizeBytes() int {
	return SizeOfSignalInfo
}

// MarshalBytes implements marshal.Marshallable.MarshalBytes.
func (s *SignalInfo) MarshalBytes(dst []byte) []byte {
	byteOrder.PutUint32(dst[:4], uint32(s.Signo))
	dst = dst[4:]
	byteOrder.PutUint32(dst[:4], uint32(s.Errno))
	dst = dst[4:]
	byteOrder.PutUint32(dst[:4], uint32(s.Code))
	dst = dst[4:]
	// Padding: dst[:sizeof(uint32)] ~= uint32(0)
	byteOrder.PutUint32(dst[:4], 0)
	dst = dst[4:]
	copy(dst[:len(s.Fields)], s.Fields[:])
	return dst[len(s.Fields):]
}

// UnmarshalBytes implements marshal.Marshallable.UnmarshalBytes.
func (s *SignalInfo) UnmarshalBytes(src []byte) []byte {
	s.Signo = int32(byteOrder.Uint32(src[:4]))
	src = src[4:]
	s.Errno = int32(byteOrder.Uint32(src[:4]))
	src = src[4:]
	s.Code = int32(byteOrder.Uint32(src[:4]))
	src = src[4:]
	// Padding: var _ uint32 ~= src[:sizeof(uint32)]
	src = src[4:]
	copy(s.Fields[:], src[:len(s.Fields)])
	return src[len(s.Fields):]
}

// SizeBytes implements marshal.Marshallable.SizeBytes.
func (s *SignalStack) SizeBytes() int {
	return SizeOfSignalStack
}

// MarshalBytes implements marshal.Marshallable.MarshalBytes.
func (s *SignalStack) MarshalBytes(dst []byte) []byte {
	byteOrder.PutUint64(dst[:8], s.Addr)
	dst = dst[8:]
	byteOrder.PutUint32(dst[:4], s.Flags)
	dst = dst[4:]
	// Padding: dst[:sizeof(uint32)] ~= uint32(0)
	byteOrder.PutUint32(dst[:4], 0)
	dst = dst[4:]
	byteOrder.PutUint64(dst[:8], s.Size)
	return dst[8:]
}

// UnmarshalBytes implements marshal.Marshallable.UnmarshalBytes.
func (s *SignalStack) UnmarshalBytes(src []byte) []byte {
	s.Addr = byteOrder.Uint64(src[:8])
	src = src[8:]
	s.Flags = byteOrder.Uint32(src[:4])
	src = src[4:]
	// Padding: var _ uint32 ~= src[:sizeof(uint32)]
	src = src[4:]
	s.Size = byteOrder.Uint64(src[:8])
	return src[8:]
}

// SizeBytes implements marshal.Marshallable.SizeBytes.
func (s *SigAction) SizeBytes() int {
	return SizeOfSigAction
}

// MarshalBytes implements marshal.Marshallable.MarshalBytes.
func (s *SigAction) MarshalBytes(dst []byte) []byte {
	byteOrder.PutUint64(dst[:8], s.Handler)
	dst = dst[8:]
	byteOrder.PutUint64(dst[:8], s.Flags)
	dst = dst[8:]
	byteOrder.PutUint64(dst[:8], s.Restorer)
	dst = dst[8:]
	return s.Mask.MarshalBytes(dst)
}

// UnmarshalBytes implements marshal.Marshallable.UnmarshalBytes.
func (s *SigAction) UnmarshalBytes(src []byte) []byte {
	s.Handler = byteOrder.Uint64(src[:8])
	src = src[8:]
	s.Flags = byteOrder.Uint64(src[:8])
	src = src[8:]
	s.Restorer = byteOrder.Uint64(src[:8])
	src = src[8:]
	return s.Mask.UnmarshalBytes(src)
}
