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

// Package usermem governs access to user memory.
package usermem

import (
	"gvisor.dev/sigcore/pkg/errors/linuxerr"
	"gvisor.dev/sigcore/pkg/hostarch"
)

// IO provides access to the contents of a virtual memory space.
type IO interface {
	// CopyOut copies len(src) bytes from src to the memory mapped at addr. It
	// returns the number of bytes copied. If the number of bytes copied is <
	// len(src), it returns a non-nil error explaining why.
	CopyOut(addr hostarch.Addr, src []byte) (int, error)

	// CopyIn copies len(dst) bytes from the memory mapped at addr to dst.
	// It returns the number of bytes copied. If the number of bytes copied is
	// < len(dst), it returns a non-nil error explaining why.
	CopyIn(addr hostarch.Addr, dst []byte) (int, error)

	// ZeroOut sets toZero bytes to 0, starting at addr. It returns the number
	// of bytes zeroed. If the number of bytes zeroed is < toZero, it returns a
	// non-nil error explaining why.
	//
	// Preconditions: toZero >= 0.
	ZeroOut(addr hostarch.Addr, toZero int64) (int64, error)
}

// BytesIO implements IO using a byte slice. Addresses are interpreted as
// offsets into the slice, shifted by Base. Reads and writes beyond the end of
// the slice return EFAULT.
type BytesIO struct {
	Bytes []byte

	// Base is the address of Bytes[0].
	Base hostarch.Addr
}

// CopyOut implements IO.CopyOut.
func (b *BytesIO) CopyOut(addr hostarch.Addr, src []byte) (int, error) {
	rngN, rngErr := b.rangeCheck(addr, len(src))
	if rngN == 0 {
		return 0, rngErr
	}
	start := int(addr - b.Base)
	return copy(b.Bytes[start:start+rngN], src), rngErr
}

// CopyIn implements IO.CopyIn.
func (b *BytesIO) CopyIn(addr hostarch.Addr, dst []byte) (int, error) {
	rngN, rngErr := b.rangeCheck(addr, len(dst))
	if rngN == 0 {
		return 0, rngErr
	}
	start := int(addr - b.Base)
	return copy(dst, b.Bytes[start:start+rngN]), rngErr
}

// ZeroOut implements IO.ZeroOut.
func (b *BytesIO) ZeroOut(addr hostarch.Addr, toZero int64) (int64, error) {
	if toZero > int64(^uint(0)>>1) {
		return 0, linuxerr.EINVAL
	}
	rngN, rngErr := b.rangeCheck(addr, int(toZero))
	if rngN == 0 {
		return 0, rngErr
	}
	start := int(addr - b.Base)
	zeroes := b.Bytes[start : start+rngN]
	for i := range zeroes {
		zeroes[i] = 0
	}
	return int64(rngN), rngErr
}

// Range returns the address range covered by b.
func (b *BytesIO) Range() hostarch.AddrRange {
	return hostarch.AddrRange{Start: b.Base, End: b.Base + hostarch.Addr(len(b.Bytes))}
}

// rangeCheck returns the number of bytes that can be accessed starting at
// addr, up to length, and an error if that is less than length.
func (b *BytesIO) rangeCheck(addr hostarch.Addr, length int) (int, error) {
	if length == 0 {
		return 0, nil
	}
	if addr < b.Base {
		return 0, linuxerr.EFAULT
	}
	off := uint64(addr - b.Base)
	if off >= uint64(len(b.Bytes)) {
		return 0, linuxerr.EFAULT
	}
	if rem := uint64(len(b.Bytes)) - off; rem < uint64(length) {
		return int(rem), linuxerr.EFAULT
	}
	return length, nil
}
