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

// Package marshal defines the Marshallable interface for serialize/deserializing
// Go data structures to/from memory, according to the Linux ABI.
package marshal

import (
	"gvisor.dev/sigcore/pkg/hostarch"
	"gvisor.dev/sigcore/pkg/usermem"
)

// Marshallable represents operations on a type that can be marshalled to and
// from memory.
type Marshallable interface {
	// SizeBytes is the size of the memory representation of a type in
	// marshalled form.
	SizeBytes() int

	// MarshalBytes serializes a copy of a type to dst and returns the
	// remaining portion of dst. Precondition: dst must be at least
	// SizeBytes() in length.
	MarshalBytes(dst []byte) []byte

	// UnmarshalBytes deserializes a type from src and returns the remaining
	// portion of src. Precondition: src must be at least SizeBytes() in
	// length.
	UnmarshalBytes(src []byte) []byte
}

// CopyOut serializes m and copies it to memory at addr.
func CopyOut(io usermem.IO, addr hostarch.Addr, m Marshallable) (int, error) {
	buf := make([]byte, m.SizeBytes())
	m.MarshalBytes(buf)
	return io.CopyOut(addr, buf)
}

// CopyIn copies m.SizeBytes() bytes from memory at addr and deserializes them
// into m. m is left unmodified if the copy is short.
func CopyIn(io usermem.IO, addr hostarch.Addr, m Marshallable) (int, error) {
	buf := make([]byte, m.SizeBytes())
	n, err := io.CopyIn(addr, buf)
	if err != nil {
		return n, err
	}
	m.UnmarshalBytes(buf)
	return n, nil
}
