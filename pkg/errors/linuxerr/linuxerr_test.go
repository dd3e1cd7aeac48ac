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

package linuxerr

import (
	"testing"

	"golang.org/x/sys/unix"
	"gvisor.dev/sigcore/pkg/errors"
)

func TestEquals(t *testing.T) {
	for _, tc := range []struct {
		name string
		e    *errors.Error
		err  error
		want bool
	}{
		{"same pointer", EINVAL, EINVAL, true},
		{"unix errno", EINVAL, unix.EINVAL, true},
		{"different errno", EINVAL, unix.EPERM, false},
		{"different pointer", EINVAL, EAGAIN, false},
		{"nil error", EINTR, nil, false},
		{"nil both", nil, nil, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := Equals(tc.e, tc.err); got != tc.want {
				t.Errorf("Equals(%v, %v): got %t, wanted %t", tc.e, tc.err, got, tc.want)
			}
		})
	}
}

func TestRoundTripUnix(t *testing.T) {
	for errno, e := range errorSlice {
		if got := ErrorFromUnix(errno); got != e {
			t.Errorf("ErrorFromUnix(%v): got %v, wanted %v", errno, got, e)
		}
		if got := ToUnix(e); got != errno {
			t.Errorf("ToUnix(%v): got %v, wanted %v", e, got, errno)
		}
	}
	if got := ErrorFromUnix(0); got != nil {
		t.Errorf("ErrorFromUnix(0): got %v, wanted nil", got)
	}
	if got := ToError(nil); got != nil {
		t.Errorf("ToError(nil): got %v, wanted nil", got)
	}
}
