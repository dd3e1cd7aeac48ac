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

package cmd

import (
	"context"
	"testing"
	"time"

	"gvisor.dev/sigcore/pkg/abi/linux"
	"gvisor.dev/sigcore/pkg/errors/linuxerr"
	"gvisor.dev/sigcore/pkg/sentry/kernel"
)

func TestRunStress(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts StressOptions
	}{
		{
			name: "unlimited",
			opts: StressOptions{Senders: 4, Waiters: 3, Signals: 200},
		},
		{
			name: "shared signals",
			opts: StressOptions{Senders: 40, Waiters: 2, Signals: 10},
		},
		{
			name: "queue limit",
			opts: StressOptions{Senders: 4, Waiters: 1, Signals: 100, MaxQueuedRealtime: 8},
		},
		{
			name: "rate limited",
			opts: StressOptions{Senders: 2, Waiters: 2, Signals: 20, Rate: 1000},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			res, err := RunStress(ctx, tc.opts)
			if err != nil {
				t.Fatalf("RunStress: %v (result %+v)", err, res)
			}
			want := int64(tc.opts.Senders * tc.opts.Signals)
			if res.Sent != want || res.Received != want {
				t.Errorf("sent %d, received %d, want %d each", res.Sent, res.Received, want)
			}
			if res.OutOfOrder != 0 {
				t.Errorf("%d signals out of order", res.OutOfOrder)
			}
		})
	}
}

func TestRunStressInvalid(t *testing.T) {
	for _, opts := range []StressOptions{
		{Senders: 0, Waiters: 1},
		{Senders: 1, Waiters: 0},
		{Senders: 1, Waiters: 1, Signals: -1},
	} {
		if _, err := RunStress(context.Background(), opts); err == nil {
			t.Errorf("RunStress(%+v) succeeded, want error", opts)
		}
	}
}

func TestRunStressCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := RunStress(ctx, StressOptions{Senders: 1, Waiters: 1, Signals: 10, Rate: 1}); err == nil {
		t.Errorf("RunStress with a canceled context succeeded")
	}
}

func TestSendWithRetry(t *testing.T) {
	info := kernel.SignalInfoQueue(linux.SIGRTMIN, 1, 0, 0)

	t.Run("retries EAGAIN", func(t *testing.T) {
		calls := 0
		send := func(*linux.SignalInfo) error {
			calls++
			if calls <= 3 {
				return linuxerr.EAGAIN
			}
			return nil
		}
		var retries int64
		if err := sendWithRetry(context.Background(), send, info, &retries); err != nil {
			t.Fatalf("sendWithRetry: %v", err)
		}
		if calls != 4 || retries != 3 {
			t.Errorf("calls = %d, retries = %d; want 4, 3", calls, retries)
		}
	})

	t.Run("stops on other errors", func(t *testing.T) {
		calls := 0
		send := func(*linux.SignalInfo) error {
			calls++
			return linuxerr.EINVAL
		}
		var retries int64
		if err := sendWithRetry(context.Background(), send, info, &retries); !linuxerr.Equals(linuxerr.EINVAL, err) {
			t.Errorf("sendWithRetry = %v, want EINVAL", err)
		}
		if calls != 1 || retries != 0 {
			t.Errorf("calls = %d, retries = %d; want 1, 0", calls, retries)
		}
	})

	t.Run("stops when canceled", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		send := func(*linux.SignalInfo) error {
			return linuxerr.EAGAIN
		}
		var retries int64
		start := time.Now()
		if err := sendWithRetry(ctx, send, info, &retries); err == nil {
			t.Errorf("sendWithRetry succeeded against a full queue")
		}
		if elapsed := time.Since(start); elapsed > 5*time.Second {
			t.Errorf("sendWithRetry returned after %v, want shortly after the deadline", elapsed)
		}
		if retries == 0 {
			t.Errorf("no retries counted")
		}
	})
}
