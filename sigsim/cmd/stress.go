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
	"flag"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gvisor.dev/sigcore/pkg/abi/linux"
	"gvisor.dev/sigcore/pkg/errors/linuxerr"
	"gvisor.dev/sigcore/pkg/log"
	"gvisor.dev/sigcore/pkg/sentry/arch"
	"gvisor.dev/sigcore/pkg/sentry/kernel"
	"gvisor.dev/sigcore/pkg/usermem"
	"gvisor.dev/sigcore/sigsim/config"
)

// StressOptions configures RunStress.
type StressOptions struct {
	// Senders is the number of goroutines sending realtime signals to the
	// process.
	Senders int

	// Waiters is the number of threads consuming signals with a timed wait.
	Waiters int

	// Signals is the number of signals each sender sends.
	Signals int

	// Rate limits each sender to this many signals per second. Zero means
	// no limit.
	Rate float64

	// MaxQueuedRealtime is passed to the process. Senders retry sends that
	// fail with EAGAIN.
	MaxQueuedRealtime int

	// WaitTimeout bounds each individual wait.
	WaitTimeout time.Duration
}

// StressResult summarizes a RunStress run.
type StressResult struct {
	Sent     int64
	Received int64

	// Retries counts sends that were rejected by the realtime limit.
	Retries int64

	// Timeouts counts waits that returned EAGAIN.
	Timeouts int64

	// OutOfOrder counts signals a waiter received before an earlier signal
	// from the same sender.
	OutOfOrder int64

	Elapsed time.Duration
}

// sendRetryInterval is how long a sender waits before retrying a send that
// hit the realtime queue limit.
const sendRetryInterval = time.Millisecond

// stressSignal returns the realtime signal used by sender i. Senders beyond
// the number of realtime signals share signals.
func stressSignal(i int) linux.Signal {
	return linux.SIGRTMIN + linux.Signal(i%linux.NumRTSignals)
}

// sendWithRetry calls send until it accepts info. Sends rejected by the
// realtime queue limit are retried every sendRetryInterval and counted in
// retries; any other error ends the retries.
func sendWithRetry(ctx context.Context, send func(*linux.SignalInfo) error, info *linux.SignalInfo, retries *int64) error {
	op := func() error {
		err := send(info)
		if err == nil {
			return nil
		}
		if linuxerr.Equals(linuxerr.EAGAIN, err) {
			atomic.AddInt64(retries, 1)
			return err
		}
		return backoff.Permanent(err)
	}
	return backoff.Retry(op, backoff.WithContext(backoff.NewConstantBackOff(sendRetryInterval), ctx))
}

// RunStress sends Senders*Signals realtime signals to one process and
// receives them on Waiters threads. Each signal carries its sender and
// sequence number so waiters can check that a sender's signals arrive in
// the order they were queued.
func RunStress(ctx context.Context, opts StressOptions) (StressResult, error) {
	if opts.Senders <= 0 || opts.Waiters <= 0 || opts.Signals < 0 {
		return StressResult{}, fmt.Errorf("invalid stress options %+v", opts)
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 100 * time.Millisecond
	}

	process := kernel.NewProcessSignalManager(nil, 0, kernel.ProcessOptions{
		MaxQueuedRealtime: opts.MaxQueuedRealtime,
	})
	mem := &usermem.BytesIO{Bytes: make([]byte, 0x1000), Base: 0x10000}
	ctxService := arch.NewContextService(0)

	var set linux.SignalSet
	for i := 0; i < opts.Senders; i++ {
		set.Add(stressSignal(i))
	}

	var (
		result StressResult
		total  = int64(opts.Senders) * int64(opts.Signals)
		recvd  atomic.Int64
		start  = time.Now()
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.Senders; i++ {
		i := i
		g.Go(func() error {
			var limiter *rate.Limiter
			if opts.Rate > 0 {
				limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
			}
			sig := stressSignal(i)
			for j := 0; j < opts.Signals; j++ {
				if limiter != nil {
					if err := limiter.Wait(gctx); err != nil {
						return err
					}
				}
				info := kernel.SignalInfoQueue(sig, int32(i+1), 0, uint64(i)<<32|uint64(j))
				if err := sendWithRetry(gctx, process.SendSignal, info, &result.Retries); err != nil {
					return fmt.Errorf("sender %d: %w", i, err)
				}
				atomic.AddInt64(&result.Sent, 1)
			}
			return nil
		})
	}
	for w := 0; w < opts.Waiters; w++ {
		w := w
		thread := kernel.NewThreadSignalManager(process, mem, ctxService)
		g.Go(func() error {
			last := make(map[uint64]uint64)
			for recvd.Load() < total {
				info, err := thread.WaitContext(gctx, set, opts.WaitTimeout, true)
				if linuxerr.Equals(linuxerr.EAGAIN, err) {
					atomic.AddInt64(&result.Timeouts, 1)
					continue
				}
				if err != nil {
					return fmt.Errorf("waiter %d: %w", w, err)
				}
				sender, seq := info.Sigval()>>32, info.Sigval()&0xffffffff
				if prev, ok := last[sender]; ok && seq <= prev {
					atomic.AddInt64(&result.OutOfOrder, 1)
				}
				last[sender] = seq
				recvd.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	result.Received = recvd.Load()
	result.Elapsed = time.Since(start)
	if err == nil && result.OutOfOrder > 0 {
		err = fmt.Errorf("%d signals received out of order", result.OutOfOrder)
	}
	return result, err
}

// Stress implements subcommands.Command for the "stress" command.
type Stress struct {
	opts StressOptions
}

// Name implements subcommands.Command.Name.
func (*Stress) Name() string {
	return "stress"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Stress) Synopsis() string {
	return "send realtime signals from many goroutines and receive them on many threads"
}

// Usage implements subcommands.Command.Usage.
func (*Stress) Usage() string {
	return `stress [flags] - exercise concurrent signal delivery and report counts.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Stress) SetFlags(f *flag.FlagSet) {
	f.IntVar(&s.opts.Senders, "senders", 4, "number of sending goroutines")
	f.IntVar(&s.opts.Waiters, "waiters", 2, "number of waiting threads")
	f.IntVar(&s.opts.Signals, "signals", 1000, "signals sent by each sender")
	f.Float64Var(&s.opts.Rate, "rate", 0, "per-sender send rate in signals per second, 0 for unlimited")
	f.DurationVar(&s.opts.WaitTimeout, "wait-timeout", 100*time.Millisecond, "timeout of each individual wait")
}

// Execute implements subcommands.Command.Execute.
func (s *Stress) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	s.opts.MaxQueuedRealtime = conf.MaxQueuedRealtime

	log.Infof("Stress run: %d senders, %d waiters, %d signals each", s.opts.Senders, s.opts.Waiters, s.opts.Signals)
	res, err := RunStress(ctx, s.opts)
	fmt.Fprintf(os.Stdout, "sent=%d received=%d retries=%d timeouts=%d out_of_order=%d elapsed=%v\n",
		res.Sent, res.Received, res.Retries, res.Timeouts, res.OutOfOrder, res.Elapsed)
	if err := writeMetrics(conf, "Signal metrics after stress run"); err != nil {
		Fatalf("%v", err)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "stress failed: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
