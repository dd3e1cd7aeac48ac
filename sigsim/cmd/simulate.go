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
	"io"
	"os"

	"github.com/google/subcommands"
	"gvisor.dev/sigcore/pkg/abi/linux"
	"gvisor.dev/sigcore/pkg/hostarch"
	"gvisor.dev/sigcore/pkg/log"
	"gvisor.dev/sigcore/pkg/sentry/arch"
	"gvisor.dev/sigcore/pkg/sentry/kernel"
	"gvisor.dev/sigcore/pkg/usermem"
	"gvisor.dev/sigcore/sigsim/config"
)

// Simulate implements subcommands.Command for the "simulate" command.
type Simulate struct{}

// Name implements subcommands.Command.Name.
func (*Simulate) Name() string {
	return "simulate"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Simulate) Synopsis() string {
	return "run a signal scenario and print a transcript"
}

// Usage implements subcommands.Command.Usage.
func (*Simulate) Usage() string {
	return `simulate <scenario.toml> - run the steps of a scenario against one simulated process.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Simulate) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Simulate) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	sc, err := LoadScenario(f.Arg(0))
	if err != nil {
		Fatalf("loading scenario: %v", err)
	}
	sim, err := NewSimulator(sc, conf)
	if err != nil {
		Fatalf("%v", err)
	}
	runErr := sim.Run(os.Stdout)
	if err := writeMetrics(conf, fmt.Sprintf("Signal metrics after scenario %s", f.Arg(0))); err != nil {
		Fatalf("%v", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "scenario failed: %v\n", runErr)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// Layout of the simulated address space. Each thread owns a region whose
// upper half is its stack and whose lower half holds its alternate stack.
const (
	simMemBase    = hostarch.Addr(0x7f0000000000)
	simRegionSize = 0x20000
	simTrampoline = hostarch.Addr(0x7fff00001000)
	simEntryPoint = 0x400000
)

type simThread struct {
	signals *kernel.ThreadSignalManager
	regs    arch.Registers
	region  hostarch.Addr
}

// Simulator runs a Scenario against one process.
type Simulator struct {
	scenario *Scenario
	process  *kernel.ProcessSignalManager
	mem      *usermem.BytesIO
	threads  []*simThread
}

// NewSimulator builds the process described by sc.
func NewSimulator(sc *Scenario, conf *config.Config) (*Simulator, error) {
	process := kernel.NewProcessSignalManager(kernel.NewSignalActions(), hostarch.Addr(conf.DefaultRestorer), kernel.ProcessOptions{
		MaxQueuedRealtime: conf.MaxQueuedRealtime,
	})
	for i := range sc.Actions {
		a := &sc.Actions[i]
		sig, err := parseSignal(a.Signal)
		if err != nil {
			return nil, err
		}
		if _, err := setAction(process, sig, a); err != nil {
			return nil, fmt.Errorf("action %d (%v): %w", i, sig, err)
		}
	}

	mem := &usermem.BytesIO{
		Bytes: make([]byte, sc.Threads*simRegionSize),
		Base:  simMemBase,
	}
	ctx := arch.NewContextService(simTrampoline)
	s := &Simulator{scenario: sc, process: process, mem: mem}
	for i := 0; i < sc.Threads; i++ {
		region := simMemBase + hostarch.Addr(i*simRegionSize)
		s.threads = append(s.threads, &simThread{
			signals: kernel.NewThreadSignalManager(process, mem, ctx),
			region:  region,
			regs: arch.Registers{
				Rip:    simEntryPoint,
				Rsp:    uint64(region + simRegionSize),
				Cs:     0x33,
				Ss:     0x2b,
				Eflags: 0x202,
			},
		})
	}
	return s, nil
}

func setAction(process *kernel.ProcessSignalManager, sig linux.Signal, a *ActionConfig) (kernel.SignalAction, error) {
	abi, err := a.toABI()
	if err != nil {
		return kernel.SignalAction{}, err
	}
	act, err := kernel.SignalActionFromABI(&abi)
	if err != nil {
		return kernel.SignalAction{}, err
	}
	return process.SetAction(sig, act)
}

// Run executes every step in order and writes a transcript to w. It stops
// at the first step that fails or does not meet its expectation.
func (s *Simulator) Run(w io.Writer) error {
	for i := range s.scenario.Steps {
		st := &s.scenario.Steps[i]
		result, err := s.step(st)
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i, st.Op, err)
		}
		fmt.Fprintf(w, "[%d] thread %d: %s: %s\n", i, st.Thread, st.Op, result.text)
		log.Debugf("Step %d: %s: %s", i, st.Op, result.text)
		if err := result.check(st); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, st.Op, err)
		}
	}
	return nil
}

// stepResult is what a step produced.
type stepResult struct {
	text string

	// sig is the signal the step yielded, if any.
	sig linux.Signal

	// action is set by check.
	action string
}

func (r stepResult) check(st *Step) error {
	if st.Expect != "" {
		got := "none"
		if r.sig != 0 {
			got = r.sig.String()
		}
		want := st.Expect
		if want != "none" {
			sig, err := parseSignal(want)
			if err != nil {
				return err
			}
			want = sig.String()
		}
		if got != want {
			return fmt.Errorf("got signal %s, want %s", got, want)
		}
	}
	if st.ExpectAction != "" && r.action != st.ExpectAction {
		return fmt.Errorf("got action %s, want %s", r.action, st.ExpectAction)
	}
	return nil
}

func (s *Simulator) step(st *Step) (stepResult, error) {
	t := s.threads[st.Thread]
	switch st.Op {
	case "send", "tkill":
		sig, err := parseSignal(st.Signal)
		if err != nil {
			return stepResult{}, err
		}
		if st.Op == "send" {
			info := kernel.SignalInfoUser(sig, st.PID, st.UID)
			if st.Value != 0 {
				info = kernel.SignalInfoQueue(sig, st.PID, st.UID, st.Value)
			}
			err = s.process.SendSignal(info)
		} else {
			err = t.signals.SendSignal(kernel.SignalInfoTkill(sig, st.PID, st.UID))
		}
		if err != nil {
			return stepResult{}, err
		}
		return stepResult{text: fmt.Sprintf("%v queued, pending %v", sig, t.signals.Pending()), sig: sig}, nil

	case "mask":
		set, err := parseSignalSet(st.Signals)
		if err != nil {
			return stepResult{}, err
		}
		old, err := t.signals.SigProcMask(maskHows[st.How], set)
		if err != nil {
			return stepResult{}, err
		}
		return stepResult{text: fmt.Sprintf("%s %v: blocked %v -> %v", st.How, set, old, t.signals.Blocked())}, nil

	case "check":
		info, action := t.signals.CheckSignals(&t.regs, nil)
		r := stepResult{action: action.String()}
		if info == nil {
			r.text = "nothing to deliver"
			return r, nil
		}
		r.sig = info.Signal()
		r.text = fmt.Sprintf("%v -> %v", r.sig, action)
		if action == kernel.SignalOSActionHandler {
			r.text += fmt.Sprintf(" (ip=%v sp=%v blocked=%v)", t.regs.IP(), t.regs.Stack(), t.signals.Blocked())
		}
		return r, nil

	case "restore":
		sig, err := s.restore(t)
		if err != nil {
			return stepResult{}, err
		}
		return stepResult{
			text: fmt.Sprintf("returned from %v handler (ip=%v sp=%v blocked=%v)", sig, t.regs.IP(), t.regs.Stack(), t.signals.Blocked()),
			sig:  sig,
		}, nil

	case "wait":
		set, err := parseSignalSet(st.Signals)
		if err != nil {
			return stepResult{}, err
		}
		info, ok := t.signals.WaitTimeout(set, st.Timeout.Duration, true)
		if !ok {
			return stepResult{text: fmt.Sprintf("%v: timed out after %v", set, st.Timeout.Duration)}, nil
		}
		return stepResult{text: fmt.Sprintf("%v: got %v", set, info.Signal()), sig: info.Signal()}, nil

	case "sigaction":
		sig, err := parseSignal(st.Signal)
		if err != nil {
			return stepResult{}, err
		}
		old, err := setAction(s.process, sig, st.Action)
		if err != nil {
			return stepResult{}, err
		}
		return stepResult{text: fmt.Sprintf("%v: %v (was %v)", sig, s.process.Actions().Get(sig).Disposition, old.Disposition)}, nil

	case "sigaltstack":
		alt := linux.SignalStack{Flags: linux.SS_DISABLE}
		if !st.Disable {
			size := st.Size
			if size == 0 {
				size = linux.SIGSTKSZ
			}
			if size > simRegionSize/2 {
				return stepResult{}, fmt.Errorf("alternate stack size %d exceeds %d", size, simRegionSize/2)
			}
			alt = linux.SignalStack{Addr: uint64(t.region), Size: size}
		}
		if err := t.signals.SetSignalStack(alt, t.regs.Stack()); err != nil {
			return stepResult{}, err
		}
		got := t.signals.SignalStack(t.regs.Stack())
		return stepResult{text: fmt.Sprintf("alternate stack addr=%#x size=%d flags=%#x", got.Addr, got.Size, got.Flags)}, nil
	}
	return stepResult{}, fmt.Errorf("unknown op %q", st.Op)
}

// restore simulates the handler returning through its restorer: the return
// pops the restorer address, then rt_sigreturn restores the frame.
func (s *Simulator) restore(t *simThread) (sig linux.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rt_sigreturn: %v", r)
		}
	}()
	t.regs.Rsp += 8
	return t.signals.Restore(&t.regs), nil
}
