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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gvisor.dev/sigcore/pkg/abi/linux"
)

// Scenario is a signal simulation read from a TOML file: one process with a
// number of threads, its initial signal actions and the steps to run.
type Scenario struct {
	// Threads is the number of threads in the process. Zero means one.
	Threads int            `toml:"threads"`
	Actions []ActionConfig `toml:"action"`
	Steps   []Step         `toml:"step"`
}

// ActionConfig describes a sigaction(2) call.
type ActionConfig struct {
	// Signal is only used for entries of Scenario.Actions.
	Signal string `toml:"signal"`

	// Handler is "default", "ignore" or a handler address.
	Handler  string   `toml:"handler"`
	Flags    []string `toml:"flags"`
	Mask     []string `toml:"mask"`
	Restorer uint64   `toml:"restorer"`
}

// Step is one operation of a scenario.
type Step struct {
	// Op is one of send, tkill, mask, check, restore, wait, sigaction and
	// sigaltstack.
	Op string `toml:"op"`

	// Thread indexes the thread the step applies to.
	Thread int `toml:"thread"`

	Signal  string   `toml:"signal"`
	Signals []string `toml:"signals"`

	// PID, UID and Value fill in the siginfo of send and tkill.
	PID   int32  `toml:"pid"`
	UID   int32  `toml:"uid"`
	Value uint64 `toml:"value"`

	// How is block, unblock or setmask.
	How string `toml:"how"`

	Timeout duration `toml:"timeout"`

	Action *ActionConfig `toml:"action"`

	// Size is the alternate stack size; Disable turns the alternate stack
	// off.
	Size    uint64 `toml:"size"`
	Disable bool   `toml:"disable"`

	// Expect is the signal the step should yield, or "none".
	Expect string `toml:"expect"`

	// ExpectAction is the outcome check should report.
	ExpectAction string `toml:"expect_action"`
}

// duration is a time.Duration that decodes from strings such as "50ms".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.UnmarshalText.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

var (
	stepOps = map[string]bool{
		"send":        true,
		"tkill":       true,
		"mask":        true,
		"check":       true,
		"restore":     true,
		"wait":        true,
		"sigaction":   true,
		"sigaltstack": true,
	}

	maskHows = map[string]int{
		"block":   linux.SIG_BLOCK,
		"unblock": linux.SIG_UNBLOCK,
		"setmask": linux.SIG_SETMASK,
	}

	actionFlags = map[string]uint64{
		"NOCLDSTOP": linux.SA_NOCLDSTOP,
		"NOCLDWAIT": linux.SA_NOCLDWAIT,
		"SIGINFO":   linux.SA_SIGINFO,
		"RESTORER":  linux.SA_RESTORER,
		"ONSTACK":   linux.SA_ONSTACK,
		"RESTART":   linux.SA_RESTART,
		"NODEFER":   linux.SA_NODEFER,
		"RESETHAND": linux.SA_RESETHAND,
	}
)

// ParseScenario decodes a scenario from TOML text.
func ParseScenario(data string) (*Scenario, error) {
	var s Scenario
	md, err := toml.Decode(data, &s)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown scenario keys: %v", undecoded)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadScenario reads a scenario from a TOML file.
func LoadScenario(path string) (*Scenario, error) {
	var s Scenario
	md, err := toml.DecodeFile(path, &s)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown scenario keys: %v", path, undecoded)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.Threads < 0 {
		return fmt.Errorf("invalid thread count %d", s.Threads)
	}
	if s.Threads == 0 {
		s.Threads = 1
	}
	for i, a := range s.Actions {
		if _, err := parseSignal(a.Signal); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	for i, st := range s.Steps {
		if !stepOps[st.Op] {
			return fmt.Errorf("step %d: unknown op %q", i, st.Op)
		}
		if st.Thread < 0 || st.Thread >= s.Threads {
			return fmt.Errorf("step %d: thread %d out of range [0, %d)", i, st.Thread, s.Threads)
		}
		switch st.Op {
		case "send", "tkill":
			if _, err := parseSignal(st.Signal); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		case "mask":
			if _, ok := maskHows[st.How]; !ok {
				return fmt.Errorf("step %d: unknown mask operation %q", i, st.How)
			}
		case "sigaction":
			if st.Action == nil {
				return fmt.Errorf("step %d: sigaction without action", i)
			}
			if _, err := parseSignal(st.Signal); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		}
	}
	return nil
}

// parseSignal accepts a signal name with or without the SIG prefix, or a
// number.
func parseSignal(s string) (linux.Signal, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if sig := linux.Signal(n); sig.IsValid() {
			return sig, nil
		}
		return 0, fmt.Errorf("unknown signal %q", s)
	}
	if sig, ok := linux.SignalByName(strings.ToUpper(s)); ok {
		return sig, nil
	}
	return 0, fmt.Errorf("unknown signal %q", s)
}

func parseSignalSet(names []string) (linux.SignalSet, error) {
	var set linux.SignalSet
	for _, name := range names {
		sig, err := parseSignal(name)
		if err != nil {
			return 0, err
		}
		set.Add(sig)
	}
	return set, nil
}

// toABI returns the struct sigaction described by a.
func (a *ActionConfig) toABI() (linux.SigAction, error) {
	var act linux.SigAction
	switch a.Handler {
	case "", "default":
		act.Handler = linux.SIG_DFL
	case "ignore":
		act.Handler = linux.SIG_IGN
	default:
		addr, err := strconv.ParseUint(a.Handler, 0, 64)
		if err != nil {
			return act, fmt.Errorf("invalid handler %q", a.Handler)
		}
		act.Handler = addr
	}
	for _, name := range a.Flags {
		flag, ok := actionFlags[strings.TrimPrefix(strings.ToUpper(name), "SA_")]
		if !ok {
			return act, fmt.Errorf("unknown action flag %q", name)
		}
		act.Flags |= flag
	}
	mask, err := parseSignalSet(a.Mask)
	if err != nil {
		return act, err
	}
	act.Mask = mask
	act.Restorer = a.Restorer
	return act, nil
}
