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
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/google/subcommands"
	"gvisor.dev/sigcore/pkg/abi/linux"
	"gvisor.dev/sigcore/pkg/sentry/kernel"
	"gvisor.dev/sigcore/pkg/sighandling"
)

// Signals implements subcommands.Command for the "signals" command.
type Signals struct {
	output string
	host   bool
}

// SignalDoc describes one signal number.
type SignalDoc struct {
	Number        int    `json:"number"`
	Name          string `json:"name"`
	Class         string `json:"class"`
	DefaultAction string `json:"default_action"`

	// HostName is the host's name for the signal, if it has one.
	HostName string `json:"host_name,omitempty"`

	// HostAction is the disposition this process has on the host. It is
	// only filled in with -host.
	HostAction string `json:"host_action,omitempty"`
}

type signalsOutputFunc func(io.Writer, []SignalDoc) error

// A map of output type names to output functions.
var signalsOutputMap = map[string]signalsOutputFunc{
	"table": signalsTable,
	"json":  signalsJSON,
	"csv":   signalsCSV,
}

// Name implements subcommands.Command.Name.
func (*Signals) Name() string {
	return "signals"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Signals) Synopsis() string {
	return "Print the signal table."
}

// Usage implements subcommands.Command.Usage.
func (*Signals) Usage() string {
	return `signals [-o table|json|csv] - Print every signal number with its name, class and default action.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Signals) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.output, "o", "table", "Output format (table, csv, json).")
	f.BoolVar(&s.host, "host", false, "Also show the host disposition of each signal for this process.")
}

// Execute implements subcommands.Command.Execute.
func (s *Signals) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	out, ok := signalsOutputMap[s.output]
	if !ok {
		Fatalf("Unsupported output format %q", s.output)
	}
	docs := SignalTable()
	if s.host {
		acts, err := sighandling.HostActions()
		if err != nil {
			Fatalf("Reading host signal actions: %v", err)
		}
		addHostActions(docs, acts[:])
	}
	if err := out(os.Stdout, docs); err != nil {
		Fatalf("Error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// SignalTable returns the documentation of every valid signal in numeric
// order.
func SignalTable() []SignalDoc {
	docs := make([]SignalDoc, 0, linux.SignalMaximum)
	for sig := linux.Signal(1); sig.IsValid(); sig++ {
		class := "standard"
		if sig.IsRealtime() {
			class = "realtime"
		}
		docs = append(docs, SignalDoc{
			Number:        int(sig),
			Name:          sig.String(),
			Class:         class,
			DefaultAction: sig.DefaultAction().String(),
			HostName:      sig.HostName(),
		})
	}
	return docs
}

// addHostActions fills in HostAction from the host's struct sigaction of
// each signal.
func addHostActions(docs []SignalDoc, acts []linux.SigAction) {
	for i := range docs {
		act, err := kernel.SignalActionFromABI(&acts[i])
		if err != nil {
			docs[i].HostAction = fmt.Sprintf("handler@%#x flags=%#x", acts[i].Handler, acts[i].Flags)
			continue
		}
		docs[i].HostAction = act.Disposition.String()
	}
}

func hasHostActions(docs []SignalDoc) bool {
	return len(docs) > 0 && docs[0].HostAction != ""
}

// signalsTable outputs the signal table in tabular format.
func signalsTable(w io.Writer, docs []SignalDoc) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	host := hasHostActions(docs)
	header := "NUM\tNAME\tCLASS\tDEFAULT\tHOST"
	if host {
		header += "\tHOST ACTION"
	}
	if _, err := fmt.Fprintln(tw, header); err != nil {
		return err
	}
	for _, d := range docs {
		line := fmt.Sprintf("%d\t%s\t%s\t%s\t%s", d.Number, d.Name, d.Class, d.DefaultAction, d.HostName)
		if host {
			line += "\t" + d.HostAction
		}
		if _, err := fmt.Fprintln(tw, line); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// signalsJSON outputs the signal table in JSON format.
func signalsJSON(w io.Writer, docs []SignalDoc) error {
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(docs)
}

// signalsCSV outputs the signal table in CSV format.
func signalsCSV(w io.Writer, docs []SignalDoc) error {
	csvWriter := csv.NewWriter(w)
	host := hasHostActions(docs)
	header := []string{"Num", "Name", "Class", "Default", "Host"}
	if host {
		header = append(header, "HostAction")
	}
	if err := csvWriter.Write(header); err != nil {
		return err
	}
	for _, d := range docs {
		record := []string{strconv.Itoa(d.Number), d.Name, d.Class, d.DefaultAction, d.HostName}
		if host {
			record = append(record, d.HostAction)
		}
		if err := csvWriter.Write(record); err != nil {
			return err
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}
