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

package kernel

import (
	"time"

	"gvisor.dev/sigcore/pkg/log"
	"gvisor.dev/sigcore/pkg/metric"
)

var (
	signalsSent = metric.MustCreateNewUint64Metric("/signal/sent", "Number of signals accepted into a pending queue.",
		metric.NewField("target", []string{"thread", "process"}),
		metric.NewField("class", []string{"standard", "realtime"}))
	signalsCoalesced = metric.MustCreateNewUint64Metric("/signal/coalesced", "Number of standard signals discarded because an instance was already pending.")
	signalsRejected  = metric.MustCreateNewUint64Metric("/signal/queue_overflows", "Number of realtime signals rejected because the queue limit was reached.")
	signalsDelivered = metric.MustCreateNewUint64Metric("/signal/delivered", "Number of signals dequeued for delivery, by outcome.",
		metric.NewField("action", []string{"ignored", "terminate", "coredump", "stop", "continue", "handler"}))
	waitTimeouts = metric.MustCreateNewUint64Metric("/signal/wait_timeouts", "Number of signal waits that ended at their deadline.")
	frameFaults  = metric.MustCreateNewUint64Metric("/signal/frame_faults", "Number of handler frames that could not be written.")
)

// warnLog is used for conditions caused by the application that could
// otherwise flood the log.
var warnLog = log.BasicRateLimitedLogger(time.Minute)

func recordDelivery(action SignalOSAction) {
	if action == SignalOSActionNone {
		signalsDelivered.Increment("ignored")
		return
	}
	signalsDelivered.Increment(action.String())
}
