// internal/agent/stall.go
package agent

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/softlight-cli/api/schemas"
)

// canonicalJSON re-encodes parameter payloads with sorted keys so the same
// action always produces the same signature regardless of field order.
var canonicalJSON = jsoniter.Config{SortMapKeys: true}.Froze()

const (
	defaultStallWindow    = 10
	defaultStallThreshold = 2
)

// stallDetector watches the stream of executed actions for exact repeats. It
// keeps a FIFO window of action signatures; when the same signature shows up
// threshold times the loop attempts an escape, and at threshold+2 it gives
// up on the run.
type stallDetector struct {
	window    int
	threshold int
	recent    []string
}

func newStallDetector(window, threshold int) *stallDetector {
	if window <= 0 {
		window = defaultStallWindow
	}
	if threshold <= 0 {
		threshold = defaultStallThreshold
	}
	return &stallDetector{window: window, threshold: threshold}
}

// actionSignature is the repeat identity of one action: its name plus the
// canonical form of its parameters.
func actionSignature(a schemas.AgentAction) string {
	if len(a.Params) == 0 {
		return a.Name + ":{}"
	}
	var decoded any
	if err := canonicalJSON.Unmarshal(a.Params, &decoded); err != nil || decoded == nil {
		return a.Name + ":" + string(a.Params)
	}
	canonical, err := canonicalJSON.Marshal(decoded)
	if err != nil {
		return a.Name + ":" + string(a.Params)
	}
	return a.Name + ":" + string(canonical)
}

// observe records the actions of one step and returns the highest repeat
// count seen within the window, including the new occurrences.
func (d *stallDetector) observe(actions []schemas.AgentAction) int {
	maxCount := 0
	for _, action := range actions {
		sig := actionSignature(action)
		count := 1
		for _, seen := range d.recent {
			if seen == sig {
				count++
			}
		}
		d.recent = append(d.recent, sig)
		if len(d.recent) > d.window {
			d.recent = d.recent[len(d.recent)-d.window:]
		}
		if count > maxCount {
			maxCount = count
		}
	}
	return maxCount
}

// stalled reports whether the repeat count warrants an escape attempt.
func (d *stallDetector) stalled(count int) bool { return count >= d.threshold }

// exhausted reports whether the loop should give up entirely.
func (d *stallDetector) exhausted(count int) bool { return count >= d.threshold+2 }

func (d *stallDetector) reset() { d.recent = d.recent[:0] }
