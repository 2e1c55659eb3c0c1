package fanfetch

import (
	"encoding/json"
	"time"

	"github.com/jpalmerr/fanfetch/internal/fanout"
)

// Report holds one [Outcome] per submitted [Descriptor], in submission order.
//
// A Report is built once, after every outcome has been collected, and is
// read-only afterwards. Its length always equals the number of descriptors
// passed to [Dispatcher.Dispatch], so a descriptor that failed is always
// distinguishable from one that was never submitted.
type Report struct {
	runID     string
	outcomes  []Outcome
	startedAt time.Time
	duration  time.Duration
}

// reportFromInternal converts a fanout report.
func reportFromInternal(r fanout.Report) Report {
	outcomes := make([]Outcome, len(r.Outcomes))
	for i, o := range r.Outcomes {
		outcomes[i] = outcomeFromInternal(o)
	}
	return Report{
		runID:     r.RunID,
		outcomes:  outcomes,
		startedAt: r.StartedAt,
		duration:  r.Duration,
	}
}

// RunID returns the unique identifier of the dispatch, also logged as run_id.
func (r Report) RunID() string {
	return r.runID
}

// StartedAt returns when the dispatch began.
func (r Report) StartedAt() time.Time {
	return r.startedAt
}

// Duration returns how long the dispatch took from start to full drain.
func (r Report) Duration() time.Duration {
	return r.duration
}

// Len returns the number of outcomes.
func (r Report) Len() int {
	return len(r.outcomes)
}

// At returns the outcome of the i-th submitted descriptor.
// It panics if i is out of range.
func (r Report) At(i int) Outcome {
	return r.outcomes[i]
}

// Outcomes returns a copy of all outcomes in submission order.
func (r Report) Outcomes() []Outcome {
	cp := make([]Outcome, len(r.outcomes))
	copy(cp, r.outcomes)
	return cp
}

// Successes returns the successful outcomes in submission order.
func (r Report) Successes() []Success {
	var out []Success
	for _, o := range r.outcomes {
		if s, ok := o.Success(); ok {
			out = append(out, s)
		}
	}
	return out
}

// Failures returns the failed outcomes in submission order.
func (r Report) Failures() []Failure {
	var out []Failure
	for _, o := range r.outcomes {
		if f, ok := o.Failure(); ok {
			out = append(out, f)
		}
	}
	return out
}

// Lookup returns the outcome of the first descriptor with the given name.
func (r Report) Lookup(name string) (Outcome, bool) {
	for _, o := range r.outcomes {
		if o.Source().Name() == name {
			return o, true
		}
	}
	return Outcome{}, false
}

// OK reports whether every outcome is a success. An empty report is OK.
func (r Report) OK() bool {
	for _, o := range r.outcomes {
		if !o.IsSuccess() {
			return false
		}
	}
	return true
}

// reportJSON is the wire form of a Report.
type reportJSON struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	DurationMs int64         `json:"duration_ms"`
	Total      int           `json:"total"`
	Failed     int           `json:"failed"`
	Outcomes   []outcomeJSON `json:"outcomes"`
}

type outcomeJSON struct {
	Index     int               `json:"index"`
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	Labels    map[string]string `json:"labels,omitempty"`
	OK        bool              `json:"ok"`
	Kind      ErrorKind         `json:"kind,omitempty"`
	Error     string            `json:"error,omitempty"`
	Attempted bool              `json:"attempted"`
	Bytes     int               `json:"bytes"`
	LatencyMs int64             `json:"latency_ms"`
}

// MarshalJSON encodes the report summary. Payloads are reported by size only.
func (r Report) MarshalJSON() ([]byte, error) {
	out := reportJSON{
		RunID:      r.runID,
		StartedAt:  r.startedAt,
		DurationMs: r.duration.Milliseconds(),
		Total:      len(r.outcomes),
		Outcomes:   make([]outcomeJSON, len(r.outcomes)),
	}
	for i, o := range r.outcomes {
		src := o.Source()
		entry := outcomeJSON{
			Index:  o.Index(),
			Name:   src.Name(),
			URL:    src.URL(),
			Labels: src.Labels(),
		}
		o.Match(
			func(s Success) {
				entry.OK = true
				entry.Attempted = true
				entry.Bytes = len(s.Payload)
				entry.LatencyMs = s.Latency.Milliseconds()
			},
			func(f Failure) {
				out.Failed++
				entry.Kind = f.Kind
				entry.Error = f.Err.Error()
				entry.Attempted = f.Attempted
				entry.LatencyMs = f.Latency.Milliseconds()
			},
		)
		out.Outcomes[i] = entry
	}
	return json.Marshal(out)
}
