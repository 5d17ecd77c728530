package types

import "time"

// Outcome classifies how a job execution ended
type Outcome string

const (
	OutcomeRunning    Outcome = "running"
	OutcomeSuccess    Outcome = "success"
	OutcomeFailure    Outcome = "failure"
	OutcomeTimedOut   Outcome = "timed_out"
	OutcomeStartError Outcome = "start_error"
)

// Terminal reports whether the outcome is final
func (o Outcome) Terminal() bool {
	return o != OutcomeRunning
}

// Failed reports whether the outcome should trigger failure notifications
func (o Outcome) Failed() bool {
	return o == OutcomeFailure || o == OutcomeTimedOut || o == OutcomeStartError
}

// OutputChunk is one captured piece of process output, timestamped at capture
// time so stdout and stderr interleave in arrival order.
type OutputChunk struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// RunRecord tracks a single execution of a job. It is mutated only by the
// runner that created it and becomes immutable once Outcome is terminal.
type RunRecord struct {
	JobName  string        `json:"job_name"`
	Start    time.Time     `json:"start_time"`
	End      time.Time     `json:"end_time,omitempty"`
	Outcome  Outcome       `json:"outcome"`
	ExitCode int           `json:"exit_code,omitempty"`
	HasExit  bool          `json:"-"`
	Output   []OutputChunk `json:"output,omitempty"`
	Message  string        `json:"message,omitempty"`
}

// Duration returns the wall time of the run, zero while still running
func (r *RunRecord) Duration() time.Duration {
	if r.End.IsZero() {
		return 0
	}
	return r.End.Sub(r.Start)
}
