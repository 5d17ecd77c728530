package types

// FrameStatus identifies the kind of a progress frame
type FrameStatus string

const (
	FrameStarted   FrameStatus = "started"
	FrameRunning   FrameStatus = "running"
	FrameCompleted FrameStatus = "completed"
	FrameError     FrameStatus = "error"
)

// ProgressFrame is one element of the live run stream. Frames are emitted in
// order: one started, zero or more running, then exactly one completed or
// error frame.
type ProgressFrame struct {
	Status   FrameStatus `json:"status"`
	Message  string      `json:"message,omitempty"`
	Output   string      `json:"output,omitempty"`
	Success  *bool       `json:"success,omitempty"`
	ExitCode *int        `json:"exit_code,omitempty"`
}

// StartedFrame announces a successful spawn
func StartedFrame(jobName string) ProgressFrame {
	return ProgressFrame{Status: FrameStarted, Message: "running job: " + jobName}
}

// RunningFrame carries one captured output chunk
func RunningFrame(output string) ProgressFrame {
	return ProgressFrame{Status: FrameRunning, Output: output}
}

// CompletedFrame is the terminal frame for a run that spawned
func CompletedFrame(success bool, message string, exitCode int, hasExit bool) ProgressFrame {
	f := ProgressFrame{Status: FrameCompleted, Message: message, Success: &success}
	if hasExit {
		code := exitCode
		f.ExitCode = &code
	}
	return f
}

// ErrorFrame is the terminal frame for a run that never spawned
func ErrorFrame(message string) ProgressFrame {
	return ProgressFrame{Status: FrameError, Message: message}
}
