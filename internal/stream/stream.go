package stream

import (
	"fmt"

	"github.com/litecron/litecron/internal/config"
	"github.com/litecron/litecron/internal/runner"
	"github.com/litecron/litecron/pkg/types"
	"github.com/sirupsen/logrus"
)

// frameBuffer bounds the channel between the runner and the consumer. A
// consumer that stops reading mid-run does not stall or kill the process:
// once the buffer fills, further output frames are dropped from the stream
// while the run itself continues and is fully logged and notified.
const frameBuffer = 256

// Publisher starts a job on demand and exposes its progress as a frame
// sequence. Each call starts a new run; the sequence is not restartable and
// has a single consumer.
type Publisher struct {
	store  *config.Store
	runner *runner.Runner
	logger *logrus.Logger
}

func New(store *config.Store, r *runner.Runner, logger *logrus.Logger) *Publisher {
	return &Publisher{store: store, runner: r, logger: logger}
}

// Stream triggers the named job and returns its frame sequence. The channel
// is closed after the terminal frame.
func (p *Publisher) Stream(jobName, mode string) <-chan types.ProgressFrame {
	frames := make(chan types.ProgressFrame, frameBuffer)

	go func() {
		defer close(frames)

		cfg, err := p.store.Load()
		if err != nil {
			frames <- types.ErrorFrame(fmt.Sprintf("failed to load config: %v", err))
			return
		}
		job, ok := cfg.Job(jobName)
		if !ok {
			frames <- types.ErrorFrame(fmt.Sprintf("task %s not found", jobName))
			return
		}
		if !job.Enabled {
			frames <- types.ErrorFrame(fmt.Sprintf("task %s is disabled", jobName))
			return
		}
		timeout, err := cfg.Timeout()
		if err != nil {
			frames <- types.ErrorFrame(err.Error())
			return
		}

		rec := p.runner.Run(*job, runner.Options{
			GlobalEnv: cfg.GlobalEnv,
			Timeout:   timeout,
			Mode:      mode,
			OnStart: func() {
				push(frames, types.StartedFrame(job.Name))
			},
			OnChunk: func(chunk types.OutputChunk) {
				push(frames, types.RunningFrame(chunk.Text))
			},
		})

		if rec.Outcome == types.OutcomeStartError {
			push(frames, types.ErrorFrame(rec.Message))
			return
		}
		success := rec.Outcome == types.OutcomeSuccess
		var message string
		if success {
			message = "task completed successfully"
		} else {
			message = fmt.Sprintf("task failed: %s", rec.Message)
		}
		push(frames, types.CompletedFrame(success, message, rec.ExitCode, rec.HasExit))
	}()

	return frames
}

// push never blocks: a gone consumer only stops observing the run
func push(frames chan<- types.ProgressFrame, frame types.ProgressFrame) {
	select {
	case frames <- frame:
	default:
	}
}
