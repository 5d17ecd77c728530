package runner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/litecron/litecron/internal/guard"
	"github.com/litecron/litecron/internal/logfile"
	"github.com/litecron/litecron/pkg/types"
	"github.com/litecron/litecron/pkg/utils"
	"github.com/sirupsen/logrus"
)

// maxRecordChunks bounds the output kept on the RunRecord for display; the
// full output always reaches the day's log file.
const maxRecordChunks = 500

// ExecModeEnv tells the job which trigger path started it
const ExecModeEnv = "LITECRON_EXEC_MODE"

// Options tune a single execution
type Options struct {
	GlobalEnv map[string]string
	Timeout   time.Duration
	Mode      string // cron, cli or webui
	OnStart   func()
	OnChunk   func(types.OutputChunk)
}

// Notifier consumes terminal run outcomes
type Notifier interface {
	RunFinished(rec *types.RunRecord)
}

// Runner executes a job's command as a child process: acquires the execution
// guard, overlays the environment, captures stdout and stderr interleaved in
// arrival order, enforces the timeout and classifies the exit status.
type Runner struct {
	guard    *guard.Guard
	book     *logfile.Book
	notifier Notifier
	logger   *logrus.Logger
}

func New(g *guard.Guard, book *logfile.Book, notifier Notifier, logger *logrus.Logger) *Runner {
	return &Runner{guard: g, book: book, notifier: notifier, logger: logger}
}

// Run executes the job and blocks until the run is terminal. The returned
// RunRecord is finalized exactly once; the guard is released on every path.
func (r *Runner) Run(job types.JobSpec, opts Options) *types.RunRecord {
	if opts.Mode == "" {
		opts.Mode = "cron"
	}
	rec := &types.RunRecord{
		JobName: job.Name,
		Start:   time.Now(),
		Outcome: types.OutcomeRunning,
	}
	defer func() {
		if r.notifier != nil {
			r.notifier.RunFinished(rec)
		}
	}()

	if !r.guard.TryAcquire(job.Name) {
		r.finish(rec, types.OutcomeStartError, "already running", 0, false)
		return rec
	}
	defer r.guard.Release(job.Name)

	program := strings.Fields(job.Command)
	if len(program) == 0 {
		r.finish(rec, types.OutcomeStartError, "no command configured", 0, false)
		return rec
	}
	if _, err := exec.LookPath(program[0]); err != nil {
		r.finish(rec, types.OutcomeStartError, fmt.Sprintf("command %s not executable: %v", program[0], err), 0, false)
		return rec
	}

	cmd := exec.Command("/bin/sh", "-c", job.Command)
	cmd.Env = buildEnv(opts.GlobalEnv, job.Env, opts.Mode)
	// Own process group so the timeout can take the whole tree down
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.finish(rec, types.OutcomeStartError, fmt.Sprintf("failed to open stdout pipe: %v", err), 0, false)
		return rec
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		r.finish(rec, types.OutcomeStartError, fmt.Sprintf("failed to open stderr pipe: %v", err), 0, false)
		return rec
	}

	if err := cmd.Start(); err != nil {
		r.finish(rec, types.OutcomeStartError, fmt.Sprintf("failed to start: %v", err), 0, false)
		return rec
	}
	if opts.OnStart != nil {
		opts.OnStart()
	}

	r.logger.WithFields(logrus.Fields{
		"job_name": job.Name,
		"mode":     opts.Mode,
		"pid":      cmd.Process.Pid,
	}).Info("Job started")

	chunks := make(chan types.OutputChunk, 64)
	var wg sync.WaitGroup
	wg.Add(2)
	go capture(stdout, chunks, &wg)
	go capture(stderr, chunks, &wg)
	go func() {
		wg.Wait()
		close(chunks)
	}()

	var timeoutC <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	timedOut := false
	for chunks != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			rec.Output = append(rec.Output, chunk)
			if len(rec.Output) > maxRecordChunks {
				rec.Output = rec.Output[len(rec.Output)-maxRecordChunks:]
			}
			if err := r.book.JobLine(job.Name, chunk.Time, chunk.Text); err != nil {
				r.logger.Errorf("Failed to write job output to log file: %v", err)
			}
			if opts.OnChunk != nil {
				opts.OnChunk(chunk)
			}
		case <-timeoutC:
			timeoutC = nil
			timedOut = true
			r.logger.WithField("job_name", job.Name).Warnf("Job exceeded timeout of %s, killing process tree", opts.Timeout)
			killGroup(cmd)
		}
	}

	waitErr := cmd.Wait()

	var exitErr *exec.ExitError
	switch {
	case timedOut:
		r.finish(rec, types.OutcomeTimedOut, fmt.Sprintf("timed out after %s", opts.Timeout), 0, false)
	case waitErr == nil:
		r.finish(rec, types.OutcomeSuccess, "completed successfully", 0, true)
	case errors.As(waitErr, &exitErr):
		code := exitErr.ExitCode()
		r.finish(rec, types.OutcomeFailure, fmt.Sprintf("exited with code %d", code), code, true)
	default:
		r.finish(rec, types.OutcomeFailure, waitErr.Error(), 0, false)
	}
	return rec
}

// finish sets the terminal state exactly once
func (r *Runner) finish(rec *types.RunRecord, outcome types.Outcome, message string, exitCode int, hasExit bool) {
	if rec.Outcome.Terminal() {
		return
	}
	rec.End = time.Now()
	rec.Outcome = outcome
	rec.Message = message
	rec.ExitCode = exitCode
	rec.HasExit = hasExit

	fields := logrus.Fields{
		"job_name": rec.JobName,
		"outcome":  string(outcome),
		"duration": utils.FormatDuration(rec.Duration()),
	}
	if hasExit {
		fields["exit_code"] = exitCode
	}
	if outcome == types.OutcomeSuccess {
		r.logger.WithFields(fields).Info("Job finished")
	} else {
		r.logger.WithFields(fields).Errorf("Job finished: %s", message)
	}
}

func capture(rc io.Reader, chunks chan<- types.OutputChunk, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		chunks <- types.OutputChunk{Time: time.Now(), Text: scanner.Text()}
	}
}

func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		cmd.Process.Kill()
	}
}

// buildEnv overlays the global mapping with the job-scoped one; job keys win
func buildEnv(globalEnv, jobEnv map[string]string, mode string) []string {
	env := os.Environ()
	merged := make(map[string]string, len(globalEnv)+len(jobEnv))
	for k, v := range globalEnv {
		merged[k] = v
	}
	for k, v := range jobEnv {
		merged[k] = v
	}
	for k, v := range merged {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return append(env, fmt.Sprintf("%s=%s", ExecModeEnv, mode))
}
