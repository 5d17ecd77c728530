package runner

import (
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/litecron/litecron/internal/guard"
	"github.com/litecron/litecron/internal/logfile"
	"github.com/litecron/litecron/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu      sync.Mutex
	records []*types.RunRecord
}

func (n *recordingNotifier) RunFinished(rec *types.RunRecord) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, rec)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.records)
}

func newTestRunner(t *testing.T, notifier Notifier) *Runner {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	g, err := guard.New(t.TempDir())
	require.NoError(t, err)
	book, err := logfile.NewBook(t.TempDir())
	require.NoError(t, err)

	return New(g, book, notifier, logger)
}

func TestRunSuccess(t *testing.T) {
	notifier := &recordingNotifier{}
	r := newTestRunner(t, notifier)

	rec := r.Run(types.JobSpec{Name: "ok", Command: "echo ok", Enabled: true}, Options{Mode: "cli"})

	assert.Equal(t, types.OutcomeSuccess, rec.Outcome)
	assert.True(t, rec.HasExit)
	assert.Equal(t, 0, rec.ExitCode)
	assert.False(t, rec.End.IsZero())
	require.Len(t, rec.Output, 1)
	assert.Equal(t, "ok", rec.Output[0].Text)
	assert.Equal(t, 1, notifier.count())
}

func TestRunFailure(t *testing.T) {
	r := newTestRunner(t, nil)

	rec := r.Run(types.JobSpec{Name: "fail", Command: "sh -c 'echo boom; exit 3'", Enabled: true}, Options{})

	assert.Equal(t, types.OutcomeFailure, rec.Outcome)
	assert.True(t, rec.HasExit)
	assert.Equal(t, 3, rec.ExitCode)
	require.Len(t, rec.Output, 1)
	assert.Equal(t, "boom", rec.Output[0].Text)
}

func TestRunTimeout(t *testing.T) {
	r := newTestRunner(t, nil)

	start := time.Now()
	rec := r.Run(types.JobSpec{Name: "slow", Command: "sleep 10", Enabled: true},
		Options{Timeout: 200 * time.Millisecond})

	assert.Equal(t, types.OutcomeTimedOut, rec.Outcome)
	assert.False(t, rec.HasExit)
	assert.Less(t, time.Since(start), 5*time.Second, "process tree should be killed, not awaited")
}

func TestRunStartErrorMissingCommand(t *testing.T) {
	r := newTestRunner(t, nil)

	rec := r.Run(types.JobSpec{Name: "ghost", Command: "/no/such/binary --flag", Enabled: true}, Options{})
	assert.Equal(t, types.OutcomeStartError, rec.Outcome)
	assert.False(t, rec.HasExit)

	rec = r.Run(types.JobSpec{Name: "empty", Command: "   ", Enabled: true}, Options{})
	assert.Equal(t, types.OutcomeStartError, rec.Outcome)
}

func TestRunRejectsConcurrentSameJob(t *testing.T) {
	notifier := &recordingNotifier{}
	r := newTestRunner(t, notifier)

	started := make(chan struct{})
	done := make(chan *types.RunRecord, 1)
	go func() {
		done <- r.Run(types.JobSpec{Name: "long", Command: "sleep 2", Enabled: true},
			Options{OnStart: func() { close(started) }})
	}()

	<-started
	second := r.Run(types.JobSpec{Name: "long", Command: "sleep 2", Enabled: true}, Options{})
	assert.Equal(t, types.OutcomeStartError, second.Outcome)
	assert.Equal(t, "already running", second.Message)

	first := <-done
	assert.Equal(t, types.OutcomeSuccess, first.Outcome)

	// Guard released after the first run: a new trigger succeeds
	third := r.Run(types.JobSpec{Name: "long", Command: "echo again", Enabled: true}, Options{})
	assert.Equal(t, types.OutcomeSuccess, third.Outcome)

	assert.Equal(t, 3, notifier.count())
}

func TestRunInterleavesStreamsInArrivalOrder(t *testing.T) {
	r := newTestRunner(t, nil)

	rec := r.Run(types.JobSpec{
		Name:    "mixed",
		Command: "sh -c 'echo out1; echo err1 >&2; sleep 0.1; echo out2'",
		Enabled: true,
	}, Options{})

	require.Equal(t, types.OutcomeSuccess, rec.Outcome)
	require.Len(t, rec.Output, 3)
	// stdout and stderr interleave; the chunk after the sleep is always last
	assert.ElementsMatch(t, []string{"out1", "err1"}, []string{rec.Output[0].Text, rec.Output[1].Text})
	assert.Equal(t, "out2", rec.Output[2].Text)
}

func TestRunEnvOverlay(t *testing.T) {
	r := newTestRunner(t, nil)

	rec := r.Run(types.JobSpec{
		Name:    "env",
		Command: `sh -c 'echo "$GREETING $TARGET $LITECRON_EXEC_MODE"'`,
		Enabled: true,
		Env:     map[string]string{"TARGET": "job"},
	}, Options{
		GlobalEnv: map[string]string{"GREETING": "hello", "TARGET": "global"},
		Mode:      "cli",
	})

	require.Equal(t, types.OutcomeSuccess, rec.Outcome)
	require.Len(t, rec.Output, 1)
	// Job-scoped env overrides the global key of the same name
	assert.Equal(t, "hello job cli", rec.Output[0].Text)
}

func TestRunChunksReachObserver(t *testing.T) {
	r := newTestRunner(t, nil)

	var mu sync.Mutex
	var seen []string
	rec := r.Run(types.JobSpec{Name: "obs", Command: "sh -c 'echo a; echo b'", Enabled: true}, Options{
		OnChunk: func(chunk types.OutputChunk) {
			mu.Lock()
			seen = append(seen, chunk.Text)
			mu.Unlock()
		},
	})

	require.Equal(t, types.OutcomeSuccess, rec.Outcome)
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestBuildEnvJobOverridesGlobal(t *testing.T) {
	env := buildEnv(map[string]string{"A": "global", "B": "keep"}, map[string]string{"A": "job"}, "cron")

	joined := strings.Join(env, "\n")
	assert.Contains(t, joined, "A=job")
	assert.Contains(t, joined, "B=keep")
	assert.Contains(t, joined, "LITECRON_EXEC_MODE=cron")
	assert.NotContains(t, joined, "A=global")
}
