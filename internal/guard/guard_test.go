package guard

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	g, err := New(t.TempDir())
	require.NoError(t, err)

	assert.True(t, g.TryAcquire("checkin"))
	assert.False(t, g.TryAcquire("checkin"))
	assert.True(t, g.Held("checkin"))

	g.Release("checkin")
	assert.False(t, g.Held("checkin"))
	assert.True(t, g.TryAcquire("checkin"))
}

func TestAcquireIsCaseInsensitive(t *testing.T) {
	g, err := New(t.TempDir())
	require.NoError(t, err)

	assert.True(t, g.TryAcquire("Checkin"))
	assert.False(t, g.TryAcquire("checkin"))
}

func TestReleaseIsIdempotent(t *testing.T) {
	g, err := New(t.TempDir())
	require.NoError(t, err)

	g.Release("never-held")

	assert.True(t, g.TryAcquire("job"))
	g.Release("job")
	g.Release("job")
	assert.True(t, g.TryAcquire("job"))
}

func TestIndependentJobsDoNotContend(t *testing.T) {
	g, err := New(t.TempDir())
	require.NoError(t, err)

	assert.True(t, g.TryAcquire("a"))
	assert.True(t, g.TryAcquire("b"))
}

func TestCrossProcessLockFile(t *testing.T) {
	dir := t.TempDir()

	first, err := New(dir)
	require.NoError(t, err)
	second, err := New(dir)
	require.NoError(t, err)

	// Separate guard instances sharing a lock directory model the cron
	// runner process and the server process.
	assert.True(t, first.TryAcquire("job"))
	assert.False(t, second.TryAcquire("job"))
	assert.True(t, second.Held("job"))

	first.Release("job")
	assert.True(t, second.TryAcquire("job"))
}

func TestStaleLockFromDeadProcessIsReclaimed(t *testing.T) {
	dir := t.TempDir()
	g, err := New(dir)
	require.NoError(t, err)

	// A pid far beyond pid_max cannot belong to a live process
	require.NoError(t, os.WriteFile(filepath.Join(dir, "job.lock"), []byte("999999999\n"), 0o644))

	assert.True(t, g.TryAcquire("job"))
}

func TestConcurrentAcquireAdmitsExactlyOne(t *testing.T) {
	g, err := New(t.TempDir())
	require.NoError(t, err)

	const workers = 32
	var wg sync.WaitGroup
	results := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- g.TryAcquire("contested")
		}()
	}
	wg.Wait()
	close(results)

	won := 0
	for ok := range results {
		if ok {
			won++
		}
	}
	assert.Equal(t, 1, won, fmt.Sprintf("expected exactly one winner, got %d", won))
}
