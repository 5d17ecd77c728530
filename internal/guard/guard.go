package guard

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
)

// Guard enforces at-most-one concurrent execution per job name. Runs started
// by the cron table and manual runs from the dashboard live in different
// processes, so the guard is backed by lock files in addition to the
// in-process held set: a lock file holds the owning pid and a lock whose
// owner is no longer alive is treated as free.
type Guard struct {
	dir  string
	mu   sync.Mutex
	held map[string]struct{}
}

func New(dir string) (*Guard, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return &Guard{dir: dir, held: make(map[string]struct{})}, nil
}

// TryAcquire claims the job name. Returns false when another run already
// holds it; callers must not queue, they reject.
func (g *Guard) TryAcquire(name string) bool {
	key := strings.ToLower(name)

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[key]; ok {
		return false
	}
	if !g.claimFile(key) {
		return false
	}
	g.held[key] = struct{}{}
	return true
}

// Release frees the job name. Safe to call repeatedly and on names never
// acquired.
func (g *Guard) Release(name string) {
	key := strings.ToLower(name)

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[key]; !ok {
		return
	}
	delete(g.held, key)
	os.Remove(g.lockPath(key))
}

// Held reports whether the job name is currently claimed by any process
func (g *Guard) Held(name string) bool {
	key := strings.ToLower(name)

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[key]; ok {
		return true
	}
	pid, err := g.readOwner(key)
	if err != nil {
		return false
	}
	return pidAlive(pid)
}

func (g *Guard) lockPath(key string) string {
	return filepath.Join(g.dir, key+".lock")
}

func (g *Guard) claimFile(key string) bool {
	path := g.lockPath(key)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err == nil {
		fmt.Fprintf(f, "%d\n", os.Getpid())
		f.Close()
		return true
	}
	if !os.IsExist(err) {
		return false
	}

	// Lock file exists: free it only if its owner died without releasing.
	pid, err := g.readOwner(key)
	if err == nil && pidAlive(pid) {
		return false
	}
	os.Remove(path)

	f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return false
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()
	return true
}

func (g *Guard) readOwner(key string) (int, error) {
	data, err := os.ReadFile(g.lockPath(key))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}
