package logfile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Sweep deletes log files whose modification time is older than maxAgeDays.
// The file for the current day is never deleted. Individual delete failures
// are collected and reported, not fatal to the sweep.
func (b *Book) Sweep(maxAgeDays int) (int, []error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return 0, []error{fmt.Errorf("failed to read log directory: %w", err)}
	}

	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	today := filepath.Base(b.PathFor(time.Now()))

	deleted := 0
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}
		if entry.Name() == today {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to stat %s: %w", entry.Name(), err))
			continue
		}
		if !fi.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(b.dir, entry.Name())); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", entry.Name(), err))
			continue
		}
		deleted++
	}
	return deleted, errs
}
