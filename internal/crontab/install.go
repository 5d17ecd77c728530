package crontab

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Installer swaps the generated text in as the active OS crontab. The text is
// written to a temporary file first and handed to crontab(1), which replaces
// the active table in one step; a crash mid-write never leaves a partial
// table installed. Install holds a lock so concurrent reloads serialize with
// last-writer-wins semantics.
type Installer struct {
	logger *logrus.Logger
	mu     sync.Mutex
}

func NewInstaller(logger *logrus.Logger) *Installer {
	return &Installer{logger: logger}
}

func (i *Installer) Install(text string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	tmp, err := os.CreateTemp("", "litecron-*.crontab")
	if err != nil {
		return fmt.Errorf("failed to create temp crontab: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp crontab: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp crontab: %w", err)
	}

	cmd := exec.Command("crontab", tmp.Name())
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to install crontab: %w, output: %s", err, string(output))
	}

	i.logger.Info("Crontab installed")
	return nil
}

// Current returns the active crontab text, empty when no table is installed
func (i *Installer) Current() (string, error) {
	cmd := exec.Command("crontab", "-l")
	output, err := cmd.CombinedOutput()
	if err != nil {
		// crontab -l exits 1 when the user has no table yet
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return "", nil
		}
		return "", fmt.Errorf("failed to read crontab: %w, output: %s", err, string(output))
	}
	return strings.TrimRight(string(output), "\n") + "\n", nil
}
