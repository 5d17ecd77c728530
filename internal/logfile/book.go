package logfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/litecron/litecron/pkg/utils"
)

const (
	fileDateLayout = "20060102"
	lineTimeLayout = "2006-01-02 15:04:05.000"
)

// Book manages the daily log files under a single directory: one append-only
// file per calendar day, human-readable lines.
type Book struct {
	dir string
	mu  sync.Mutex
}

// Info describes one retained log file
type Info struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	SizeHuman string    `json:"size_human"`
	Modified  time.Time `json:"-"`
}

func NewBook(dir string) (*Book, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &Book{dir: dir}, nil
}

func (b *Book) Dir() string {
	return b.dir
}

// PathFor returns the log file path for the given day
func (b *Book) PathFor(t time.Time) string {
	return filepath.Join(b.dir, t.Format(fileDateLayout)+".log")
}

// Append writes one line to today's file, synchronously. The file is opened
// per call so a crash never loses buffered lines.
func (b *Book) Append(line string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := os.OpenFile(b.PathFor(time.Now()), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to write log line: %w", err)
	}
	return nil
}

// JobLine records one chunk of job output with its capture timestamp
func (b *Book) JobLine(jobName string, at time.Time, text string) error {
	return b.Append(fmt.Sprintf("%s [JOB] %s | %s", at.Format(lineTimeLayout), jobName, text))
}

// EntryLine records one engine log entry
func (b *Book) EntryLine(level, message string) error {
	return b.Append(fmt.Sprintf("%s [%s] %s", time.Now().Format(lineTimeLayout), level, message))
}

// List returns the retained log files, newest first
func (b *Book) List() ([]Info, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read log directory: %w", err)
	}

	infos := make([]Info, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Name:      entry.Name(),
			Size:      fi.Size(),
			SizeHuman: utils.FormatSize(fi.Size()),
			Modified:  fi.ModTime(),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name > infos[j].Name
	})
	return infos, nil
}

// Tail returns the last n lines of the named log file. The name must be a
// plain file name, not a path.
func (b *Book) Tail(name string, n int) (string, error) {
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid log file name: %s", name)
	}

	data, err := os.ReadFile(filepath.Join(b.dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to read log file: %w", err)
	}

	content := strings.TrimRight(string(data), "\n")
	if n <= 0 {
		return content, nil
	}
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n"), nil
}

// TailToday returns the last n lines of the current day's file, empty when
// nothing has been logged yet today.
func (b *Book) TailToday(n int) string {
	content, err := b.Tail(filepath.Base(b.PathFor(time.Now())), n)
	if err != nil {
		return ""
	}
	return content
}
