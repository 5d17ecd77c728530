package logfile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Hook tees logrus entries into the daily log file so the day's file carries
// the engine's own log lines alongside job output.
type Hook struct {
	book *Book
}

func NewHook(book *Book) *Hook {
	return &Hook{book: book}
}

func (h *Hook) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
		logrus.WarnLevel,
		logrus.InfoLevel,
	}
}

func (h *Hook) Fire(entry *logrus.Entry) error {
	message := entry.Message
	if len(entry.Data) > 0 {
		keys := make([]string, 0, len(entry.Data))
		for k := range entry.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, entry.Data[k]))
		}
		message += " " + strings.Join(parts, " ")
	}
	return h.book.EntryLine(levelTag(entry.Level), message)
}

func levelTag(level logrus.Level) string {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		return "ERR"
	case logrus.WarnLevel:
		return "WAR"
	case logrus.DebugLevel, logrus.TraceLevel:
		return "DBG"
	default:
		return "INF"
	}
}
