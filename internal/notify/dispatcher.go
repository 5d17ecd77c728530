package notify

import (
	"fmt"
	"sync"

	"github.com/litecron/litecron/internal/logfile"
	"github.com/litecron/litecron/pkg/types"
	"github.com/litecron/litecron/pkg/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Policy gates which terminal outcomes produce a notification
type Policy struct {
	OnFailure bool
	OnSuccess bool
}

// Transport delivers one notification. Delivery failure is the transport's
// own problem: the dispatcher logs it and moves on.
type Transport interface {
	Name() string
	Send(title, body string) error
}

// Dispatcher consumes completed run outcomes and fans them out to the
// configured transports per policy.
type Dispatcher struct {
	policy     Policy
	transports []Transport
	logger     *logrus.Logger

	book      *logfile.Book
	tailLines int
}

func NewDispatcher(policy Policy, transports []Transport, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{policy: policy, transports: transports, logger: logger}
}

// WithLogTail appends the last n lines of the current day's log file to every
// notification body.
func (d *Dispatcher) WithLogTail(book *logfile.Book, lines int) *Dispatcher {
	d.book = book
	d.tailLines = lines
	return d
}

// RunFinished implements the runner's notifier hook
func (d *Dispatcher) RunFinished(rec *types.RunRecord) {
	if !rec.Outcome.Terminal() {
		return
	}
	switch {
	case rec.Outcome == types.OutcomeSuccess && d.policy.OnSuccess:
	case rec.Outcome.Failed() && d.policy.OnFailure:
	default:
		return
	}

	title := d.titleFor(rec)
	body := fmt.Sprintf("%s, took %s", rec.Message, utils.FormatDuration(rec.Duration()))
	if rec.HasExit {
		body = fmt.Sprintf("%s (exit code %d)", body, rec.ExitCode)
	}
	d.Send(title, body)
}

func (d *Dispatcher) titleFor(rec *types.RunRecord) string {
	name := cases.Title(language.English).String(rec.JobName)
	switch rec.Outcome {
	case types.OutcomeSuccess:
		return fmt.Sprintf("✅ %s succeeded", name)
	case types.OutcomeTimedOut:
		return fmt.Sprintf("⏰ %s timed out", name)
	case types.OutcomeStartError:
		return fmt.Sprintf("❌ %s failed to start", name)
	default:
		return fmt.Sprintf("❌ %s failed", name)
	}
}

// Send fans the notification out to every transport concurrently and waits
// for all of them. Transport errors are logged, never escalated.
func (d *Dispatcher) Send(title, body string) {
	if len(d.transports) == 0 {
		d.logger.Debug("No notification transports configured")
		return
	}
	if d.book != nil && d.tailLines > 0 {
		if tail := d.book.TailToday(d.tailLines); tail != "" {
			body = fmt.Sprintf("%s\n\nLast %d log lines:\n%s", body, d.tailLines, tail)
		}
	}

	var wg sync.WaitGroup
	for _, transport := range d.transports {
		wg.Add(1)
		go func(t Transport) {
			defer wg.Done()
			if err := t.Send(title, body); err != nil {
				d.logger.WithFields(logrus.Fields{
					"transport": t.Name(),
					"title":     title,
				}).Errorf("Notification delivery failed: %v", err)
				return
			}
			d.logger.WithField("transport", t.Name()).Info("Notification sent")
		}(transport)
	}
	wg.Wait()
}
