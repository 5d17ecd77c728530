package sweeper

import (
	"sync"
	"time"

	"github.com/litecron/litecron/internal/logfile"
	"github.com/sirupsen/logrus"
)

// Sweeper retires old log files on a timer
type Sweeper struct {
	book     *logfile.Book
	logger   *logrus.Logger
	interval time.Duration
	maxAge   int
	stop     chan struct{}
	wg       sync.WaitGroup
}

func New(book *logfile.Book, logger *logrus.Logger, interval time.Duration, maxAgeDays int) *Sweeper {
	return &Sweeper{
		book:     book,
		logger:   logger,
		interval: interval,
		maxAge:   maxAgeDays,
		stop:     make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	s.wg.Add(1)
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Sweeper) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Sweeper) sweep() {
	s.logger.Debug("Starting log retention sweep")
	deleted, errs := s.book.Sweep(s.maxAge)
	for _, err := range errs {
		s.logger.Errorf("Log sweep: %v", err)
	}
	if deleted > 0 {
		s.logger.WithFields(logrus.Fields{
			"deleted":      deleted,
			"max_age_days": s.maxAge,
		}).Info("Log retention sweep completed")
	}
}
