// Command litecron-runner is the entry point the generated crontab lines
// invoke: it re-resolves the named job from the live configuration, executes
// it and exits with the classified status. Manual command-line runs use the
// same binary with -mode cli.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/litecron/litecron/internal/config"
	"github.com/litecron/litecron/internal/guard"
	"github.com/litecron/litecron/internal/logfile"
	"github.com/litecron/litecron/internal/notify"
	"github.com/litecron/litecron/internal/runner"
	"github.com/litecron/litecron/pkg/types"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to config file")
	mode := flag.String("mode", "cron", "execution mode: cron or cli")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: litecron-runner [-config path] [-mode cron|cli] <job-name>")
		os.Exit(2)
	}
	jobName := flag.Arg(0)

	godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05-07:00",
	})

	store := config.NewStore(*configPath, logger)
	cfg, err := store.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	book, err := logfile.NewBook(cfg.Logs.Dir)
	if err != nil {
		logger.Fatalf("Failed to prepare log directory: %v", err)
	}
	logger.AddHook(logfile.NewHook(book))

	job, ok := cfg.Job(jobName)
	if !ok {
		logger.Fatalf("Task %s not found in config", jobName)
	}
	if !job.Enabled {
		// A stale crontab can fire a job disabled since the last compile
		logger.Warnf("Task %s is disabled, skipping", jobName)
		return
	}

	timeout, err := cfg.Timeout()
	if err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}

	execGuard, err := guard.New(cfg.Logs.Dir + "/.locks")
	if err != nil {
		logger.Fatalf("Failed to prepare lock directory: %v", err)
	}

	dispatcher := notify.NewDispatcher(
		notify.Policy{OnFailure: cfg.Notify.OnFailure, OnSuccess: cfg.Notify.OnSuccess},
		notify.Transports(cfg.Notify),
		logger,
	).WithLogTail(book, cfg.Notify.LogLines)

	rec := runner.New(execGuard, book, dispatcher, logger).Run(*job, runner.Options{
		GlobalEnv: cfg.GlobalEnv,
		Timeout:   timeout,
		Mode:      *mode,
	})

	os.Exit(exitCode(rec))
}

func exitCode(rec *types.RunRecord) int {
	switch rec.Outcome {
	case types.OutcomeSuccess:
		return 0
	case types.OutcomeTimedOut:
		return 124
	case types.OutcomeStartError:
		if rec.Message == "already running" {
			// Overlap with an in-flight run is rejected, not an error
			return 0
		}
		return 127
	default:
		if rec.HasExit && rec.ExitCode != 0 {
			return rec.ExitCode
		}
		return 1
	}
}
