package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dimiro1/banner"
	"github.com/joho/godotenv"
	"github.com/litecron/litecron/internal/api"
	"github.com/litecron/litecron/internal/config"
	"github.com/litecron/litecron/internal/crontab"
	"github.com/litecron/litecron/internal/guard"
	"github.com/litecron/litecron/internal/logfile"
	"github.com/litecron/litecron/internal/notify"
	"github.com/litecron/litecron/internal/runner"
	"github.com/litecron/litecron/internal/stream"
	"github.com/litecron/litecron/internal/sweeper"
	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
)

const bannerText = `
{{ .Title "LiteCron" "" 0 }}
{{ .AnsiBackground.BrightBlue }}{{ .AnsiColor.White }}
{{ .AnsiReset }}
`

func main() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load(".env.local"); err != nil {
			fmt.Printf("No .env or .env.local file found. Using environment variables.\n")
		}
	}

	banner.Init(colorable.NewColorableStdout(), true, true, strings.NewReader(bannerText))

	configPath := flag.String("config", "config.yml", "path to config file")
	runnerPath := flag.String("runner", "/usr/local/bin/litecron-runner", "path to the runner binary crontab entries invoke")
	flag.Parse()

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

	execGuard, err := guard.New(cfg.Logs.Dir + "/.locks")
	if err != nil {
		logger.Fatalf("Failed to prepare lock directory: %v", err)
	}

	dispatcher := notify.NewDispatcher(
		notify.Policy{OnFailure: cfg.Notify.OnFailure, OnSuccess: cfg.Notify.OnSuccess},
		notify.Transports(cfg.Notify),
		logger,
	).WithLogTail(book, cfg.Notify.LogLines)

	jobRunner := runner.New(execGuard, book, dispatcher, logger)
	publisher := stream.New(store, jobRunner, logger)

	compiler := crontab.NewCompiler(logger, *runnerPath, *configPath)
	installer := crontab.NewInstaller(logger)

	handler := api.NewHandler(store, compiler, installer, publisher, book, logger)

	if scheduled, compileErrs, err := handler.Recompile(); err != nil {
		logger.Fatalf("Failed to install crontab: %v", err)
	} else {
		for _, jobErr := range compileErrs {
			logger.WithField("job_name", jobErr.JobName).Warnf("Job not scheduled: %s", jobErr.Reason)
		}
		logger.Infof("Crontab compiled, %d jobs scheduled", scheduled)
	}

	watcher, err := config.NewWatcher(*configPath, 2*time.Second, logger, func() {
		if _, compileErrs, err := handler.Recompile(); err != nil {
			logger.Errorf("Failed to recompile crontab: %v", err)
		} else {
			for _, jobErr := range compileErrs {
				logger.WithField("job_name", jobErr.JobName).Warnf("Job not scheduled: %s", jobErr.Reason)
			}
		}
	})
	if err != nil {
		logger.Warnf("Config watcher disabled: %v", err)
	}

	logSweeper := sweeper.New(book, logger, 12*time.Hour, cfg.Logs.RetentionDays)
	go logSweeper.Start()

	router := api.NewRouter(handler, logger)
	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: run streams stay open until the terminal frame
		IdleTimeout: 60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	logger.Infof("Server started on port %s - Press Ctrl+C to stop.", cfg.Server.Port)

	<-stop
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if watcher != nil {
		watcher.Stop()
	}
	logSweeper.Stop()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}

	logger.Info("Server stopped")
}
