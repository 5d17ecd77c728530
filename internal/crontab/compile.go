package crontab

import (
	"fmt"
	"strings"
	"time"

	"github.com/litecron/litecron/pkg/types"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Compiler turns the declared job list into crontab text. Each line invokes
// the runner binary with the job name as its sole argument; the runner
// re-resolves the JobSpec from the live configuration at invocation time, so
// command and env edits take effect without recompilation.
type Compiler struct {
	parser     cron.Parser
	logger     *logrus.Logger
	runnerPath string
	configPath string
}

func NewCompiler(logger *logrus.Logger, runnerPath, configPath string) *Compiler {
	return &Compiler{
		parser:     cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:     logger,
		runnerPath: runnerPath,
		configPath: configPath,
	}
}

// Validate checks a 5-field cron expression
func (c *Compiler) Validate(expr string) error {
	if len(strings.Fields(expr)) != 5 {
		return fmt.Errorf("expected 5 fields, got %d", len(strings.Fields(expr)))
	}
	if _, err := c.parser.Parse(expr); err != nil {
		return err
	}
	return nil
}

// NextRun computes the next fire time of a schedule expression
func (c *Compiler) NextRun(expr string) (time.Time, error) {
	sched, err := c.parser.Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(time.Now()), nil
}

// Compile renders the crontab for the enabled jobs. Jobs with invalid
// schedule expressions are omitted and reported; the rest of the table is
// unaffected. Output is deterministic: declaration order, byte-identical for
// an unchanged job list.
func (c *Compiler) Compile(jobs []types.JobSpec) (string, []types.JobError) {
	var b strings.Builder
	var errs []types.JobError

	b.WriteString("# Generated by litecron. Do not edit; edit config.yml instead.\n")
	b.WriteString("MAILTO=\"\"\n\n")

	for _, job := range jobs {
		if !job.Enabled {
			c.logger.WithField("job_name", job.Name).Info("Skipping disabled job")
			continue
		}
		if err := c.Validate(job.Schedule); err != nil {
			errs = append(errs, types.JobError{
				JobName: job.Name,
				Reason:  fmt.Sprintf("invalid schedule %q: %v", job.Schedule, err),
			})
			c.logger.WithFields(logrus.Fields{
				"job_name": job.Name,
				"schedule": job.Schedule,
			}).Warnf("Skipping job with invalid schedule: %v", err)
			continue
		}

		fmt.Fprintf(&b, "# Job: %s\n", job.Name)
		fmt.Fprintf(&b, "%s %s -config %s %s >> /proc/1/fd/1 2>&1\n\n",
			job.Schedule, c.runnerPath, c.configPath, shellQuote(job.Name))

		c.logger.WithFields(logrus.Fields{
			"job_name": job.Name,
			"schedule": job.Schedule,
		}).Info("Job added to crontab")
	}

	return b.String(), errs
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
