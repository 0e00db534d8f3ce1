// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package schedule runs periodic backups on a cron expression and prunes old
// artifact files after each successful run.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/riskledger/riskledger/internal/backup"
	"github.com/riskledger/riskledger/internal/logging"
	"github.com/robfig/cron/v3"
)

// ErrAlreadyRunning is returned by Start on a running scheduler.
var ErrAlreadyRunning = errors.New("scheduler is already running")

// Runner is the part of backup.Service the scheduler drives.
type Runner interface {
	CreateBackup(ctx context.Context, includeAuditLog, includeUserSessions bool) (*backup.Artifact, error)
	SaveBackupToFile(art *backup.Artifact, filename string) (string, error)
	PruneBackups(keep int) ([]string, error)
}

// Config controls what a scheduled run does.
type Config struct {
	// Spec is a standard 5-field cron expression or a descriptor such as
	// "@daily" or "@every 6h".
	Spec            string
	IncludeAuditLog bool
	// Keep is the number of artifact files retained; 0 keeps everything.
	Keep int
}

// Run is the outcome of one backup run.
type Run struct {
	StartedAt time.Time
	Duration  time.Duration
	Path      string
	Records   int
	Pruned    []string
	Err       error
}

// Scheduler owns a cron instance with a single backup job.
type Scheduler struct {
	runner Runner
	cfg    Config
	cron   *cron.Cron

	mu      sync.Mutex
	running bool
	last    *Run
	runs    int
}

// Validate reports whether spec is a usable cron expression.
func Validate(spec string) error {
	if spec == "" {
		return fmt.Errorf("empty schedule")
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

// New validates cfg and returns a stopped scheduler.
func New(r Runner, cfg Config) (*Scheduler, error) {
	if err := Validate(cfg.Spec); err != nil {
		return nil, err
	}
	cl := cronLogger{}
	return &Scheduler{
		runner: r,
		cfg:    cfg,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}, nil
}

// Start schedules the backup job and starts the cron goroutine.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	if _, err := s.cron.AddFunc(s.cfg.Spec, func() {
		_, _ = s.RunOnce(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule backup job: %w", err)
	}
	s.cron.Start()
	s.running = true
	logging.Infof("schedule: backups scheduled with %q (keep=%d)", s.cfg.Spec, s.cfg.Keep)
	return nil
}

// Stop halts the scheduler and waits for an in-flight run, or until ctx is
// done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		logging.Infof("schedule: stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("schedule: stop: %w", ctx.Err())
	}
}

// Next returns the next activation time, or the zero time when stopped.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunOnce creates a backup, saves it and prunes old files. A pruning failure
// is logged but does not fail the run since the new artifact is on disk.
func (s *Scheduler) RunOnce(ctx context.Context) (Run, error) {
	run := Run{StartedAt: time.Now()}
	defer func() {
		run.Duration = time.Since(run.StartedAt)
		s.record(run)
	}()

	art, err := s.runner.CreateBackup(ctx, s.cfg.IncludeAuditLog, false)
	if err != nil {
		run.Err = fmt.Errorf("create backup: %w", err)
		logging.Errorf("schedule: %v", run.Err)
		return run, run.Err
	}
	if art.Statistics != nil {
		run.Records = art.Statistics.TotalRecords
		for name, msg := range art.Statistics.Errors {
			logging.Warnf("schedule: %s not backed up: %s", name, msg)
		}
	}
	path, err := s.runner.SaveBackupToFile(art, "")
	if err != nil {
		run.Err = fmt.Errorf("save backup: %w", err)
		logging.Errorf("schedule: %v", run.Err)
		return run, run.Err
	}
	run.Path = path

	if s.cfg.Keep > 0 {
		pruned, err := s.runner.PruneBackups(s.cfg.Keep)
		if err != nil {
			logging.Warnf("schedule: prune: %v", err)
		}
		run.Pruned = pruned
	}
	logging.Infof("schedule: wrote %s (%d records, %d pruned)", run.Path, run.Records, len(run.Pruned))
	return run, nil
}

func (s *Scheduler) record(r Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &r
	s.runs++
}

// Last returns the most recent run and the total number of runs.
func (s *Scheduler) Last() (*Run, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil, s.runs
	}
	r := *s.last
	return &r, s.runs
}

// cronLogger routes cron's logr-style messages to the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logging.L.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logging.L.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
