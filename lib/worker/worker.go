// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/wasteland/lib/clock"
	"github.com/bureau-foundation/wasteland/lib/schema"
)

// Defaults for zero Config fields.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultMinWork      = 2 * time.Second
	DefaultMaxWork      = 5 * time.Second
)

// Client is the subset of client.Client the worker drives.
type Client interface {
	PublicKey() string
	FindReady(ctx context.Context, authors ...string) ([]schema.Task, error)
	ClaimTask(ctx context.Context, task schema.Task) (schema.Task, error)
	CloseTask(ctx context.Context, task schema.Task) (schema.Task, error)
	SendPolecatDone(ctx context.Context, recipient, taskID, notes string) (schema.Message, error)
}

// Config configures a Worker. Client is required.
type Config struct {
	// Name appears in logs and completion notes.
	Name   string
	Client Client

	// Authors scopes the ready search as in client.FindReady: nil for
	// the worker's own tasks, "" for every author.
	Authors []string

	PollInterval time.Duration
	MinWork      time.Duration
	MaxWork      time.Duration

	// Notify, when set, receives a POLECAT_DONE for each closed task.
	Notify string

	// Work replaces the simulated delay. A returned error leaves the
	// task in progress.
	Work func(ctx context.Context, task schema.Task) error

	Clock  clock.Clock
	Logger *slog.Logger

	// Rand draws simulated work durations. Defaults to a randomly
	// seeded source.
	Rand *rand.Rand
}

// Worker processes ready tasks one at a time.
type Worker struct {
	config Config
	clock  clock.Clock
	logger *slog.Logger
	rand   *rand.Rand

	completed atomic.Uint64
	failed    atomic.Uint64
}

// New validates config and returns a Worker.
func New(config Config) (*Worker, error) {
	if config.Client == nil {
		return nil, errors.New("worker: client is required")
	}
	if config.Name == "" {
		config.Name = "worker"
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.MinWork == 0 && config.MaxWork == 0 {
		config.MinWork, config.MaxWork = DefaultMinWork, DefaultMaxWork
	}
	if config.MinWork < 0 || config.MaxWork < config.MinWork {
		return nil, fmt.Errorf("worker: work duration bounds [%v, %v] are invalid", config.MinWork, config.MaxWork)
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Rand == nil {
		config.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Worker{
		config: config,
		clock:  config.Clock,
		logger: config.Logger.With("worker", config.Name),
		rand:   config.Rand,
	}, nil
}

// Completed returns the number of tasks closed so far.
func (w *Worker) Completed() uint64 { return w.completed.Load() }

// Failed returns the number of tasks abandoned after being claimed.
func (w *Worker) Failed() uint64 { return w.failed.Load() }

// Run polls every PollInterval until ctx is done, then returns nil. A
// poll that fails is logged and the loop continues.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started",
		"public_key", w.config.Client.PublicKey(),
		"poll_interval", w.config.PollInterval,
	)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped", "completed", w.Completed(), "failed", w.Failed())
			return nil
		case <-w.clock.After(w.config.PollInterval):
		}

		if _, err := w.Poll(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("poll failed", "error", err)
		}
	}
}

// Poll processes at most one ready task and reports whether it found
// one.
func (w *Worker) Poll(ctx context.Context) (bool, error) {
	ready, err := w.config.Client.FindReady(ctx, w.config.Authors...)
	if err != nil {
		return false, fmt.Errorf("worker: finding ready tasks: %w", err)
	}
	for _, task := range ready {
		if task.Status == schema.StatusOpen {
			return true, w.process(ctx, task)
		}
	}
	w.logger.Debug("no open ready tasks", "ready", len(ready))
	return false, nil
}

func (w *Worker) process(ctx context.Context, task schema.Task) error {
	logger := w.logger.With("task_id", task.ID, "title", task.Title)

	claimed, err := w.config.Client.ClaimTask(ctx, task)
	if err != nil {
		return fmt.Errorf("worker: claiming %s: %w", task.ID, err)
	}
	logger.Info("task claimed", "event_id", claimed.EventID)

	if err := w.work(ctx, claimed, logger); err != nil {
		w.failed.Add(1)
		return fmt.Errorf("worker: working on %s: %w", task.ID, err)
	}

	closed, err := w.config.Client.CloseTask(ctx, claimed)
	if err != nil {
		w.failed.Add(1)
		return fmt.Errorf("worker: closing %s: %w", task.ID, err)
	}
	w.completed.Add(1)
	logger.Info("task completed", "event_id", closed.EventID)

	if w.config.Notify != "" {
		notes := fmt.Sprintf("Task %q completed by %s", task.Title, w.config.Name)
		if _, err := w.config.Client.SendPolecatDone(ctx, w.config.Notify, task.ID, notes); err != nil {
			logger.Warn("POLECAT_DONE not sent", "error", err)
		}
	}
	return nil
}

func (w *Worker) work(ctx context.Context, task schema.Task, logger *slog.Logger) error {
	if w.config.Work != nil {
		return w.config.Work(ctx, task)
	}
	duration := w.duration()
	logger.Info("working", "duration", duration)
	select {
	case <-w.clock.After(duration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// duration draws a simulated work time in [MinWork, MaxWork].
func (w *Worker) duration() time.Duration {
	spread := w.config.MaxWork - w.config.MinWork
	if spread <= 0 {
		return w.config.MinWork
	}
	return w.config.MinWork + time.Duration(w.rand.Int64N(int64(spread)+1))
}
