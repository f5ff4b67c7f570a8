package command

import (
	"context"
	"fmt"
	"time"

	"github.com/doorlink-io/doorlink-core/internal/infrastructure/logging"
	"github.com/doorlink-io/doorlink-core/internal/notify"
)

const (
	// sweepInterval is how often the sweeper scans for stale commands.
	sweepInterval = 15 * time.Second

	// ackTimeout is how long a command may stay pending before it is
	// failed. Devices normally answer within a couple of seconds; a
	// command unanswered after this long means the device is offline,
	// the message was lost, or the lock is jammed.
	ackTimeout = 30 * time.Second
)

// Sweeper periodically fails pending commands that were never answered
// by a device report. It is the only mechanism that resolves commands
// for doors that have gone silent.
type Sweeper struct {
	commands Repository
	notifier notify.Notifier
	logger   *logging.Logger

	interval time.Duration
	timeout  time.Duration
}

// NewSweeper creates a sweeper with the default interval and timeout.
func NewSweeper(commands Repository, notifier notify.Notifier, logger *logging.Logger) *Sweeper {
	return &Sweeper{
		commands: commands,
		notifier: notifier,
		logger:   logger.With("component", "sweeper"),
		interval: sweepInterval,
		timeout:  ackTimeout,
	}
}

// Run executes sweep passes until the context is cancelled. Passes run
// sequentially on this goroutine, so a slow pass delays the next tick
// rather than overlapping it.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("command sweeper started",
		"interval", s.interval.String(), "timeout", s.timeout.String())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("command sweeper stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep pass failed", "error", err)
			}
		}
	}
}

// Sweep fails every pending command older than the timeout. It performs
// no other mutation.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.timeout)

	stale, err := s.commands.ListStalePending(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list stale commands: %w", err)
	}

	for _, sc := range stale {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.commands.Resolve(ctx, sc.ID, StatusFailed, time.Now().UTC()); err != nil {
			// Already resolved by a racing state report; not a failure
			s.logger.Debug("stale command no longer pending", "command_id", sc.ID)
			continue
		}

		s.logger.Warn("command timed out",
			"command_id", sc.ID, "door_id", sc.DoorID,
			"kind", string(sc.Kind), "sent_at", sc.SentAt.Format(time.RFC3339))

		if sc.OwnerID != "" {
			detail := fmt.Sprintf("%s command for %s received no response from the lock", sc.Kind, sc.DoorName)
			s.notifier.Notify(sc.OwnerID, notify.EventCommandExpired, detail)
		}
	}

	return nil
}
