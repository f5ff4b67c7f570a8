package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doorlink-io/doorlink-core/internal/door"
	"github.com/doorlink-io/doorlink-core/internal/infrastructure/logging"
)

// Service issues commands to door devices: it records a ledger row and
// publishes the corresponding MQTT message as one operation.
//
// Lock and unlock are mutually exclusive per door: while one is pending,
// issuing another returns ErrCommandPending. Sync commands are not
// correlated against state reports and are never blocked.
type Service struct {
	commands  Repository
	doors     door.Repository
	publisher *Publisher
	logger    *logging.Logger
}

// NewService creates a command service.
func NewService(commands Repository, doors door.Repository, publisher *Publisher, logger *logging.Logger) *Service {
	return &Service{
		commands:  commands,
		doors:     doors,
		publisher: publisher,
		logger:    logger.With("component", "command"),
	}
}

// Lock issues a lock command to the door.
func (s *Service) Lock(ctx context.Context, doorID string) (*Command, error) {
	return s.issueControl(ctx, doorID, KindLock, s.publisher.Lock)
}

// Unlock issues an unlock command to the door.
func (s *Service) Unlock(ctx context.Context, doorID string) (*Command, error) {
	return s.issueControl(ctx, doorID, KindUnlock, s.publisher.Unlock)
}

// Sync asks the door to report its full state and stamps the door's
// last-sync-requested time.
func (s *Service) Sync(ctx context.Context, doorID string) (*Command, error) {
	d, err := s.doors.GetByID(ctx, doorID)
	if err != nil {
		return nil, err
	}

	cmd := &Command{DoorID: doorID, Kind: KindSync}
	if err := s.commands.Create(ctx, cmd); err != nil {
		return nil, err
	}

	if err := s.publisher.Sync(d.TopicPrefix); err != nil {
		s.failUnpublished(ctx, cmd)
		return nil, fmt.Errorf("%w: %s: %w", ErrPublishFailed, KindSync, err)
	}

	if err := s.doors.MarkSyncRequested(ctx, doorID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to stamp sync request time", "door_id", doorID, "error", err)
	}

	s.logger.Info("sync command issued", "door_id", doorID, "command_id", cmd.ID)
	return cmd, nil
}

// RequestPasscodes asks the door to report its passcode list.
// List requests are not ledger-tracked; the report itself is the answer.
func (s *Service) RequestPasscodes(ctx context.Context, doorID string) error {
	d, err := s.doors.GetByID(ctx, doorID)
	if err != nil {
		return err
	}
	return s.publisher.RequestPasscodes(d.TopicPrefix)
}

// RequestICCards asks the door to report its card list.
func (s *Service) RequestICCards(ctx context.Context, doorID string) error {
	d, err := s.doors.GetByID(ctx, doorID)
	if err != nil {
		return err
	}
	return s.publisher.RequestICCards(d.TopicPrefix)
}

// issueControl records a pending lock/unlock row and publishes it.
func (s *Service) issueControl(ctx context.Context, doorID string, kind Kind, publish func(prefix string) error) (*Command, error) {
	d, err := s.doors.GetByID(ctx, doorID)
	if err != nil {
		return nil, err
	}

	// Single outstanding lock/unlock per door
	if _, err := s.commands.LatestPendingLockUnlock(ctx, doorID); err == nil {
		return nil, ErrCommandPending
	} else if !errors.Is(err, ErrCommandNotFound) {
		return nil, err
	}

	cmd := &Command{DoorID: doorID, Kind: kind}
	if err := s.commands.Create(ctx, cmd); err != nil {
		return nil, err
	}

	if err := publish(d.TopicPrefix); err != nil {
		s.failUnpublished(ctx, cmd)
		return nil, fmt.Errorf("%w: %s: %w", ErrPublishFailed, kind, err)
	}

	s.logger.Info("control command issued",
		"door_id", doorID, "kind", string(kind), "command_id", cmd.ID)
	return cmd, nil
}

// failUnpublished resolves a ledger row whose publish never reached the
// broker, so it does not linger as pending until the sweeper.
func (s *Service) failUnpublished(ctx context.Context, cmd *Command) {
	if err := s.commands.Resolve(ctx, cmd.ID, StatusFailed, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to mark unpublished command failed",
			"command_id", cmd.ID, "error", err)
	}
}
