package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/doorlink-io/doorlink-core/internal/notify"
)

// captureNotifier records notifications delivered during a sweep.
type captureNotifier struct {
	mu     sync.Mutex
	events []capturedEvent
}

type capturedEvent struct {
	ownerID string
	event   string
	detail  string
}

func (n *captureNotifier) Notify(ownerID, event, detail string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, capturedEvent{ownerID, event, detail})
}

func TestSweepTimeout(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	notifier := &captureNotifier{}
	sweeper := NewSweeper(repo, notifier, testLogger())
	ctx := context.Background()

	insertTestDoor(t, db, "door-1", "user-1", "frontdoor")

	// One command just inside the timeout, one just past it
	fresh := &Command{DoorID: "door-1", Kind: KindLock, SentAt: time.Now().UTC().Add(-29 * time.Second)}
	expired := &Command{DoorID: "door-1", Kind: KindUnlock, SentAt: time.Now().UTC().Add(-31 * time.Second)}
	for _, cmd := range []*Command{fresh, expired} {
		if err := repo.Create(ctx, cmd); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	if err := sweeper.Sweep(ctx); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	got, err := repo.GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("command at T+29s has status %q, want pending", got.Status)
	}

	got, err = repo.GetByID(ctx, expired.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("command at T+31s has status %q, want failed", got.Status)
	}
	if got.AckedAt == nil {
		t.Error("failed command missing acked_at")
	}

	if len(notifier.events) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifier.events))
	}
	ev := notifier.events[0]
	if ev.ownerID != "user-1" || ev.event != notify.EventCommandExpired {
		t.Errorf("notification = %+v", ev)
	}
}

func TestSweepEmptyLedger(t *testing.T) {
	db := setupTestDB(t)
	sweeper := NewSweeper(NewSQLiteRepository(db), notify.Discard{}, testLogger())

	if err := sweeper.Sweep(context.Background()); err != nil {
		t.Errorf("Sweep on empty ledger failed: %v", err)
	}
}

func TestSweepNoNotificationForDeletedDoor(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	notifier := &captureNotifier{}
	sweeper := NewSweeper(repo, notifier, testLogger())
	ctx := context.Background()

	insertTestDoor(t, db, "door-1", "user-1", "frontdoor")
	cmd := &Command{DoorID: "door-1", Kind: KindLock, SentAt: time.Now().UTC().Add(-time.Minute)}
	if err := repo.Create(ctx, cmd); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := db.Exec(`DELETE FROM doors WHERE id = ?`, "door-1"); err != nil {
		t.Fatalf("failed to delete door: %v", err)
	}

	if err := sweeper.Sweep(ctx); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	got, err := repo.GetByID(ctx, cmd.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
	if len(notifier.events) != 0 {
		t.Errorf("notifications = %d, want 0 for a deleted door", len(notifier.events))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	db := setupTestDB(t)
	sweeper := NewSweeper(NewSQLiteRepository(db), notify.Discard{}, testLogger())
	sweeper.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
