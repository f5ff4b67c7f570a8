package reconcile

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/doorlink-io/doorlink-core/internal/door"
	"github.com/doorlink-io/doorlink-core/internal/infrastructure/config"
	"github.com/doorlink-io/doorlink-core/internal/infrastructure/logging"
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

// setupTestDB builds the full schema in memory. Connections are capped at
// one, matching the production SQLite configuration, so concurrent
// transactions serialise instead of landing in separate memory databases.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE doors (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			door_code TEXT NOT NULL DEFAULT '',
			topic_prefix TEXT NOT NULL,
			mac_address TEXT NOT NULL DEFAULT '',
			lock_state TEXT NOT NULL DEFAULT 'unknown',
			battery INTEGER NOT NULL DEFAULT 0,
			last_sync_at TEXT,
			last_sync_requested_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;
		CREATE UNIQUE INDEX idx_doors_topic_prefix ON doors(topic_prefix);

		CREATE TABLE passcodes (
			id TEXT PRIMARY KEY,
			door_id TEXT NOT NULL REFERENCES doors(id) ON DELETE CASCADE,
			code TEXT NOT NULL,
			type TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			valid_from TEXT,
			valid_to TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;

		CREATE TABLE ic_cards (
			id TEXT PRIMARY KEY,
			door_id TEXT NOT NULL REFERENCES doors(id) ON DELETE CASCADE,
			card_uid TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL
		) STRICT;

		CREATE TABLE door_records (
			id TEXT PRIMARY KEY,
			door_id TEXT NOT NULL REFERENCES doors(id) ON DELETE CASCADE,
			event TEXT NOT NULL,
			method TEXT NOT NULL DEFAULT '',
			raw_payload TEXT NOT NULL DEFAULT '',
			occurred_at TEXT NOT NULL
		) STRICT;

		CREATE TABLE door_commands (
			id TEXT PRIMARY KEY,
			door_id TEXT REFERENCES doors(id) ON DELETE SET NULL,
			kind TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			sent_at TEXT NOT NULL,
			acked_at TEXT
		) STRICT;

		CREATE TABLE mqtt_inbox (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			payload TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			door_id TEXT REFERENCES doors(id) ON DELETE SET NULL,
			processed INTEGER NOT NULL DEFAULT 0,
			received_at TEXT NOT NULL,
			processed_at TEXT
		) STRICT;
		CREATE UNIQUE INDEX idx_mqtt_inbox_fingerprint ON mqtt_inbox(fingerprint);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create test schema: %v", err)
	}
	return db
}

func createTestDoor(t *testing.T, db *sql.DB, id, ownerID, prefix string) *door.Door {
	t.Helper()

	doors := door.NewSQLiteRepository(db)
	d := &door.Door{
		ID:          id,
		OwnerID:     ownerID,
		Name:        "Front Door",
		TopicPrefix: prefix,
	}
	if err := doors.Create(context.Background(), d); err != nil {
		t.Fatalf("failed to create test door: %v", err)
	}
	return d
}

// captureNotifier records notifications for assertions.
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

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func (n *captureNotifier) last(t *testing.T) capturedEvent {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.events) == 0 {
		t.Fatal("no notifications were delivered")
	}
	return n.events[len(n.events)-1]
}

// capturePoints records telemetry writes for assertions.
type capturePoints struct {
	mu       sync.Mutex
	battery  []int
	states   []string
	accesses []string
}

func (c *capturePoints) WriteBatteryLevel(doorID string, level int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.battery = append(c.battery, level)
}

func (c *capturePoints) WriteLockState(doorID string, state string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = append(c.states, state)
}

func (c *capturePoints) WriteAccessEvent(doorID string, method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accesses = append(c.accesses, method)
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var count int
	if err := db.QueryRow(query, args...).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	return count
}

func insertPendingCommand(t *testing.T, db *sql.DB, id, doorID, kind string, sentAt time.Time) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO door_commands (id, door_id, kind, status, sent_at)
		VALUES (?, ?, ?, 'pending', ?)
	`, id, doorID, kind, sentAt.UTC().Format(time.RFC3339))
	if err != nil {
		t.Fatalf("failed to insert pending command: %v", err)
	}
}
