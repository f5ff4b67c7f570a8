package record

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE door_records (
			id TEXT PRIMARY KEY,
			door_id TEXT NOT NULL,
			event TEXT NOT NULL,
			method TEXT NOT NULL DEFAULT '',
			raw_payload TEXT NOT NULL DEFAULT '',
			occurred_at TEXT NOT NULL
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestCreate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	rec := &DoorRecord{
		DoorID:     "door-1",
		Event:      "state_changed",
		Method:     "device",
		RawPayload: `{"state":"locked"}`,
	}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if rec.ID == "" {
		t.Error("Create() did not generate an ID")
	}
	if rec.OccurredAt.IsZero() {
		t.Error("Create() did not set OccurredAt")
	}
}

func TestList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	seed := []DoorRecord{
		{DoorID: "door-1", Event: "state_changed", OccurredAt: base},
		{DoorID: "door-1", Event: "battery_reported", OccurredAt: base.Add(time.Minute)},
		{DoorID: "door-2", Event: "state_changed", OccurredAt: base.Add(2 * time.Minute)},
	}
	for i := range seed {
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	t.Run("all records", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if result.Total != 3 {
			t.Errorf("Total = %d, want 3", result.Total)
		}
		// Most recent first
		if result.Records[0].DoorID != "door-2" {
			t.Errorf("first record = %+v, want door-2's", result.Records[0])
		}
	})

	t.Run("filter by door", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{DoorID: "door-1"})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if result.Total != 2 {
			t.Errorf("Total = %d, want 2", result.Total)
		}
	})

	t.Run("filter by event", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{DoorID: "door-1", Event: "battery_reported"})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if result.Total != 1 {
			t.Errorf("Total = %d, want 1", result.Total)
		}
	})

	t.Run("pagination", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{Limit: 2})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(result.Records) != 2 || result.Total != 3 {
			t.Errorf("page = %d records / total %d, want 2 / 3", len(result.Records), result.Total)
		}

		result, err = repo.List(ctx, Filter{Limit: 2, Offset: 2})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(result.Records) != 1 {
			t.Errorf("second page = %d records, want 1", len(result.Records))
		}
	})

	t.Run("empty result is not nil", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{DoorID: "ghost"})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if result.Records == nil {
			t.Error("Records is nil, want empty slice")
		}
	})
}
