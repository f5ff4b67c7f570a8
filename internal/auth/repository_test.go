package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		created_at TEXT NOT NULL
	) STRICT;
	CREATE UNIQUE INDEX idx_users_email ON users(email);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return db
}

func TestUserCreateAndGet(t *testing.T) {
	repo := NewSQLiteUserRepository(setupTestDB(t))
	ctx := context.Background()

	user := &User{
		Email:        "Owner@Example.COM ",
		Name:         "Door Owner",
		PasswordHash: "$argon2id$fake",
	}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if user.ID == "" {
		t.Fatal("Create did not assign an ID")
	}
	if user.Email != "owner@example.com" {
		t.Errorf("Email = %q, want normalised owner@example.com", user.Email)
	}
	if user.Role != RoleUser {
		t.Errorf("Role = %q, want default user", user.Role)
	}
	if user.CreatedAt.IsZero() {
		t.Error("CreatedAt was not set")
	}

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Email != "owner@example.com" || got.Name != "Door Owner" || got.Role != RoleUser {
		t.Errorf("GetByID returned %+v", got)
	}
}

func TestUserGetByEmailNormalises(t *testing.T) {
	repo := NewSQLiteUserRepository(setupTestDB(t))
	ctx := context.Background()

	user := &User{Email: "owner@example.com", PasswordHash: "hash"}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.GetByEmail(ctx, "  OWNER@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("GetByEmail returned ID %q, want %q", got.ID, user.ID)
	}
}

func TestUserNotFound(t *testing.T) {
	repo := NewSQLiteUserRepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "usr-missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByID = %v, want ErrUserNotFound", err)
	}
	if _, err := repo.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByEmail = %v, want ErrUserNotFound", err)
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	repo := NewSQLiteUserRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, &User{Email: "owner@example.com", PasswordHash: "hash"}); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	err := repo.Create(ctx, &User{Email: "Owner@Example.com", PasswordHash: "hash"})
	if !errors.Is(err, ErrUserExists) {
		t.Errorf("duplicate Create = %v, want ErrUserExists", err)
	}
}

func TestUserCreateValidation(t *testing.T) {
	repo := NewSQLiteUserRepository(setupTestDB(t))
	ctx := context.Background()

	tests := []struct {
		name    string
		user    *User
		wantErr error
	}{
		{"missing email", &User{PasswordHash: "hash"}, ErrInvalidEmail},
		{"not an address", &User{Email: "not-an-email", PasswordHash: "hash"}, ErrInvalidEmail},
		{"bad role", &User{Email: "a@example.com", PasswordHash: "hash", Role: Role("root")}, ErrInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.Create(ctx, tt.user); !errors.Is(err, tt.wantErr) {
				t.Errorf("Create = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUserUpdatePassword(t *testing.T) {
	repo := NewSQLiteUserRepository(setupTestDB(t))
	ctx := context.Background()

	user := &User{Email: "owner@example.com", PasswordHash: "old-hash"}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.UpdatePassword(ctx, user.ID, "new-hash"); err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}
	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.PasswordHash != "new-hash" {
		t.Errorf("PasswordHash = %q, want new-hash", got.PasswordHash)
	}

	if err := repo.UpdatePassword(ctx, "usr-missing", "hash"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("UpdatePassword for missing user = %v, want ErrUserNotFound", err)
	}
}

func TestUserListAndCount(t *testing.T) {
	repo := NewSQLiteUserRepository(setupTestDB(t))
	ctx := context.Background()

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Count on empty table = %d, want 0", count)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		u := &User{
			Email:        email,
			PasswordHash: "hash",
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(ctx, u); err != nil {
			t.Fatalf("Create %s failed: %v", email, err)
		}
	}

	users, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("List returned %d users, want 3", len(users))
	}
	if users[0].Email != "a@example.com" || users[2].Email != "c@example.com" {
		t.Errorf("List order wrong: %q, %q, %q", users[0].Email, users[1].Email, users[2].Email)
	}

	count, err = repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Count = %d, want 3", count)
	}
}
