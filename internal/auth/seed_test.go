package auth

import (
	"context"
	"testing"

	"github.com/doorlink-io/doorlink-core/internal/infrastructure/config"
	"github.com/doorlink-io/doorlink-core/internal/infrastructure/logging"
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "json", Output: "stdout"}, "test")
}

func TestSeedAdminFirstBoot(t *testing.T) {
	repo := NewSQLiteUserRepository(setupTestDB(t))
	ctx := context.Background()

	password, err := SeedAdmin(ctx, repo, testLogger())
	if err != nil {
		t.Fatalf("SeedAdmin failed: %v", err)
	}
	if password == "" {
		t.Fatal("SeedAdmin returned empty password on first boot")
	}

	admin, err := repo.GetByEmail(ctx, "admin@doorlink.local")
	if err != nil {
		t.Fatalf("seed admin not found: %v", err)
	}
	if admin.Role != RoleAdmin {
		t.Errorf("Role = %q, want admin", admin.Role)
	}
	ok, err := VerifyPassword(password, admin.PasswordHash)
	if err != nil {
		t.Fatalf("VerifyPassword failed: %v", err)
	}
	if !ok {
		t.Error("generated password does not verify against stored hash")
	}
}

func TestSeedAdminSkipsWhenUsersExist(t *testing.T) {
	repo := NewSQLiteUserRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, &User{Email: "owner@example.com", PasswordHash: "hash"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	password, err := SeedAdmin(ctx, repo, testLogger())
	if err != nil {
		t.Fatalf("SeedAdmin failed: %v", err)
	}
	if password != "" {
		t.Error("SeedAdmin seeded even though a user already exists")
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Count = %d, want 1", count)
	}
}
