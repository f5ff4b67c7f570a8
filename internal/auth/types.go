package auth

import (
	"context"
	"database/sql"
	"net/mail"
	"time"
)

// Role represents an authorisation tier.
type Role string

const (
	// RoleUser is a door owner: full control over their own doors,
	// nothing else.
	RoleUser Role = "user"

	// RoleAdmin can manage every door and inspect the message inbox.
	RoleAdmin Role = "admin"
)

// IsValidRole reports whether r is a role an account can hold.
func IsValidRole(r Role) bool {
	return r == RoleUser || r == RoleAdmin
}

// IsValidEmail checks that an address parses per RFC 5322.
func IsValidEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// User is an account that can own doors and call the API.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // never serialised
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// DBTX is the subset of database operations the repository needs.
// Both *sql.DB and *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
