// Package testutil opens throwaway databases and seeds fixtures for tests.
package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	domainUser "farm-iot-provisioning/internal/domain/user"
	"farm-iot-provisioning/internal/infrastructure/database/postgres"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ErrInjected is returned by failure hooks installed with FailWrites.
var ErrInjected = errors.New("injected write failure")

// NewDB opens a migrated in-memory SQLite database. A single connection keeps
// every query on the same in-memory database.
func NewDB(t *testing.T) *postgres.DB {
	t.Helper()

	db, err := postgres.Open(sqlite.Open(":memory:"), "test")
	require.NoError(t, err)

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)

	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// FailWrites makes every create, update or delete on table fail with ErrInjected.
func FailWrites(t *testing.T, db *postgres.DB, table string) {
	t.Helper()

	hook := func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(ErrInjected)
		}
	}

	name := "testutil:fail_" + table
	require.NoError(t, db.DB.Callback().Create().Before("gorm:create").Register(name, hook))
	require.NoError(t, db.DB.Callback().Update().Before("gorm:update").Register(name, hook))
	require.NoError(t, db.DB.Callback().Delete().Before("gorm:delete").Register(name, hook))
}

// Clock returns a deterministic, strictly increasing time source.
func Clock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

// SeedUser stores a user with the given role and returns it.
func SeedUser(t *testing.T, db *postgres.DB, email string, role domainUser.Role) *domainUser.User {
	t.Helper()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	u := &domainUser.User{
		ID:        uuid.New(),
		Email:     email,
		FullName:  email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, postgres.NewUserRepository(db).Create(context.Background(), u))
	return u
}

// Actor builds the caller identity of a stored user.
func Actor(u *domainUser.User) domainUser.Actor {
	return domainUser.Actor{UserID: u.ID, Email: u.Email, Role: u.Role}
}
