// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keyport/keyport/internal/model"
	"github.com/keyport/keyport/migrations"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420421

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema rolls back and reapplies every embedded migration.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	down, err := migrations.Down()
	if err != nil {
		return err
	}
	up, err := migrations.Up()
	if err != nil {
		return err
	}

	for _, name := range append(down, up...) {
		sql, err := migrations.FS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates a user with a random email and custody identifiers.
func NewTestUser(t testing.TB) *model.User {
	t.Helper()
	email := gofakeit.Email()
	return &model.User{
		ID:       gofakeit.UUID(),
		Email:    email,
		Username: model.UsernameFromEmail(email),
		Wallet:   fmt.Sprintf("0x%040x", gofakeit.Uint64()),
		OrgID:    gofakeit.UUID(),
	}
}

// NewTestAuthenticator creates a passkey record for userID.
func NewTestAuthenticator(t testing.TB, userID string) *model.Authenticator {
	t.Helper()
	return &model.Authenticator{
		CredentialID: fmt.Sprintf("cred-%d", time.Now().UnixNano()),
		UserID:       userID,
		Name:         "Passkey",
		Transports:   []string{"AUTHENTICATOR_TRANSPORT_INTERNAL", "AUTHENTICATOR_TRANSPORT_HYBRID"},
	}
}
