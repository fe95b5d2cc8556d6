package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/keyport/keyport/internal/model"
)

// CreateAuthenticator records the passkey a user signed up with.
// Recording the same credential twice is a no-op.
func (r *Repository) CreateAuthenticator(ctx context.Context, a *model.Authenticator) error {
	query := `
		INSERT INTO authenticators (credential_id, user_id, name, transports)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (credential_id) DO NOTHING
	`

	transports := a.Transports
	if transports == nil {
		transports = []string{}
	}

	_, err := r.pool.Exec(ctx, query,
		a.CredentialID,
		a.UserID,
		a.Name,
		pq.Array(transports),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create authenticator: %w", err)
	}

	return nil
}

// ListAuthenticatorsByUserID returns a user's passkeys, oldest first.
func (r *Repository) ListAuthenticatorsByUserID(ctx context.Context, userID string) ([]*model.Authenticator, error) {
	query := `
		SELECT credential_id, user_id, name, transports, created_at
		FROM authenticators
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list authenticators: %w", err)
	}
	defer rows.Close()

	var result []*model.Authenticator
	for rows.Next() {
		var a model.Authenticator
		var transports []string
		if err := rows.Scan(
			&a.CredentialID,
			&a.UserID,
			&a.Name,
			pq.Array(&transports),
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan authenticator: %w", err)
		}
		a.Transports = transports
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate authenticators: %w", err)
	}

	return result, nil
}

// CredentialsForEmail returns the passkeys of the user registered with email.
// An unknown email has none.
func (r *Repository) CredentialsForEmail(ctx context.Context, email string) ([]*model.Authenticator, error) {
	user, err := r.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.ListAuthenticatorsByUserID(ctx, user.ID)
}
