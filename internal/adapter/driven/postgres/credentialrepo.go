package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.VaultStore = (*CredentialRepo)(nil)

// CredentialRepo is the PostgreSQL implementation of the VaultStore port.
type CredentialRepo struct {
	db DBTX
}

// NewCredentialRepo creates a CredentialRepo bound to db. db is injected once
// and shared for the life of the process.
func NewCredentialRepo(db DBTX) *CredentialRepo {
	return &CredentialRepo{db: db}
}

const selectColumns = `SELECT user_id, provider, encrypted_key, iv, updated_at FROM user_keys`

// ListAll returns every row owned by userID, ordered by provider.
func (r *CredentialRepo) ListAll(ctx context.Context, userID string) ([]model.CredentialRecord, error) {
	query := selectColumns + ` WHERE user_id = $1 ORDER BY provider`

	records, err := r.query(ctx, query, userID)
	if err != nil {
		return nil, &driven.StorageError{Op: "list user keys", Err: err}
	}
	return records, nil
}

// ListProviders returns the rows for userID restricted to providers.
func (r *CredentialRepo) ListProviders(ctx context.Context, userID string, providers []string) ([]model.CredentialRecord, error) {
	if len(providers) == 0 {
		return []model.CredentialRecord{}, nil
	}

	placeholders := make([]string, len(providers))
	args := make([]any, 0, len(providers)+1)
	args = append(args, userID)
	for i, p := range providers {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, p)
	}

	query := selectColumns + ` WHERE user_id = $1 AND provider IN (` + strings.Join(placeholders, ", ") + `) ORDER BY provider`

	records, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, &driven.StorageError{Op: "list user keys by provider", Err: err}
	}
	return records, nil
}

// Get returns the row for (userID, provider), or nil, nil if absent.
func (r *CredentialRepo) Get(ctx context.Context, userID, provider string) (*model.CredentialRecord, error) {
	query := selectColumns + ` WHERE user_id = $1 AND provider = $2`

	var rec model.CredentialRecord
	err := r.db.QueryRowContext(ctx, query, userID, provider).
		Scan(&rec.UserID, &rec.Provider, &rec.Ciphertext, &rec.IV, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &driven.StorageError{Op: fmt.Sprintf("get user key %q", provider), Err: err}
	}
	return &rec, nil
}

// Upsert inserts or replaces the row for (userID, provider). ON CONFLICT on
// the unique constraint makes the write atomic; the last commit wins.
func (r *CredentialRepo) Upsert(ctx context.Context, userID, provider, ciphertext, iv string) error {
	const query = `INSERT INTO user_keys (user_id, provider, encrypted_key, iv, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id, provider) DO UPDATE SET
			encrypted_key = EXCLUDED.encrypted_key,
			iv = EXCLUDED.iv,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query, userID, provider, ciphertext, iv); err != nil {
		return &driven.StorageError{Op: fmt.Sprintf("upsert user key %q", provider), Err: err}
	}
	return nil
}

// Delete removes the row for (userID, provider). Removing an absent row succeeds.
func (r *CredentialRepo) Delete(ctx context.Context, userID, provider string) error {
	const query = `DELETE FROM user_keys WHERE user_id = $1 AND provider = $2`

	if _, err := r.db.ExecContext(ctx, query, userID, provider); err != nil {
		return &driven.StorageError{Op: fmt.Sprintf("delete user key %q", provider), Err: err}
	}
	return nil
}

func (r *CredentialRepo) query(ctx context.Context, query string, args ...any) ([]model.CredentialRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	records := []model.CredentialRecord{}
	for rows.Next() {
		var rec model.CredentialRecord
		if err := rows.Scan(&rec.UserID, &rec.Provider, &rec.Ciphertext, &rec.IV, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user key: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user keys: %w", err)
	}

	return records, nil
}
