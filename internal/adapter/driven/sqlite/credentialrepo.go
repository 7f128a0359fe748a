package sqlite

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

// CredentialRepo is the SQLite implementation of the VaultStore port interface.
// It stores ciphertext and nonce exactly as given; it never encrypts, decrypts
// or validates them.
type CredentialRepo struct {
	db *DB
}

// NewCredentialRepo creates a new CredentialRepo backed by the given DB.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

const selectColumns = `SELECT user_id, provider, encrypted_key, iv, updated_at FROM user_keys`

// ListAll returns every credential row owned by userID, ordered by provider.
func (r *CredentialRepo) ListAll(ctx context.Context, userID string) ([]model.CredentialRecord, error) {
	const query = selectColumns + ` WHERE user_id = ? ORDER BY provider`

	records, err := r.query(ctx, query, userID)
	if err != nil {
		return nil, &driven.StorageError{Op: "list user keys", Err: err}
	}
	return records, nil
}

// ListProviders returns the rows for userID restricted to the given providers.
func (r *CredentialRepo) ListProviders(ctx context.Context, userID string, providers []string) ([]model.CredentialRecord, error) {
	if len(providers) == 0 {
		return []model.CredentialRecord{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(providers)), ", ")
	query := selectColumns + ` WHERE user_id = ? AND provider IN (` + placeholders + `) ORDER BY provider`

	args := make([]any, 0, len(providers)+1)
	args = append(args, userID)
	for _, p := range providers {
		args = append(args, p)
	}

	records, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, &driven.StorageError{Op: "list user keys by provider", Err: err}
	}
	return records, nil
}

// Get returns the row for (userID, provider), or nil, nil if none exists.
func (r *CredentialRepo) Get(ctx context.Context, userID, provider string) (*model.CredentialRecord, error) {
	const query = selectColumns + ` WHERE user_id = ? AND provider = ?`

	rec, err := scanRecord(r.db.Reader.QueryRowContext(ctx, query, userID, provider))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &driven.StorageError{Op: fmt.Sprintf("get user key %q", provider), Err: err}
	}
	return rec, nil
}

// Upsert inserts or replaces the row for (userID, provider). The single
// statement is atomic on the primary key, and all writes go through the
// single writer connection, so the last commit wins.
func (r *CredentialRepo) Upsert(ctx context.Context, userID, provider, ciphertext, iv string) error {
	const query = `INSERT INTO user_keys (user_id, provider, encrypted_key, iv, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			encrypted_key = excluded.encrypted_key,
			iv = excluded.iv,
			updated_at = excluded.updated_at`

	if _, err := r.db.Writer.ExecContext(ctx, query, userID, provider, ciphertext, iv); err != nil {
		return &driven.StorageError{Op: fmt.Sprintf("upsert user key %q", provider), Err: err}
	}
	return nil
}

// Delete removes the row for (userID, provider). Deleting an absent row is not an error.
func (r *CredentialRepo) Delete(ctx context.Context, userID, provider string) error {
	const query = `DELETE FROM user_keys WHERE user_id = ? AND provider = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, userID, provider); err != nil {
		return &driven.StorageError{Op: fmt.Sprintf("delete user key %q", provider), Err: err}
	}
	return nil
}

func (r *CredentialRepo) query(ctx context.Context, query string, args ...any) ([]model.CredentialRecord, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []model.CredentialRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user key: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user keys: %w", err)
	}

	return records, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*model.CredentialRecord, error) {
	var rec model.CredentialRecord
	var updatedAt string

	if err := s.Scan(&rec.UserID, &rec.Provider, &rec.Ciphertext, &rec.IV, &updatedAt); err != nil {
		return nil, err
	}

	// updated_at is diagnostic; an unparseable value leaves the zero time
	// rather than hiding the row.
	if t, err := parseTime(updatedAt); err == nil {
		rec.UpdatedAt = t
	}

	return &rec, nil
}
