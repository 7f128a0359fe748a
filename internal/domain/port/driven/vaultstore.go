package driven

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// StorageError wraps any failure of the backing store. It is distinct from
// decryption and validation failures and is safe for callers to retry.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// VaultStore defines the driven port for persisting opaque credential rows
// keyed by (userID, provider). Implementations never see plaintext and never
// validate ciphertext; every backend error is returned as *StorageError.
type VaultStore interface {
	// ListAll returns every row owned by userID, ordered by provider.
	// An empty slice is returned when the user has none.
	ListAll(ctx context.Context, userID string) ([]model.CredentialRecord, error)

	// ListProviders returns the rows for userID whose provider is in providers.
	// Providers without a row are simply missing from the result.
	ListProviders(ctx context.Context, userID string, providers []string) ([]model.CredentialRecord, error)

	// Get returns the row for (userID, provider), or (nil, nil) when absent.
	Get(ctx context.Context, userID, provider string) (*model.CredentialRecord, error)

	// Upsert inserts or replaces the row for (userID, provider) in a single
	// atomic statement. The last committed write wins.
	Upsert(ctx context.Context, userID, provider, ciphertext, iv string) error

	// Delete removes the row for (userID, provider). Removing an absent row
	// succeeds.
	Delete(ctx context.Context, userID, provider string) error
}
