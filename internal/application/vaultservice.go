package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/credvault/internal/cipher"
	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// ErrSecretNotFound is returned by LookupSecret when no row exists.
var ErrSecretNotFound = errors.New("secret not found")

// SecretCipher seals and opens individual secrets. *cipher.Cipher implements it.
type SecretCipher interface {
	Encrypt(plaintext string) (cipher.Sealed, error)
	Decrypt(ciphertext, iv string) (string, error)
}

// ProviderSaveError reports the entry that stopped a SaveSecrets batch.
// Entries before it remain committed.
type ProviderSaveError struct {
	Provider string
	Err      error
}

func (e *ProviderSaveError) Error() string {
	return fmt.Sprintf("save %q: %v", e.Provider, e.Err)
}

func (e *ProviderSaveError) Unwrap() error { return e.Err }

// VaultService is the entry point for reading and writing user secrets.
// It holds no mutable state; all per-key exclusion is delegated to the store.
type VaultService struct {
	store  driven.VaultStore
	cipher SecretCipher
	logger *slog.Logger
}

// NewVaultService creates a VaultService. A nil logger falls back to slog.Default().
func NewVaultService(store driven.VaultStore, c SecretCipher, logger *slog.Logger) *VaultService {
	if logger == nil {
		logger = slog.Default()
	}
	return &VaultService{
		store:  store,
		cipher: c,
		logger: logger,
	}
}

// LookupSecret returns the plaintext for (userID, provider). It distinguishes
// a missing secret (ErrSecretNotFound) from a corrupt one (cipher.ErrDecryption).
func (s *VaultService) LookupSecret(ctx context.Context, userID, provider string) (string, error) {
	if err := validateKey(userID, provider); err != nil {
		return "", err
	}

	rec, err := s.store.Get(ctx, userID, provider)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", ErrSecretNotFound
	}

	plaintext, err := s.cipher.Decrypt(rec.Ciphertext, rec.IV)
	if err != nil {
		return "", fmt.Errorf("decrypt %q: %w", provider, err)
	}
	return plaintext, nil
}

// GetDecryptedSecret returns the plaintext for (userID, provider) and whether
// it was found. A secret that fails to decrypt is logged and reported as absent.
func (s *VaultService) GetDecryptedSecret(ctx context.Context, userID, provider string) (string, bool, error) {
	plaintext, err := s.LookupSecret(ctx, userID, provider)
	switch {
	case err == nil:
		return plaintext, true, nil
	case errors.Is(err, ErrSecretNotFound):
		return "", false, nil
	case errors.Is(err, cipher.ErrDecryption):
		s.logDecryptFailure(ctx, userID, provider, err)
		return "", false, nil
	default:
		return "", false, err
	}
}

// GetDecryptedSecrets returns the plaintext of every requested provider that
// has a readable row. Missing and undecryptable providers are omitted.
func (s *VaultService) GetDecryptedSecrets(ctx context.Context, userID string, providers []string) (map[string]string, error) {
	if err := model.ValidateUserID(userID); err != nil {
		return nil, err
	}

	wanted := make([]string, 0, len(providers))
	seen := make(map[string]struct{}, len(providers))
	for _, p := range providers {
		if err := model.ValidateProvider(p); err != nil {
			return nil, err
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		wanted = append(wanted, p)
	}

	if len(wanted) > model.MaxProvidersPerRequest {
		return nil, &model.ValidationError{
			Field:  "provider",
			Reason: fmt.Sprintf("at most %d providers per request", model.MaxProvidersPerRequest),
		}
	}
	if len(wanted) == 0 {
		return map[string]string{}, nil
	}

	records, err := s.store.ListProviders(ctx, userID, wanted)
	if err != nil {
		return nil, err
	}

	return s.decryptAll(ctx, userID, records), nil
}

// GetAllDecryptedSecrets returns the plaintext of every readable secret the
// user has stored. Undecryptable rows are omitted.
func (s *VaultService) GetAllDecryptedSecrets(ctx context.Context, userID string) (map[string]string, error) {
	if err := model.ValidateUserID(userID); err != nil {
		return nil, err
	}

	records, err := s.store.ListAll(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.decryptAll(ctx, userID, records), nil
}

// SaveSecrets encrypts and stores entries in order. Entries with an empty
// Value are skipped without touching storage. Provider names are validated for
// the whole batch before anything is written.
//
// The batch is not transactional: the first entry that fails to encrypt or
// persist stops processing and is returned as *ProviderSaveError, while every
// entry before it stays committed and later entries are never attempted.
func (s *VaultService) SaveSecrets(ctx context.Context, userID string, entries []model.SecretEntry) error {
	if err := model.ValidateUserID(userID); err != nil {
		return err
	}

	for _, e := range entries {
		if e.Value == "" {
			continue
		}
		if err := model.ValidateProvider(e.Provider); err != nil {
			return &ProviderSaveError{Provider: e.Provider, Err: err}
		}
	}

	saved := 0
	for _, e := range entries {
		if e.Value == "" {
			continue
		}

		if err := ctx.Err(); err != nil {
			return s.saveFailed(ctx, userID, e.Provider, saved, err)
		}

		sealed, err := s.cipher.Encrypt(e.Value)
		if err != nil {
			return s.saveFailed(ctx, userID, e.Provider, saved, fmt.Errorf("encrypt: %w", err))
		}

		if err := s.store.Upsert(ctx, userID, e.Provider, sealed.Ciphertext, sealed.IV); err != nil {
			return s.saveFailed(ctx, userID, e.Provider, saved, err)
		}
		saved++
	}

	s.logger.InfoContext(ctx, "secrets saved", "user_id", userID, "count", saved)
	return nil
}

// DeleteSecret removes the secret for (userID, provider). Deleting a provider
// that was never saved succeeds.
func (s *VaultService) DeleteSecret(ctx context.Context, userID, provider string) error {
	if err := validateKey(userID, provider); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, userID, provider); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "secret deleted", "user_id", userID, "provider", provider)
	return nil
}

// ProviderStatuses reports every stored provider for userID and whether its
// secret can currently be decrypted. Plaintext never leaves this method.
func (s *VaultService) ProviderStatuses(ctx context.Context, userID string) ([]model.ProviderStatus, error) {
	if err := model.ValidateUserID(userID); err != nil {
		return nil, err
	}

	records, err := s.store.ListAll(ctx, userID)
	if err != nil {
		return nil, err
	}

	statuses := make([]model.ProviderStatus, 0, len(records))
	for _, rec := range records {
		state := model.SecretStateConfigured
		if _, err := s.cipher.Decrypt(rec.Ciphertext, rec.IV); err != nil {
			s.logDecryptFailure(ctx, userID, rec.Provider, err)
			state = model.SecretStateCorrupt
		}
		statuses = append(statuses, model.ProviderStatus{
			Provider:  rec.Provider,
			State:     state,
			UpdatedAt: rec.UpdatedAt,
		})
	}

	return statuses, nil
}

// decryptAll opens each record independently; failures are logged and skipped.
func (s *VaultService) decryptAll(ctx context.Context, userID string, records []model.CredentialRecord) map[string]string {
	secrets := make(map[string]string, len(records))
	for _, rec := range records {
		plaintext, err := s.cipher.Decrypt(rec.Ciphertext, rec.IV)
		if err != nil {
			s.logDecryptFailure(ctx, userID, rec.Provider, err)
			continue
		}
		secrets[rec.Provider] = plaintext
	}
	return secrets
}

func (s *VaultService) saveFailed(ctx context.Context, userID, provider string, saved int, err error) error {
	s.logger.ErrorContext(ctx, "secret save failed",
		"user_id", userID,
		"provider", provider,
		"committed", saved,
		"error", err,
	)
	return &ProviderSaveError{Provider: provider, Err: err}
}

func (s *VaultService) logDecryptFailure(ctx context.Context, userID, provider string, err error) {
	s.logger.WarnContext(ctx, "secret could not be decrypted",
		"user_id", userID,
		"provider", provider,
		"error", err,
	)
}

func validateKey(userID, provider string) error {
	if err := model.ValidateUserID(userID); err != nil {
		return err
	}
	return model.ValidateProvider(provider)
}
