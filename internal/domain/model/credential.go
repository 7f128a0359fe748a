package model

import "time"

// CredentialRecord is one stored secret for a (UserID, Provider) pair.
// Ciphertext and IV are opaque outside the cipher package: Ciphertext is the
// hex-encoded AES-GCM output with the authentication tag appended, IV is the
// hex-encoded nonce used to produce it.
type CredentialRecord struct {
	UserID     string
	Provider   string
	Ciphertext string
	IV         string
	UpdatedAt  time.Time // diagnostic only
}

// SecretEntry is a single plaintext value submitted in a save batch.
type SecretEntry struct {
	Provider string
	Value    string
}

// SecretState describes whether a stored secret can currently be read.
type SecretState string

const (
	SecretStateConfigured SecretState = "configured"
	SecretStateCorrupt    SecretState = "corrupt"
)

// ProviderStatus reports the state of a stored secret without exposing it.
type ProviderStatus struct {
	Provider  string
	State     SecretState
	UpdatedAt time.Time
}
