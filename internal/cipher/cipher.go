// Package cipher is the single implementation of secret encryption in credvault.
// Secrets are sealed with AES-256-GCM under one process-wide key; every call to
// Encrypt draws a fresh random nonce.
package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// KeySize is the required key length for AES-256.
	KeySize = 32
	// NonceSize is the standard GCM nonce length.
	NonceSize = 12
	// TagSize is the length of the GCM authentication tag appended to ciphertext.
	TagSize = 16
)

var (
	// ErrInvalidKey is returned when key material does not decode to KeySize bytes.
	ErrInvalidKey = errors.New("encryption key must be 32 bytes")

	// ErrKeyUnavailable is returned when a Cipher is used without a key.
	ErrKeyUnavailable = errors.New("encryption key not loaded")

	// ErrDecryption is wrapped by every Decrypt failure: malformed encoding,
	// wrong nonce length, truncated input or a tag that does not verify.
	ErrDecryption = errors.New("decryption failed")
)

// Sealed is the text form of one encryption: Ciphertext is hex(ciphertext || tag)
// and IV is hex(nonce).
type Sealed struct {
	Ciphertext string
	IV         string
}

// Cipher seals and opens secrets. It is safe for concurrent use.
type Cipher struct {
	aead stdcipher.AEAD
}

// New creates a Cipher from raw key material. key must be exactly KeySize bytes.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidKey, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := stdcipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a newly generated nonce.
func (c *Cipher) Encrypt(plaintext string) (Sealed, error) {
	if c == nil || c.aead == nil {
		return Sealed{}, ErrKeyUnavailable
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return Sealed{}, fmt.Errorf("generate nonce: %w", err)
	}

	// Seal appends the tag, producing ciphertext || tag.
	ciphertext := c.aead.Seal(nil, nonce, []byte(plaintext), nil)

	return Sealed{
		Ciphertext: hex.EncodeToString(ciphertext),
		IV:         hex.EncodeToString(nonce),
	}, nil
}

// Decrypt opens a value produced by Encrypt. All failures wrap ErrDecryption.
func (c *Cipher) Decrypt(ciphertext, iv string) (string, error) {
	if c == nil || c.aead == nil {
		return "", ErrKeyUnavailable
	}

	nonce, err := hex.DecodeString(iv)
	if err != nil {
		return "", fmt.Errorf("%w: iv encoding: %v", ErrDecryption, err)
	}
	if len(nonce) != NonceSize {
		return "", fmt.Errorf("%w: iv must be %d bytes, got %d", ErrDecryption, NonceSize, len(nonce))
	}

	data, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext encoding: %v", ErrDecryption, err)
	}
	if len(data) < TagSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryption)
	}

	plaintext, err := c.aead.Open(nil, nonce, data, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	return string(plaintext), nil
}

// ParseKey decodes configured key material: 64 hex characters, or standard
// base64 otherwise. The result must be exactly KeySize bytes.
func ParseKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}

	if len(encoded) == 2*KeySize {
		if key, err := hex.DecodeString(encoded); err == nil {
			return key, nil
		}
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: not valid base64 or hex", ErrInvalidKey)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidKey, len(key))
	}

	return key, nil
}

// GenerateKey returns a new random key, base64 encoded, for operators to place
// in configuration.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
