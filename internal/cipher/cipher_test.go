package cipher

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(fill byte) []byte {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = fill + byte(i)
	}
	return key
}

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := New(testKey(1))
	require.NoError(t, err)
	return c
}

// flipBit returns the hex encoding of encoded with bit i inverted.
func flipBit(t *testing.T, encoded string, i int) string {
	t.Helper()
	raw, err := hex.DecodeString(encoded)
	require.NoError(t, err)
	raw[i/8] ^= 1 << (i % 8)
	return hex.EncodeToString(raw)
}

func TestCipher_RoundTrip(t *testing.T) {
	c := newTestCipher(t)

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty", ""},
		{"ascii", "sk-ant-123"},
		{"unicode", "pässwörd-秘密-🔑"},
		{"long", strings.Repeat("ghp_0123456789abcdef", 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := c.Encrypt(tt.plaintext)
			require.NoError(t, err)

			got, err := c.Decrypt(sealed.Ciphertext, sealed.IV)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, got)
		})
	}
}

func TestCipher_EncodingLayout(t *testing.T) {
	c := newTestCipher(t)

	sealed, err := c.Encrypt("abc")
	require.NoError(t, err)

	iv, err := hex.DecodeString(sealed.IV)
	require.NoError(t, err)
	assert.Len(t, iv, NonceSize)

	ct, err := hex.DecodeString(sealed.Ciphertext)
	require.NoError(t, err)
	assert.Len(t, ct, len("abc")+TagSize, "ciphertext carries the tag appended")
	assert.NotContains(t, sealed.Ciphertext, hex.EncodeToString([]byte("abc")))
}

func TestCipher_NonceUniqueness(t *testing.T) {
	c := newTestCipher(t)

	first, err := c.Encrypt("same-value")
	require.NoError(t, err)
	second, err := c.Encrypt("same-value")
	require.NoError(t, err)

	assert.NotEqual(t, first.IV, second.IV)
	assert.NotEqual(t, first.Ciphertext, second.Ciphertext)
}

func TestCipher_TamperedCiphertextFails(t *testing.T) {
	c := newTestCipher(t)

	sealed, err := c.Encrypt("sk-ant-123")
	require.NoError(t, err)

	bits := len(sealed.Ciphertext) / 2 * 8
	for i := 0; i < bits; i++ {
		_, err := c.Decrypt(flipBit(t, sealed.Ciphertext, i), sealed.IV)
		require.ErrorIs(t, err, ErrDecryption, "bit %d", i)
	}
}

func TestCipher_TamperedIVFails(t *testing.T) {
	c := newTestCipher(t)

	sealed, err := c.Encrypt("sk-ant-123")
	require.NoError(t, err)

	for i := 0; i < NonceSize*8; i++ {
		_, err := c.Decrypt(sealed.Ciphertext, flipBit(t, sealed.IV, i))
		require.ErrorIs(t, err, ErrDecryption, "bit %d", i)
	}
}

func TestCipher_WrongKeyFails(t *testing.T) {
	c1 := newTestCipher(t)
	c2, err := New(testKey(2))
	require.NoError(t, err)

	sealed, err := c1.Encrypt("hidden")
	require.NoError(t, err)

	_, err = c2.Decrypt(sealed.Ciphertext, sealed.IV)
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestCipher_MalformedInput(t *testing.T) {
	c := newTestCipher(t)

	sealed, err := c.Encrypt("value")
	require.NoError(t, err)

	tests := []struct {
		name       string
		ciphertext string
		iv         string
	}{
		{"non-hex ciphertext", "zz" + sealed.Ciphertext, sealed.IV},
		{"non-hex iv", sealed.Ciphertext, "not-hex"},
		{"empty iv", sealed.Ciphertext, ""},
		{"16-byte iv", sealed.Ciphertext, strings.Repeat("00", 16)},
		{"short ciphertext", "abcd", sealed.IV},
		{"empty ciphertext", "", sealed.IV},
		{"legacy split format", sealed.Ciphertext[:4] + ":" + sealed.Ciphertext[4:], sealed.IV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Decrypt(tt.ciphertext, tt.iv)
			require.ErrorIs(t, err, ErrDecryption)
			assert.Empty(t, got)
		})
	}
}

func TestCipher_NilCipher(t *testing.T) {
	var c *Cipher

	_, err := c.Encrypt("x")
	assert.ErrorIs(t, err, ErrKeyUnavailable)

	_, err = c.Decrypt("00", "00")
	assert.ErrorIs(t, err, ErrKeyUnavailable)
}

func TestNew_RejectsWrongKeyLength(t *testing.T) {
	for _, n := range []int{0, 16, 24, 31, 33, 64} {
		_, err := New(make([]byte, n))
		assert.ErrorIs(t, err, ErrInvalidKey, "length %d", n)
	}
}

func TestParseKey(t *testing.T) {
	raw := testKey(7)

	t.Run("base64", func(t *testing.T) {
		key, err := ParseKey(base64.StdEncoding.EncodeToString(raw))
		require.NoError(t, err)
		assert.Equal(t, raw, key)
	})

	t.Run("hex", func(t *testing.T) {
		key, err := ParseKey(hex.EncodeToString(raw))
		require.NoError(t, err)
		assert.Equal(t, raw, key)
	})

	t.Run("surrounding whitespace", func(t *testing.T) {
		key, err := ParseKey("  " + base64.StdEncoding.EncodeToString(raw) + "\n")
		require.NoError(t, err)
		assert.Equal(t, raw, key)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseKey("")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("short", func(t *testing.T) {
		_, err := ParseKey(base64.StdEncoding.EncodeToString(raw[:16]))
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseKey("this is not a key!")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})
}

func TestGenerateKey(t *testing.T) {
	encoded, err := GenerateKey()
	require.NoError(t, err)

	key, err := ParseKey(encoded)
	require.NoError(t, err)
	assert.Len(t, key, KeySize)

	other, err := GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(t, encoded, other)
}
