// package encryption implements encryption at rest for stored text fields.
// Values are sealed with AES-256-GCM and wrapped in a versioned envelope so
// that encrypted and plaintext values can coexist in the same column.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/devkudos/ingest-service/internal/apperrors"
)

// envelopePrefix marks a value as encrypted. The version segment allows key
// or algorithm rotation without guessing at stored bytes.
const envelopePrefix = "enc:v1:"

const keySize = 32

type Cipher struct {
	aead cipher.AEAD
}

// New builds a Cipher from a base64-encoded 256-bit key.
func New(base64Key string) (*Cipher, error) {
	const op = "internal.encryption.New"

	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to decode key: %w", op, err)
	}

	if len(key) != keySize {
		return nil, fmt.Errorf("%s: key must be %d bytes, got %d", op, keySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create cipher: %w", op, err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create GCM: %w", op, err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext and returns the enveloped ciphertext. The nonce is
// prepended to the sealed bytes before encoding.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	const op = "internal.encryption.Encrypt"

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%s: failed to generate nonce: %w", op, err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)

	return envelopePrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an enveloped ciphertext produced by Encrypt. Values without
// the envelope, with broken encoding, or failing authentication return
// apperrors.ErrMalformedCiphertext.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	const op = "internal.encryption.Decrypt"

	if !IsEncrypted(ciphertext) {
		return "", fmt.Errorf("%s: missing envelope: %w", op, apperrors.ErrMalformedCiphertext)
	}

	sealed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, envelopePrefix))
	if err != nil {
		return "", fmt.Errorf("%s: failed to decode ciphertext: %w", op, apperrors.ErrMalformedCiphertext)
	}

	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("%s: ciphertext shorter than nonce: %w", op, apperrors.ErrMalformedCiphertext)
	}

	plaintext, err := c.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%s: failed to open ciphertext: %w", op, apperrors.ErrMalformedCiphertext)
	}

	return string(plaintext), nil
}

// IsEncrypted reports whether a stored value carries the encryption
// envelope. It never inspects the payload itself.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, envelopePrefix)
}

// Noop passes values through unchanged. It stands in for Cipher when no
// encryption key is configured.
type Noop struct{}

func (Noop) Encrypt(plaintext string) (string, error) {
	return plaintext, nil
}

func (Noop) Decrypt(ciphertext string) (string, error) {
	return ciphertext, nil
}
