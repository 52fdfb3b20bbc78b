// Package cryptox provides symmetric encryption helpers for values persisted
// at rest: report fields, JSON blocks and archived documents.
package cryptox

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/medreport/internal/logging"
	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
)

var (
	ErrEmptySecret    = errors.New("encryption secret is empty")
	ErrMalformed      = errors.New("ciphertext is malformed")
	ErrAuthentication = errors.New("ciphertext failed authentication")
)

// DeriveKey stretches a secret into a 32-byte AES key with argon2id.
func DeriveKey(secret []byte, salt []byte) []byte {
	x := argon2.IDKey(secret, salt, 1, 64*1024, 4, KeySize)
	return x
}

// FieldCipher encrypts individual string values with AES-256-GCM.
//
// Every Encrypt call draws a fresh random 12-byte nonce, so encrypting the
// same plaintext twice yields different ciphertexts. The stored form is
// base64(nonce || sealed), where sealed carries the GCM tag.
type FieldCipher struct {
	aead   cipher.AEAD
	logger logging.Logger
}

// NewFieldCipher derives the field key from secret and salt and returns a
// ready cipher. Decryption anomalies are reported to logger.
func NewFieldCipher(secret, salt []byte, logger logging.Logger) (*FieldCipher, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return NewFieldCipherWithKey(DeriveKey(secret, salt), logger)
}

// NewFieldCipherWithKey builds a FieldCipher over a raw AES key.
func NewFieldCipherWithKey(key []byte, logger logging.Logger) (*FieldCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FieldCipher{aead: aesgcm, logger: logger.With("component", "field-cipher")}, nil
}

// Encrypt seals plaintext and returns its base64 stored form.
//
// Example:
//
//	c, _ := cryptox.NewFieldCipher([]byte("secret"), []byte("salt"), log)
//	stored, err := c.Encrypt("Hemoglobin: 13.2 g/dL")
//	if err != nil {
//	    return err
//	}
//	plain := c.Decrypt(ctx, stored) // "Hemoglobin: 13.2 g/dL"
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	sealed, err := c.SealBytes([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open is the strict inverse of Encrypt. It returns ErrMalformed when the
// input is not a well-formed stored value and ErrAuthentication when the tag
// does not verify.
func (c *FieldCipher) Open(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	plain, err := c.OpenBytes(raw)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Decrypt recovers the plaintext of a stored value. Values that are not
// ciphertext (legacy plaintext rows, truncated blobs, data sealed with
// another key) are returned unchanged and a warning is logged.
func (c *FieldCipher) Decrypt(ctx context.Context, ciphertext string) string {
	plain, err := c.Open(ciphertext)
	if err != nil {
		c.logger.Warn(ctx, "field decryption failed, returning stored value", "error", err, "length", len(ciphertext))
		return ciphertext
	}
	return plain
}

// EncryptJSON serializes v to JSON and encrypts the result.
func (c *FieldCipher) EncryptJSON(v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return c.Encrypt(string(plaintext))
}

// OpenJSON decrypts ciphertext and unmarshals the JSON into v.
func (c *FieldCipher) OpenJSON(ciphertext string, v any) error {
	plain, err := c.Open(ciphertext)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(plain), v)
}

// SealBytes encrypts data and returns nonce || sealed.
func (c *FieldCipher) SealBytes(data []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, NonceSize+len(data)+c.aead.Overhead())
	out = append(out, nonce...)
	return c.aead.Seal(out, nonce, data, nil), nil
}

// OpenBytes is the inverse of SealBytes.
func (c *FieldCipher) OpenBytes(data []byte) ([]byte, error) {
	if len(data) < NonceSize+c.aead.Overhead() {
		return nil, ErrMalformed
	}
	nonce, sealed := data[:NonceSize], data[NonceSize:]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plain, nil
}
