// internal/crypto/crypto.go
//
// This package protects secrets kept in the chessBlocker configuration file.
// Values are sealed with AES-256-GCM and stored as "enc:<hex>" so that the
// SSH/sudo password does not sit in the YAML file in plain text.

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	// EncryptedPrefix marks a configuration value as sealed.
	EncryptedPrefix = "enc:"
)

// Cipher seals and opens configuration secrets.
type Cipher struct {
	key []byte
}

// NewCipher derives a KeySize-byte key from the passphrase with SHA-256.
func NewCipher(passphrase string) *Cipher {
	var key [KeySize]byte = sha256.Sum256([]byte(passphrase))
	return &Cipher{key: key[:]}
}

// Encrypt returns hex(nonce || ciphertext).
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	aesGCM, err := c.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aesGCM.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(encryptedHex string) (string, error) {
	combined, err := hex.DecodeString(encryptedHex)
	if err != nil {
		return "", fmt.Errorf("failed to decode hex: %w", err)
	}

	aesGCM, err := c.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := aesGCM.NonceSize()
	if len(combined) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	plaintext, err := aesGCM.Open(nil, combined[:nonceSize], combined[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

// Seal returns the value in its "enc:" configuration form.
func (c *Cipher) Seal(plaintext string) (string, error) {
	hexed, err := c.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	return EncryptedPrefix + hexed, nil
}

// Open decrypts "enc:" values and passes everything else through unchanged.
// A nil Cipher can only open plain values.
func (c *Cipher) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	if c == nil {
		return "", fmt.Errorf("value is encrypted but no secret key is configured")
	}
	return c.Decrypt(strings.TrimPrefix(value, EncryptedPrefix))
}

// IsSealed reports whether the value carries the "enc:" prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

func (c *Cipher) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aesGCM, nil
}
