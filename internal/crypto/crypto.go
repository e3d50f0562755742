// Package crypto provides payload encryption for records in transit to
// the remote store. Uses AES-256-GCM for authenticated encryption.
// Key lifecycle (generation, persistence, wipe on signout) belongs to
// the caller; this package only seals and opens payloads.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
)

var (
	// ErrInvalidCiphertext is returned when decryption fails.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	// ErrInvalidKey is returned when the key is empty.
	ErrInvalidKey = errors.New("invalid key")
)

// Cipher is the encryption port the sync engine depends on. The only
// guarantee required of an implementation is Decrypt(Encrypt(x)) == x.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// AESCipher implements Cipher with AES-256-GCM. The key is derived from
// the input passphrase using SHA-256; each Encrypt call uses a fresh
// random nonce prepended to the ciphertext.
type AESCipher struct {
	aead cipher.AEAD
}

// NewAESCipher creates an AESCipher from a passphrase.
func NewAESCipher(passphrase string) (*AESCipher, error) {
	if passphrase == "" {
		return nil, ErrInvalidKey
	}

	derived := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(derived[:])
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &AESCipher{aead: aead}, nil
}

// Encrypt seals plaintext, returning nonce || ciphertext.
func (c *AESCipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens data produced by Encrypt.
func (c *AESCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrInvalidCiphertext
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	return plaintext, nil
}

// DeriveKey derives a stable key from a device-specific identifier.
// Falls back to a fixed application identifier when no device id is
// available; platform key stores are the caller's concern.
func DeriveKey(deviceID string) []byte {
	if deviceID == "" {
		deviceID = "dietdaily-default-key"
	}
	hash := sha256.Sum256([]byte("dietdaily:" + deviceID))
	return hash[:]
}

// Noop implements Cipher without transforming payloads. Used when the
// remote backend already encrypts at rest and in tests.
type Noop struct{}

// Encrypt returns the plaintext unchanged.
func (Noop) Encrypt(plaintext []byte) ([]byte, error) { return plaintext, nil }

// Decrypt returns the ciphertext unchanged.
func (Noop) Decrypt(ciphertext []byte) ([]byte, error) { return ciphertext, nil }
