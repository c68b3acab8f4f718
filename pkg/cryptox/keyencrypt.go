package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
)

// MasterKeyEnv is consulted when no master key file is configured.
const MasterKeyEnv = "TOUPIAO_MASTER_KEY"

var ErrCiphertextTooShort = errors.New("cryptox: ciphertext too short")

// KeyCipher seals signing key material at rest with AES-256-GCM. The key is
// the SHA-256 of the configured master key material.
type KeyCipher struct {
	aead cipher.AEAD

	// Ephemeral is set when no master key was configured and a random one
	// was generated for this process only.
	Ephemeral bool
}

// NewKeyCipher derives an AES-256 key from material.
func NewKeyCipher(material []byte) (*KeyCipher, error) {
	if len(material) == 0 {
		return nil, errors.New("cryptox: empty master key material")
	}
	key := sha256.Sum256(material)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptox: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create gcm: %w", err)
	}
	return &KeyCipher{aead: aead}, nil
}

// LoadKeyCipher reads the master key from path, then from MasterKeyEnv.
// With neither set it falls back to a random key; keys sealed with it do
// not survive a restart.
func LoadKeyCipher(path string) (*KeyCipher, error) {
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
		if err != nil {
			return nil, fmt.Errorf("cryptox: read master key: %w", err)
		}
		return NewKeyCipher(data)
	}
	if v := os.Getenv(MasterKeyEnv); v != "" {
		return NewKeyCipher([]byte(v))
	}

	material := make([]byte, 32)
	if _, err := rand.Read(material); err != nil {
		return nil, fmt.Errorf("cryptox: generate master key: %w", err)
	}
	kc, err := NewKeyCipher(material)
	if err != nil {
		return nil, err
	}
	kc.Ephemeral = true
	return kc, nil
}

// Seal encrypts plaintext. Output layout: nonce | ciphertext | tag.
func (c *KeyCipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cryptox: generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal and authenticates the data.
func (c *KeyCipher) Open(sealed []byte) ([]byte, error) {
	n := c.aead.NonceSize()
	if len(sealed) < n+c.aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	plaintext, err := c.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("cryptox: decrypt: %w", err)
	}
	return plaintext, nil
}
