package crypter

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Layout: [0..1] uint16 version, [2..13] nonce, [14..] sealed payload with tag.
const (
	sealVersion uint16 = 1
	nonceSize          = 12
	keySize            = 32
)

var (
	// ErrNotConfigured indicates a missing key provider.
	ErrNotConfigured = errors.New("crypter: key provider not configured")
	// ErrEmptyPlaintext indicates nothing to seal.
	ErrEmptyPlaintext = errors.New("crypter: plaintext is empty")
	// ErrMissingKey indicates an empty static key.
	ErrMissingKey = errors.New("crypter: missing key")
	// ErrInvalidKeyLength indicates a key that is not 32 bytes.
	ErrInvalidKeyLength = errors.New("crypter: key must be 32 bytes")
	// ErrCiphertextTooShort indicates a truncated ciphertext.
	ErrCiphertextTooShort = errors.New("crypter: ciphertext too short")
	// ErrUnsupportedVersion indicates an unknown ciphertext layout.
	ErrUnsupportedVersion = errors.New("crypter: unsupported ciphertext version")
	// ErrOpenFailed indicates a wrong key, wrong scope or tampered ciphertext.
	ErrOpenFailed = errors.New("crypter: open failed")
)

// AESGCM implements Crypter with AES-256-GCM.
type AESGCM struct {
	keys KeyProvider
}

// NewAESGCM returns an AES-256-GCM crypter.
func NewAESGCM(keys KeyProvider) *AESGCM {
	return &AESGCM{keys: keys}
}

// Seal encrypts plaintext bound to scope.
func (a *AESGCM) Seal(plaintext []byte, scope Scope) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, ErrEmptyPlaintext
	}

	gcm, err := a.aead(scope)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("crypter: nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, additionalData(scope))

	out := make([]byte, 2+nonceSize+len(sealed))
	binary.BigEndian.PutUint16(out[:2], sealVersion)
	copy(out[2:2+nonceSize], nonce)
	copy(out[2+nonceSize:], sealed)

	return out, nil
}

// Open decrypts ciphertext sealed for the same scope.
func (a *AESGCM) Open(ciphertext []byte, scope Scope) ([]byte, error) {
	if len(ciphertext) < 2+nonceSize+1 {
		return nil, ErrCiphertextTooShort
	}
	if v := binary.BigEndian.Uint16(ciphertext[:2]); v != sealVersion {
		return nil, fmt.Errorf("crypter: version %d: %w", v, ErrUnsupportedVersion)
	}

	gcm, err := a.aead(scope)
	if err != nil {
		return nil, err
	}

	plain, err := gcm.Open(nil, ciphertext[2:2+nonceSize], ciphertext[2+nonceSize:], additionalData(scope))
	if err != nil {
		return nil, ErrOpenFailed
	}

	return plain, nil
}

func (a *AESGCM) aead(scope Scope) (cipher.AEAD, error) {
	if a == nil || a.keys == nil {
		return nil, ErrNotConfigured
	}

	key, err := a.keys.Key(scope)
	if err != nil {
		return nil, fmt.Errorf("crypter: key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("crypter: got %d bytes: %w", len(key), ErrInvalidKeyLength)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypter: aes: %w", err)
	}

	return cipher.NewGCM(block)
}

// additionalData hashes the canonical scope so its length is fixed and the
// raw subject never appears next to the ciphertext.
func additionalData(s Scope) []byte {
	sum := sha256.Sum256(fmt.Appendf(nil, "subject=%s\npurpose=%s\n", s.Subject, s.Purpose))
	return sum[:]
}
