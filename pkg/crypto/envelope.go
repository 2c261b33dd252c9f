// Package crypto implements the envelope that keeps all persisted
// conversation content opaque at rest: a slow password-based key
// derivation plus authenticated symmetric encryption.
//
// The derived key exists only in process memory for the lifetime of a
// login session. It is never persisted and never logged.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the derived key length in bytes (AES-256).
	KeySize = 32

	// Iterations is the PBKDF2 stretch count. Deliberately expensive so an
	// offline attacker pays the same cost per guess.
	Iterations = 480000
)

// ErrDecryption is returned when a ciphertext cannot be authenticated:
// wrong key, rotated key, or tampered/corrupted data. Callers substitute a
// visible placeholder rather than aborting bulk loads.
var ErrDecryption = errors.New("crypto: decryption failed")

// DeriveKey stretches a user secret into a fixed-size symmetric key.
// The same secret and salt always yield the same key.
func DeriveKey(secret, salt []byte) []byte {
	return pbkdf2.Key(secret, salt, Iterations, KeySize, sha256.New)
}

// Encrypt seals plaintext with AES-256-GCM under the given key. The random
// nonce is prefixed to the returned ciphertext.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("crypto: generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a nonce-prefixed AES-256-GCM ciphertext. Any authentication
// failure is reported as ErrDecryption; plaintext is never guessed at.
func Decrypt(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("%w: ciphertext shorter than nonce", ErrDecryption)
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return plaintext, nil
}

// Zero overwrites key material in place. Called when a session ends.
func Zero(key []byte) {
	for i := range key {
		key[i] = 0
	}
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("crypto: invalid key length %d, want %d", len(key), KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: create GCM: %w", err)
	}
	return gcm, nil
}
