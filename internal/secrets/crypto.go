package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// KeySize is the secretbox key size
	KeySize = 32
	// NonceSize is the secretbox nonce size
	NonceSize = 24
)

// ErrDecrypt means the key is wrong or the data was tampered with.
var ErrDecrypt = errors.New("decryption failed (wrong key or corrupted data)")

// DeriveKey derives a key from the store passphrase
func DeriveKey(passphrase string) [KeySize]byte {
	return sha256.Sum256([]byte(passphrase))
}

// Encrypt seals plaintext with a random nonce. The nonce is prepended to the result.
func Encrypt(plaintext []byte, key *[KeySize]byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, key), nil
}

// Decrypt opens data produced by Encrypt
func Decrypt(sealed []byte, key *[KeySize]byte) ([]byte, error) {
	if len(sealed) < NonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("encrypted data too short (minimum %d bytes)", NonceSize+secretbox.Overhead)
	}

	var nonce [NonceSize]byte
	copy(nonce[:], sealed[:NonceSize])

	plaintext, ok := secretbox.Open(nil, sealed[NonceSize:], &nonce, key)
	if !ok {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
