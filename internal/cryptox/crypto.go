// Package cryptox implements at-rest encryption for blob payloads:
// AES-GCM with a key derived from a passphrase via Argon2id.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const nonceSize = 12

// DeriveKey derives a 32-byte AES key from a passphrase and salt using
// Argon2id with interactive-login parameters.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32)
}

// GenerateSalt returns size cryptographically random bytes.
func GenerateSalt(size int) ([]byte, error) {
	salt := make([]byte, size)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}

// EncryptBlob encrypts data with AES-GCM under key. The random nonce is
// prepended to the ciphertext so the result is self-contained.
//
// The key must be 16, 24, or 32 bytes (AES-128/192/256).
func EncryptBlob(data, key []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return aesgcm.Seal(nonce, nonce, data, nil), nil
}

// DecryptBlob reverses EncryptBlob. It expects the nonce in the first
// 12 bytes of sealed.
func DecryptBlob(sealed, key []byte) ([]byte, error) {
	if len(sealed) < nonceSize {
		return nil, errors.New("sealed blob too short")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := aesgcm.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting blob: %w", err)
	}
	return plaintext, nil
}
