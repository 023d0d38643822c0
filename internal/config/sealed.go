package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	saltLength  = 16
	nonceLength = 24
	keyLength   = 32
)

var (
	// ErrMissingSecretKey is returned when sealing or opening without a key.
	ErrMissingSecretKey = errors.New("config: secret_key is not configured")
	// ErrSealedSecret is returned when a sealed value cannot be opened.
	ErrSealedSecret = errors.New("config: sealed secret cannot be opened")
)

// SealSecret encrypts plaintext with a key derived from passphrase. The
// result is base64url text holding salt, nonce and box.
func SealSecret(plaintext, passphrase string) (string, error) {
	if passphrase == "" {
		return "", ErrMissingSecretKey
	}

	buf := make([]byte, saltLength+nonceLength)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("config: generate nonce: %w", err)
	}
	salt := buf[:saltLength]

	var nonce [nonceLength]byte
	copy(nonce[:], buf[saltLength:])

	key := deriveKey(passphrase, salt)
	sealed := secretbox.Seal(buf, []byte(plaintext), &nonce, &key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// OpenSealedSecret reverses SealSecret.
func OpenSealedSecret(sealed, passphrase string) (string, error) {
	if passphrase == "" {
		return "", ErrMissingSecretKey
	}

	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < saltLength+nonceLength+secretbox.Overhead {
		return "", ErrSealedSecret
	}

	salt := raw[:saltLength]
	var nonce [nonceLength]byte
	copy(nonce[:], raw[saltLength:saltLength+nonceLength])

	key := deriveKey(passphrase, salt)
	plaintext, ok := secretbox.Open(nil, raw[saltLength+nonceLength:], &nonce, &key)
	if !ok {
		return "", ErrSealedSecret
	}
	return string(plaintext), nil
}

func deriveKey(passphrase string, salt []byte) [keyLength]byte {
	var key [keyLength]byte
	copy(key[:], argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, keyLength))
	return key
}
