// Package password derives and verifies stored credentials with scrypt.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	saltLen   = 16
	keyLen    = 64
	scryptN   = 16384
	scryptR   = 8
	scryptP   = 1
	separator = "."
)

var ErrMalformedHash = errors.New("malformed password hash")

// Hash returns "<hex key>.<hex salt>" for plain.
func Hash(plain string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	saltHex := hex.EncodeToString(salt)

	key, err := derive(plain, saltHex)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(key) + separator + saltHex, nil
}

// Verify reports whether plain matches the stored hash. The comparison of
// derived keys runs in constant time.
func Verify(plain, stored string) (bool, error) {
	keyHex, saltHex, ok := strings.Cut(stored, separator)
	if !ok || keyHex == "" || saltHex == "" {
		return false, ErrMalformedHash
	}
	want, err := hex.DecodeString(keyHex)
	if err != nil {
		return false, ErrMalformedHash
	}

	got, err := derive(plain, saltHex)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

// NewResetToken returns 32 random bytes, hex encoded.
func NewResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func derive(plain, salt string) ([]byte, error) {
	key, err := scrypt.Key([]byte(plain), []byte(salt), scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}
