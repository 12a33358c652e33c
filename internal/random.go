// Package internal holds helpers shared across authcore packages that
// are not part of the public API surface.
package internal

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// NewSessionID returns a 128-bit random identifier encoded as unpadded
// base64url. Suitable for session keys and opaque one-shot tokens.
func NewSessionID() (string, error) {
	var raw [16]byte
	if _, err := io.ReadFull(rand.Reader, raw[:]); err != nil {
		return "", fmt.Errorf("random source failed: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewOpaqueToken returns a random token of n bytes of entropy encoded as
// unpadded base64url.
func NewOpaqueToken(n int) (string, error) {
	if n < 16 {
		n = 16
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("random source failed: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// NewOTP returns a numeric one-time code of the given number of digits.
// Codes are drawn with crypto/rand and are left-padded with zeros.
func NewOTP(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", fmt.Errorf("otp digits out of range: %d", digits)
	}

	limit := big.NewInt(1)
	for i := 0; i < digits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("random source failed: %w", err)
	}

	return fmt.Sprintf("%0*d", digits, n), nil
}

// backupCodeAlphabet excludes visually ambiguous characters (0/O, 1/I/L).
const backupCodeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// NewBackupCode returns a human-typeable recovery code in the form
// XXXXX-XXXXX drawn from an unambiguous alphabet.
func NewBackupCode() (string, error) {
	var sb strings.Builder
	limit := big.NewInt(int64(len(backupCodeAlphabet)))

	for i := 0; i < 10; i++ {
		if i == 5 {
			sb.WriteByte('-')
		}
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("random source failed: %w", err)
		}
		sb.WriteByte(backupCodeAlphabet[n.Int64()])
	}

	return sb.String(), nil
}
