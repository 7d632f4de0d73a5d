// Package token generates the unguessable identifiers used on public
// invoice endpoints. Tokens are assigned once and never rotated, so
// collisions are left to the store's uniqueness constraints.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	// PaymentLength is the length of a payment token in hex characters.
	PaymentLength = 64

	// ViewLength is the length of a view token.
	ViewLength = 64

	viewAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Payment returns a 64-character lowercase hex token (32 random bytes).
func Payment() (string, error) {
	buf := make([]byte, PaymentLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

// View returns a 64-character alphanumeric token.
func View() (string, error) {
	size := big.NewInt(int64(len(viewAlphabet)))

	buf := make([]byte, ViewLength)

	for i := range buf {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("reading random index: %w", err)
		}

		buf[i] = viewAlphabet[n.Int64()]
	}

	return string(buf), nil
}
