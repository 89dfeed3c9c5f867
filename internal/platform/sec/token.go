// Copyright (c) 2026 Torii. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerateSecureToken returns a hex-encoded random token of byteLength bytes.
//
// Used for refresh tokens, which are opaque to clients and never decoded.
func GenerateSecureToken(byteLength int) (string, error) {
	buffer := make([]byte, byteLength)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("auth: failed to generate secure token: %w", err)
	}
	return hex.EncodeToString(buffer), nil
}

// HashToken returns the hex-encoded SHA-256 digest of a token.
//
// Refresh tokens are stored hashed so a database leak does not expose
// usable credentials. SHA-256 (not bcrypt) because the input is already
// high-entropy random data.
func HashToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}
