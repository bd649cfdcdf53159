// Package utils holds small helpers shared by pfbatch packages.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateID returns a random 12 character hex identifier, in the style of
// Docker short ids. Node ids use it.
func GenerateID() (string, error) {
	bytes := make([]byte, 6)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
