package app

import (
	"crypto/rand"
	"encoding/hex"
)

// generateID produces a 32-character random hex identifier for new reservations.
func generateID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
