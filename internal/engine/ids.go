package engine

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

const (
	idBytes       = 6
	maxIDAttempts = 16
)

// newID returns 12 hex characters taken from the random part of a v4 UUID.
func newID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generating id: %w", err)
	}
	return hex.EncodeToString(u[:idBytes]), nil
}

// uniqueID generates ids until taken reports one as free.
func uniqueID(gen func() (string, error), taken func(string) bool) (string, error) {
	for range maxIDAttempts {
		id, err := gen()
		if err != nil {
			return "", err
		}
		if !taken(id) {
			return id, nil
		}
	}
	return "", ErrIDExhausted
}
