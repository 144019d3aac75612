package util

import "github.com/google/uuid"

// PsuUUID returns a pseudorandom UUID string for session correlation
func PsuUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
