package crypto

import "github.com/google/uuid"

// NewID generates a UUIDv7 string. Time-ordered, so IDs sort
// lexicographically in creation order.
func NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
