package proxy

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// DefaultIDLength gives 36^8 (about 2.8e12) possible proxy IDs
	DefaultIDLength = 8

	// IDAlphabet is the set of characters a proxy ID is drawn from
	IDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

/* GenerateID returns a random token of the given length
 * Every character is drawn independently and uniformly from IDAlphabet.
 * There is no uniqueness guarantee here, see Service.Register for the collision check.
 */
func GenerateID(length int) (string, error) {
	if length <= 0 {
		length = DefaultIDLength
	}
	id, err := gonanoid.Generate(IDAlphabet, length)
	if err != nil {
		return "", fmt.Errorf("generating id: %w", err)
	}
	return id, nil
}
