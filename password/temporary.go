package password

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// DefaultTemporaryLength is the length of a mailed reset password.
const DefaultTemporaryLength = 8

const temporaryAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateTemporary returns a random lowercase alphanumeric secret of length
// n that is easy to type from an email.
func GenerateTemporary(n int) (string, error) {
	if n <= 0 {
		n = DefaultTemporaryLength
	}
	limit := big.NewInt(int64(len(temporaryAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		out[i] = temporaryAlphabet[idx.Int64()]
	}
	return string(out), nil
}
