package appointment

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"

	"github.com/cockroachdb/errors"
)

const CodeLength = 4

var codeSpace = big.NewInt(10_000)

// GenerateCode returns a uniformly random zero-padded 4-digit code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", errors.Wrap(err, "generate confirmation code")
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

func codesMatch(expected, given string) bool {
	return len(given) == CodeLength &&
		subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}
