package topup

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// memoDigits gives a 10^8 code space; collisions among the handful of
// concurrently pending top-ups are negligible and retried anyway.
const memoDigits = 8

var memoSpace = new(big.Int).Exp(big.NewInt(10), big.NewInt(memoDigits), nil)

// MemoGenerator produces the short reference code a payer is asked to put in
// the bank transfer's free-text field, e.g. "DH55512345".
type MemoGenerator struct {
	prefix string
}

func NewMemoGenerator(prefix string) *MemoGenerator {
	return &MemoGenerator{prefix: prefix}
}

func (g *MemoGenerator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, memoSpace)
	if err != nil {
		return "", fmt.Errorf("memo code generation: %w", err)
	}
	return fmt.Sprintf("%s%0*d", g.prefix, memoDigits, n), nil
}
