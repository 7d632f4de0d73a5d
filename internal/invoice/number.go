package invoice

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/openbill/openbill/internal/token"
)

func defaultTokenSource() TokenSource {
	return TokenSource{
		Payment: token.Payment,
		View:    token.View,
	}
}

// newNumber builds a human-readable invoice number: prefix, year and
// month, then a 4-digit random suffix. The suffix space is narrow on
// purpose; uniqueness comes from the store constraint and the retry in
// Create, not from this function.
func (s *Service) newNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("generating invoice number: %w", err)
	}

	return fmt.Sprintf("%s%s-%04d", s.numberPrefix, s.now().Format("200601"), n.Int64()), nil
}
