package token_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbill/openbill/internal/token"
)

func TestPayment(t *testing.T) {
	got, err := token.Payment()
	require.NoError(t, err)

	assert.Len(t, got, 64)

	for _, c := range got {
		assert.Contains(t, "0123456789abcdef", string(c))
	}
}

func TestView(t *testing.T) {
	got, err := token.View()
	require.NoError(t, err)

	assert.Len(t, got, 64)

	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	for _, c := range got {
		assert.True(t, strings.ContainsRune(alphabet, c), "unexpected character %q", c)
	}
}

func TestTokensDiffer(t *testing.T) {
	seen := make(map[string]struct{})

	for i := 0; i < 100; i++ {
		p, err := token.Payment()
		require.NoError(t, err)

		v, err := token.View()
		require.NoError(t, err)

		_, dup := seen[p]
		require.False(t, dup)
		seen[p] = struct{}{}

		_, dup = seen[v]
		require.False(t, dup)
		seen[v] = struct{}{}
	}
}
