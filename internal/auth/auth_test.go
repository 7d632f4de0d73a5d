package auth_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbill/openbill/internal/auth"
)

func TestTokens_RoundTrip(t *testing.T) {
	tokens := auth.New("test-secret", time.Hour)

	userID := uuid.New()

	signed, err := tokens.Issue(userID, time.Now())
	require.NoError(t, err)

	got, err := tokens.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestTokens_RejectsExpired(t *testing.T) {
	tokens := auth.New("test-secret", time.Hour)

	signed, err := tokens.Issue(uuid.New(), time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	_, err = tokens.Verify(signed)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokens_RejectsWrongSecret(t *testing.T) {
	signed, err := auth.New("secret-a", time.Hour).Issue(uuid.New(), time.Now())
	require.NoError(t, err)

	_, err = auth.New("secret-b", time.Hour).Verify(signed)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokens_RejectsGarbage(t *testing.T) {
	_, err := auth.New("secret", time.Hour).Verify("not-a-token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
