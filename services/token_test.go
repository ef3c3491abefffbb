package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"chat-engine/models"
)

func TestTokenRoundTrip(t *testing.T) {
	user := &models.User{ID: "user1", Role: models.RoleAdmin}

	token, err := GenerateToken(user, "secret")
	require.NoError(t, err)

	claims, err := ParseToken(token, "secret")
	require.NoError(t, err)
	require.Equal(t, "user1", claims.Subject)
	require.Equal(t, models.RoleAdmin, claims.Role)
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken(&models.User{ID: "user1", Role: models.RoleUser}, "secret")
	require.NoError(t, err)

	_, err = ParseToken(token, "other-secret")
	require.Error(t, err)
}

func TestTokenRequiresSecret(t *testing.T) {
	_, err := GenerateToken(&models.User{ID: "user1"}, "")
	require.Error(t, err)
}
