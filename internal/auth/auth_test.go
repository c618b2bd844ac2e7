package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenggwsx/RoomGate/internal/config"
)

var testJWT = config.JWTConfig{Secret: "s3cret", Issuer: "roomgate", Expiration: time.Hour}

func TestTokenRoundTrip(t *testing.T) {
	token, expiresAt, err := NewToken(testJWT, "ops", RoleAdmin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := ParseToken(testJWT, token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestParseToken_Rejects(t *testing.T) {
	token, _, err := NewToken(testJWT, "ops", RoleAdmin)
	require.NoError(t, err)

	other := testJWT
	other.Secret = "different"
	_, err = ParseToken(other, token)
	assert.Error(t, err)

	otherIssuer := testJWT
	otherIssuer.Issuer = "someone-else"
	_, err = ParseToken(otherIssuer, token)
	assert.Error(t, err)

	expired := testJWT
	expired.Expiration = -time.Minute
	stale, _, err := NewToken(expired, "ops", RoleAdmin)
	require.NoError(t, err)
	_, err = ParseToken(testJWT, stale)
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)

	assert.NoError(t, ComparePassword(hash, "hunter2"))
	assert.Error(t, ComparePassword(hash, "wrong"))

	_, err = HashPassword("")
	assert.Error(t, err)
}
