package auth

import (
	"testing"
	"time"

	"creditbot/config"
	"creditbot/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	cfg := &config.JWTConfig{AccessSecret: "s3cret", AccessExpiry: time.Hour, Issuer: "creditbot"}
	tok, err := GenerateAccessToken(cfg, 77)
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, tok)
	require.NoError(t, err)
	require.EqualValues(t, 77, claims.AdminID)
	require.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestTokenRejected(t *testing.T) {
	cfg := &config.JWTConfig{AccessSecret: "s3cret", AccessExpiry: time.Hour, Issuer: "creditbot"}
	tok, err := GenerateAccessToken(cfg, 77)
	require.NoError(t, err)

	other := *cfg
	other.AccessSecret = "different"
	_, err = ParseAccessToken(&other, tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired := *cfg
	expired.AccessExpiry = -time.Minute
	old, err := GenerateAccessToken(&expired, 77)
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, old)
	require.ErrorIs(t, err, ErrInvalidToken)
}
