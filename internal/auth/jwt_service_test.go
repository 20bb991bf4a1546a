package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJWTServiceIssueAndValidate(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{
		Secret: "test-secret",
		Issuer: "probuild-test",
	})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken("user-1", "session-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "session-1", claims.SessionID)
	require.Equal(t, "probuild-test", claims.Issuer)
}

func TestJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.Error(t, err)
}

func TestJWTServiceRejectsExpiredToken(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	issuer, err := NewJWTService(JWTConfig{
		Secret:         "test-secret",
		AccessTokenTTL: time.Minute,
		Clock:          func() time.Time { return issuedAt },
	})
	require.NoError(t, err)

	token, err := issuer.GenerateAccessToken("user-1", "")
	require.NoError(t, err)

	validator, err := NewJWTService(JWTConfig{
		Secret: "test-secret",
		Clock:  func() time.Time { return issuedAt.Add(time.Hour) },
	})
	require.NoError(t, err)

	_, err = validator.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestJWTServiceRejectsWrongIssuer(t *testing.T) {
	issuer, err := NewJWTService(JWTConfig{Secret: "test-secret", Issuer: "other"})
	require.NoError(t, err)

	token, err := issuer.GenerateAccessToken("user-1", "")
	require.NoError(t, err)

	validator, err := NewJWTService(JWTConfig{Secret: "test-secret", Issuer: "probuild"})
	require.NoError(t, err)

	_, err = validator.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestJWTServiceRejectsTamperedToken(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "test-secret"})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken("user-1", "")
	require.NoError(t, err)

	other, err := NewJWTService(JWTConfig{Secret: "different-secret"})
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	require.Error(t, err)
}
