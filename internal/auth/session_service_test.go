package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/probuildhq/probuild/internal/database/testutil"
	"github.com/probuildhq/probuild/internal/models"
)

func newSessionFixture(t *testing.T, cfg SessionConfig) (*SessionService, *models.User) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	user := &models.User{
		Email:    "foreman@example.com",
		Password: "hashed",
	}
	require.NoError(t, db.Create(user).Error)

	jwtSvc, err := NewJWTService(JWTConfig{Secret: "test-secret"})
	require.NoError(t, err)

	svc, err := NewSessionService(db, jwtSvc, cfg)
	require.NoError(t, err)

	return svc, user
}

func TestSessionServiceCreateAndRefresh(t *testing.T) {
	svc, user := newSessionFixture(t, SessionConfig{})

	pair, session, err := svc.CreateSession(user.ID, SessionMetadata{IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, user.ID, session.UserID)

	rotated, refreshed, err := svc.RefreshSession(pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	require.Equal(t, session.ID, refreshed.ID)

	// The previous refresh token must no longer resolve.
	_, _, err = svc.RefreshSession(pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionServiceRevoke(t *testing.T) {
	svc, user := newSessionFixture(t, SessionConfig{})

	pair, session, err := svc.CreateSession(user.ID, SessionMetadata{})
	require.NoError(t, err)

	require.NoError(t, svc.RevokeSession(session.ID))

	_, _, err = svc.RefreshSession(pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionRevoked)

	// Revoking twice reports not found since the session already left the active set.
	require.ErrorIs(t, svc.RevokeSession(session.ID), ErrSessionNotFound)
}

func TestSessionServiceExpiredRefreshRejected(t *testing.T) {
	current := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	svc, user := newSessionFixture(t, SessionConfig{
		RefreshTokenTTL: time.Hour,
		Clock:           func() time.Time { return current },
	})

	pair, _, err := svc.CreateSession(user.ID, SessionMetadata{})
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)

	_, _, err = svc.RefreshSession(pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestSessionServiceRevokeUserSessionsAndCleanup(t *testing.T) {
	current := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	svc, user := newSessionFixture(t, SessionConfig{
		RefreshTokenTTL: time.Hour,
		Clock:           func() time.Time { return current },
	})

	_, _, err := svc.CreateSession(user.ID, SessionMetadata{})
	require.NoError(t, err)
	_, _, err = svc.CreateSession(user.ID, SessionMetadata{})
	require.NoError(t, err)

	require.NoError(t, svc.RevokeUserSessions(user.ID))

	removed, err := svc.CleanupExpired(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)
}
