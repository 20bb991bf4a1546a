package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/probuildhq/probuild/internal/database/testutil"
	apperrors "github.com/probuildhq/probuild/pkg/errors"
)

func TestUserServiceRegisterAndAuthenticate(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	svc, err := NewUserService(db)
	require.NoError(t, err)

	ctx := context.Background()
	user, err := svc.Register(ctx, RegisterInput{
		Email:    "Crew@Example.com",
		Password: "super-secret",
		Company:  "Hargrove Builders",
		Trade:    "electrical",
	})
	require.NoError(t, err)
	require.Equal(t, "crew@example.com", user.Email)
	require.NotEqual(t, "super-secret", user.Password)

	// New accounts start with default preferences.
	prefs := NormaliseUserPreferences(user.Preferences)
	require.True(t, prefs.Notifications.SoundsEnabled)

	authed, err := svc.Authenticate(ctx, "crew@example.com", "super-secret", "10.0.0.9")
	require.NoError(t, err)
	require.Equal(t, user.ID, authed.ID)
	require.NotNil(t, authed.LastLoginAt)

	_, err = svc.Register(ctx, RegisterInput{Email: "crew@example.com", Password: "super-secret"})
	require.Error(t, err)
}

func TestUserServiceAuthenticateFailures(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	svc, err := NewUserService(db)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svc.Register(ctx, RegisterInput{Email: "crew@example.com", Password: "super-secret"})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "crew@example.com", "wrong-pass", "")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	// Unknown accounts fail with the same error as bad passwords.
	_, err = svc.Authenticate(ctx, "ghost@example.com", "whatever", "")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestUserServiceLockout(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	current := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	svc, err := NewUserService(db, WithUserClock(func() time.Time { return current }))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svc.Register(ctx, RegisterInput{Email: "crew@example.com", Password: "super-secret"})
	require.NoError(t, err)

	for i := 0; i < maxFailedLogins; i++ {
		_, err = svc.Authenticate(ctx, "crew@example.com", "wrong-pass", "")
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	}

	// The lockout holds even for the right password.
	_, err = svc.Authenticate(ctx, "crew@example.com", "super-secret", "")
	require.ErrorIs(t, err, apperrors.ErrAccountLocked)

	current = current.Add(lockoutDuration + time.Minute)

	authed, err := svc.Authenticate(ctx, "crew@example.com", "super-secret", "")
	require.NoError(t, err)
	require.Zero(t, authed.FailedAttempts)
}

func TestUserServiceUpdateProfileAndChangePassword(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	svc, err := NewUserService(db)
	require.NoError(t, err)

	ctx := context.Background()
	user, err := svc.Register(ctx, RegisterInput{Email: "crew@example.com", Password: "super-secret"})
	require.NoError(t, err)

	company := "Hargrove Builders"
	updated, err := svc.UpdateProfile(ctx, user.ID, UpdateProfileInput{Company: &company})
	require.NoError(t, err)
	require.Equal(t, company, updated.Company)

	require.ErrorIs(t,
		svc.ChangePassword(ctx, user.ID, "wrong", "next-secret-1"),
		apperrors.ErrInvalidCredentials)
	require.NoError(t, svc.ChangePassword(ctx, user.ID, "super-secret", "next-secret-1"))

	_, err = svc.Authenticate(ctx, user.Email, "next-secret-1", "")
	require.NoError(t, err)
}
