package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	iauth "github.com/probuildhq/probuild/internal/auth"
	"github.com/probuildhq/probuild/internal/cache"
	testutil "github.com/probuildhq/probuild/internal/database/testutil"
	"github.com/probuildhq/probuild/internal/models"
	"github.com/probuildhq/probuild/internal/notifications"
	"github.com/probuildhq/probuild/internal/services"
	"github.com/probuildhq/probuild/pkg/mail"
)

func cleanerFixture(t *testing.T) (*gorm.DB, *Cleaner, time.Time) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	mailer := mail.New(mail.SMTPSettings{}, zap.NewNop())

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "maintenance-test-secret", Clock: clock})
	require.NoError(t, err)
	sessions, err := iauth.NewSessionService(db, jwt, iauth.SessionConfig{Clock: clock})
	require.NoError(t, err)

	hub := notifications.NewHub()
	preferences, err := services.NewPreferencesService(db)
	require.NoError(t, err)
	notifier, err := services.NewNotificationService(db, hub, preferences)
	require.NoError(t, err)

	invitations, err := services.NewInvitationService(db, mailer, notifier, services.WithInvitationClock(clock))
	require.NoError(t, err)
	resets, err := services.NewPasswordResetService(db, mailer, sessions, cache.NewMemoryStore(), services.WithResetClock(clock))
	require.NoError(t, err)

	cleaner := NewCleaner(sessions, invitations, resets)
	return db, cleaner, now
}

func TestCleanerRunOnce(t *testing.T) {
	db, cleaner, now := cleanerFixture(t)

	user := models.User{Email: "worker@example.com", FirstName: "Wren", LastName: "Okafor", Password: "x", IsActive: true}
	require.NoError(t, db.Create(&user).Error)
	project := models.Project{Name: "Harbour Works", OwnerID: user.ID}
	require.NoError(t, db.Create(&project).Error)

	stale := models.ProjectInvitation{
		ProjectID: project.ID,
		Email:     "late@example.com",
		Role:      models.RoleContractor,
		TokenHash: "hash-stale",
		Status:    models.InvitationPending,
		ExpiresAt: now.Add(-time.Hour),
	}
	fresh := models.ProjectInvitation{
		ProjectID: project.ID,
		Email:     "fresh@example.com",
		Role:      models.RoleContractor,
		TokenHash: "hash-fresh",
		Status:    models.InvitationPending,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, db.Create(&stale).Error)
	require.NoError(t, db.Create(&fresh).Error)

	used := now.Add(-2 * time.Hour)
	deadReset := models.PasswordResetToken{UserID: user.ID, TokenHash: "reset-dead", ExpiresAt: now.Add(time.Hour), UsedAt: &used}
	liveReset := models.PasswordResetToken{UserID: user.ID, TokenHash: "reset-live", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, db.Create(&deadReset).Error)
	require.NoError(t, db.Create(&liveReset).Error)

	expiredSession := models.Session{UserID: user.ID, RefreshToken: "session-dead", ExpiresAt: now.Add(-time.Minute)}
	liveSession := models.Session{UserID: user.ID, RefreshToken: "session-live", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, db.Create(&expiredSession).Error)
	require.NoError(t, db.Create(&liveSession).Error)

	require.NoError(t, cleaner.RunOnce(context.Background()))

	var invitation models.ProjectInvitation
	require.NoError(t, db.First(&invitation, "token_hash = ?", "hash-stale").Error)
	require.Equal(t, models.InvitationExpired, invitation.Status)
	invitation = models.ProjectInvitation{}
	require.NoError(t, db.First(&invitation, "token_hash = ?", "hash-fresh").Error)
	require.Equal(t, models.InvitationPending, invitation.Status)

	var resetCount int64
	require.NoError(t, db.Model(&models.PasswordResetToken{}).Count(&resetCount).Error)
	require.Equal(t, int64(1), resetCount)

	var sessionCount int64
	require.NoError(t, db.Model(&models.Session{}).Count(&sessionCount).Error)
	require.Equal(t, int64(1), sessionCount)
}

func TestCleanerStartRejectsBadSchedule(t *testing.T) {
	_, cleaner, _ := cleanerFixture(t)
	WithSchedule("not a cron spec")(cleaner)

	require.Error(t, cleaner.Start())
	cleaner.Stop()
}
