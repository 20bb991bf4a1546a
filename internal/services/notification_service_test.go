package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/probuildhq/probuild/internal/database/testutil"
	"github.com/probuildhq/probuild/internal/models"
	"github.com/probuildhq/probuild/internal/notifications"
	apperrors "github.com/probuildhq/probuild/pkg/errors"
)

func newNotificationFixture(t *testing.T) (*NotificationService, *PreferencesService, *gorm.DB, *models.User) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	user := &models.User{
		Email:    "mason@example.com",
		Password: "hashed",
	}
	require.NoError(t, db.Create(user).Error)

	prefs, err := NewPreferencesService(db)
	require.NoError(t, err)

	svc, err := NewNotificationService(db, notifications.NewHub(), prefs)
	require.NoError(t, err)

	return svc, prefs, db, user
}

func seedNotification(t *testing.T, db *gorm.DB, userID, priority string, createdAt time.Time) models.Notification {
	t.Helper()

	row := models.Notification{
		UserID:   userID,
		Type:     "project.update",
		Title:    "Schedule changed",
		Priority: priority,
	}
	require.NoError(t, db.Create(&row).Error)
	require.NoError(t, db.Model(&row).Update("created_at", createdAt).Error)
	row.CreatedAt = createdAt
	return row
}

func TestNotificationServiceCreate(t *testing.T) {
	svc, _, _, user := newNotificationFixture(t)

	ctx := context.Background()
	dto, err := svc.Create(ctx, CreateNotificationInput{
		UserID:   user.ID,
		Type:     "invitation.received",
		Title:    "You were invited",
		Message:  "Riverside duplex needs an electrician",
		Priority: "high",
		Metadata: map[string]any{"project_id": "proj-1"},
	})
	require.NoError(t, err)
	require.Equal(t, notifications.PriorityHigh, dto.Priority)
	require.Equal(t, notifications.SoundHigh, dto.Sound)
	require.False(t, dto.IsRead)
	require.Equal(t, "proj-1", dto.Metadata["project_id"])
}

func TestNotificationServiceCreateDefaultsPriority(t *testing.T) {
	svc, _, _, user := newNotificationFixture(t)

	dto, err := svc.Create(context.Background(), CreateNotificationInput{
		UserID: user.ID,
		Type:   "project.update",
		Title:  "Permit approved",
	})
	require.NoError(t, err)
	require.Equal(t, notifications.PriorityNormal, dto.Priority)
	require.Equal(t, notifications.SoundNormal, dto.Sound)
}

func TestNotificationServiceSoundSuppressedByPreference(t *testing.T) {
	svc, prefs, _, user := newNotificationFixture(t)
	ctx := context.Background()

	updated := DefaultUserPreferences()
	updated.Notifications.SoundsEnabled = false
	_, err := prefs.Update(ctx, user.ID, updated)
	require.NoError(t, err)

	dto, err := svc.Create(ctx, CreateNotificationInput{
		UserID:   user.ID,
		Type:     "deadline.alert",
		Title:    "Inspection tomorrow",
		Priority: "urgent",
	})
	require.NoError(t, err)
	require.Equal(t, notifications.PriorityUrgent, dto.Priority)
	require.Equal(t, notifications.SoundNone, dto.Sound)
}

func TestNotificationServiceListPriorityOrder(t *testing.T) {
	svc, _, db, user := newNotificationFixture(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	low := seedNotification(t, db, user.ID, "low", base.Add(3*time.Hour))
	urgent := seedNotification(t, db, user.ID, "urgent", base)
	highOld := seedNotification(t, db, user.ID, "high", base.Add(time.Hour))
	highNew := seedNotification(t, db, user.ID, "high", base.Add(2*time.Hour))
	future := seedNotification(t, db, user.ID, "critical-v2", base.Add(4*time.Hour))

	items, err := svc.ListForUser(ctx, ListNotificationsInput{
		UserID: user.ID,
		Order:  notifications.OrderPriority,
	})
	require.NoError(t, err)
	require.Len(t, items, 5)

	// Urgent first, then high with ties broken newest-first, then low, and
	// the unrecognised priority last.
	require.Equal(t, urgent.ID, items[0].ID)
	require.Equal(t, highNew.ID, items[1].ID)
	require.Equal(t, highOld.ID, items[2].ID)
	require.Equal(t, low.ID, items[3].ID)
	require.Equal(t, future.ID, items[4].ID)
	require.Equal(t, notifications.Priority("critical-v2"), items[4].Priority)
}

func TestNotificationServiceListNewestOrder(t *testing.T) {
	svc, _, db, user := newNotificationFixture(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	older := seedNotification(t, db, user.ID, "urgent", base)
	newer := seedNotification(t, db, user.ID, "low", base.Add(time.Hour))

	items, err := svc.ListForUser(ctx, ListNotificationsInput{
		UserID: user.ID,
		Order:  notifications.OrderNewest,
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Recency wins regardless of priority.
	require.Equal(t, newer.ID, items[0].ID)
	require.Equal(t, older.ID, items[1].ID)
}

func TestNotificationServiceMarkReadIsIdempotent(t *testing.T) {
	svc, _, _, user := newNotificationFixture(t)
	ctx := context.Background()

	dto, err := svc.Create(ctx, CreateNotificationInput{
		UserID: user.ID,
		Type:   "project.update",
		Title:  "Concrete pour rescheduled",
	})
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(ctx, user.ID, dto.ID))
	// Already read and unknown ids are both quiet no-ops.
	require.NoError(t, svc.MarkRead(ctx, user.ID, dto.ID))
	require.NoError(t, svc.MarkRead(ctx, user.ID, "no-such-notification"))

	count, err := svc.UnreadCount(ctx, user.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestNotificationServiceMarkAllRead(t *testing.T) {
	svc, _, db, user := newNotificationFixture(t)
	ctx := context.Background()

	// Safe with no notifications at all.
	require.NoError(t, svc.MarkAllRead(ctx, user.ID))

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	seedNotification(t, db, user.ID, "urgent", base)
	seedNotification(t, db, user.ID, "normal", base.Add(time.Minute))

	require.NoError(t, svc.MarkAllRead(ctx, user.ID))

	count, err := svc.UnreadCount(ctx, user.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestNotificationServiceSummaryEmphasis(t *testing.T) {
	svc, _, db, user := newNotificationFixture(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	seedNotification(t, db, user.ID, "high", base)

	summary, err := svc.Summary(ctx, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, summary.UnreadCount)
	require.False(t, summary.HasUrgentUnread)
	require.True(t, summary.HasHighUnread)
	require.Equal(t, "high", summary.Emphasis)

	// An unread urgent notification outranks high for emphasis.
	seedNotification(t, db, user.ID, "urgent", base.Add(time.Minute))

	summary, err = svc.Summary(ctx, user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, summary.UnreadCount)
	require.True(t, summary.HasUrgentUnread)
	require.Equal(t, "urgent", summary.Emphasis)

	require.NoError(t, svc.MarkAllRead(ctx, user.ID))

	summary, err = svc.Summary(ctx, user.ID)
	require.NoError(t, err)
	require.Zero(t, summary.UnreadCount)
	require.Equal(t, "none", summary.Emphasis)
}

func TestNotificationServiceDelete(t *testing.T) {
	svc, _, _, user := newNotificationFixture(t)
	ctx := context.Background()

	dto, err := svc.Create(ctx, CreateNotificationInput{
		UserID: user.ID,
		Type:   "project.update",
		Title:  "Old bid withdrawn",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, user.ID, dto.ID))
	require.ErrorIs(t, svc.Delete(ctx, user.ID, dto.ID), apperrors.ErrNotFound)
}
