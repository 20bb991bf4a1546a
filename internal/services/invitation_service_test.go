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
	"github.com/probuildhq/probuild/pkg/mail"
)

type recordingMailer struct {
	messages []mail.Message
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.messages = append(m.messages, msg)
	return nil
}

type invitationFixture struct {
	svc     *InvitationService
	db      *gorm.DB
	mailer  *recordingMailer
	owner   *models.User
	project *models.Project
	clock   *time.Time
}

func newInvitationFixture(t *testing.T) *invitationFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	owner := &models.User{Email: "owner@example.com", Password: "hashed"}
	require.NoError(t, db.Create(owner).Error)

	project := &models.Project{
		Name:    "Riverside Duplex",
		Trade:   "general",
		OwnerID: owner.ID,
	}
	require.NoError(t, db.Create(project).Error)

	prefs, err := NewPreferencesService(db)
	require.NoError(t, err)
	notifier, err := NewNotificationService(db, notifications.NewHub(), prefs)
	require.NoError(t, err)

	current := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	mailer := &recordingMailer{}

	svc, err := NewInvitationService(db, mailer, notifier,
		WithInvitationBaseURL("https://probuild.example.com"),
		WithInvitationClock(func() time.Time { return current }),
	)
	require.NoError(t, err)

	return &invitationFixture{
		svc:     svc,
		db:      db,
		mailer:  mailer,
		owner:   owner,
		project: project,
		clock:   &current,
	}
}

func (f *invitationFixture) invite(t *testing.T, email, role string) *InvitationResult {
	t.Helper()
	result, err := f.svc.Create(context.Background(), CreateInvitationInput{
		ProjectID: f.project.ID,
		Email:     email,
		Role:      role,
		InvitedBy: f.owner.ID,
	})
	require.NoError(t, err)
	return result
}

func TestInvitationCreateSendsMailAndNotifies(t *testing.T) {
	f := newInvitationFixture(t)

	invitee := &models.User{Email: "sparky@example.com", Password: "hashed"}
	require.NoError(t, f.db.Create(invitee).Error)

	result := f.invite(t, "Sparky@Example.com", models.RoleContractor)

	require.Equal(t, models.InvitationPending, result.Invitation.Status)
	require.Equal(t, "sparky@example.com", result.Invitation.Email)
	require.NotEmpty(t, result.Token)
	require.Contains(t, result.Link, result.Token)

	// The raw token never touches the database.
	require.NotEqual(t, result.Token, result.Invitation.TokenHash)

	require.Len(t, f.mailer.messages, 1)
	require.Equal(t, []string{"sparky@example.com"}, f.mailer.messages[0].To)
	require.Contains(t, f.mailer.messages[0].Body, result.Link)

	// An existing account gets an in-app notification alongside the email.
	var count int64
	require.NoError(t, f.db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", invitee.ID, "invitation.received").
		Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestInvitationCreateRejectsUnknownRole(t *testing.T) {
	f := newInvitationFixture(t)

	_, err := f.svc.Create(context.Background(), CreateInvitationInput{
		ProjectID: f.project.ID,
		Email:     "crew@example.com",
		Role:      "foreman",
	})
	require.Error(t, err)
}

func TestInvitationAcceptGrantsMembership(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	invitee := &models.User{Email: "mason@example.com", Password: "hashed"}
	require.NoError(t, f.db.Create(invitee).Error)

	result := f.invite(t, invitee.Email, models.RoleContractor)

	accepted, err := f.svc.Accept(ctx, result.Token, invitee.ID)
	require.NoError(t, err)
	require.Equal(t, models.InvitationAccepted, accepted.Status)
	require.NotNil(t, accepted.ResolvedAt)

	var member models.ProjectMember
	require.NoError(t, f.db.
		Where("project_id = ? AND user_id = ?", f.project.ID, invitee.ID).
		Take(&member).Error)
	require.Equal(t, models.RoleContractor, member.Role)

	// Retrying the same accept reports the same outcome, not an error.
	again, err := f.svc.Accept(ctx, result.Token, invitee.ID)
	require.NoError(t, err)
	require.Equal(t, models.InvitationAccepted, again.Status)

	// A different user cannot ride the resolved token.
	other := &models.User{Email: "other@example.com", Password: "hashed"}
	require.NoError(t, f.db.Create(other).Error)
	_, err = f.svc.Accept(ctx, result.Token, other.ID)
	require.ErrorIs(t, err, ErrInvitationResolved)
}

func TestInvitationDeclineIsIdempotent(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	result := f.invite(t, "tiler@example.com", models.RoleViewer)

	declined, err := f.svc.Decline(ctx, result.Token)
	require.NoError(t, err)
	require.Equal(t, models.InvitationDeclined, declined.Status)

	again, err := f.svc.Decline(ctx, result.Token)
	require.NoError(t, err)
	require.Equal(t, models.InvitationDeclined, again.Status)
}

func TestInvitationCrossOutcomeConflicts(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	invitee := &models.User{Email: "welder@example.com", Password: "hashed"}
	require.NoError(t, f.db.Create(invitee).Error)

	accepted := f.invite(t, invitee.Email, models.RoleContractor)
	_, err := f.svc.Accept(ctx, accepted.Token, invitee.ID)
	require.NoError(t, err)
	_, err = f.svc.Decline(ctx, accepted.Token)
	require.ErrorIs(t, err, ErrInvitationResolved)

	declined := f.invite(t, invitee.Email, models.RoleContractor)
	_, err = f.svc.Decline(ctx, declined.Token)
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, declined.Token, invitee.ID)
	require.ErrorIs(t, err, ErrInvitationResolved)
}

func TestInvitationLazyExpiry(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	invitee := &models.User{Email: "painter@example.com", Password: "hashed"}
	require.NoError(t, f.db.Create(invitee).Error)

	result := f.invite(t, invitee.Email, models.RoleContractor)

	*f.clock = f.clock.Add(8 * 24 * time.Hour)

	_, err := f.svc.Accept(ctx, result.Token, invitee.ID)
	require.ErrorIs(t, err, ErrInvitationExpired)

	// The state transition was persisted, not just reported.
	loaded, err := f.svc.GetByToken(ctx, result.Token)
	require.NoError(t, err)
	require.Equal(t, models.InvitationExpired, loaded.Status)
}

func TestInvitationUnknownToken(t *testing.T) {
	f := newInvitationFixture(t)

	_, err := f.svc.GetByToken(context.Background(), "bogus")
	require.ErrorIs(t, err, ErrInvitationNotFound)
	_, err = f.svc.Decline(context.Background(), "")
	require.ErrorIs(t, err, ErrInvitationNotFound)
}

func TestInvitationExpireStaleSweep(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	f.invite(t, "one@example.com", models.RoleViewer)
	f.invite(t, "two@example.com", models.RoleViewer)
	fresh := f.invite(t, "three@example.com", models.RoleViewer)

	require.NoError(t, f.db.Model(&models.ProjectInvitation{}).
		Where("id <> ?", fresh.Invitation.ID).
		Update("expires_at", f.clock.Add(-time.Hour)).Error)

	expired, err := f.svc.ExpireStale(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, expired)

	loaded, err := f.svc.GetByToken(ctx, fresh.Token)
	require.NoError(t, err)
	require.Equal(t, models.InvitationPending, loaded.Status)
}
