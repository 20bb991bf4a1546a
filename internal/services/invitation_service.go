package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/probuildhq/probuild/internal/models"
	"github.com/probuildhq/probuild/internal/notifications"
	"github.com/probuildhq/probuild/pkg/crypto"
	"github.com/probuildhq/probuild/pkg/mail"
	"github.com/probuildhq/probuild/pkg/metrics"
)

const (
	defaultInvitationExpiry     = 7 * 24 * time.Hour
	defaultInvitationTokenBytes = 48
)

// InvitationOption customises InvitationService behaviour.
type InvitationOption func(*InvitationService)

// WithInvitationBaseURL configures the base URL used to build invitation links.
func WithInvitationBaseURL(url string) InvitationOption {
	return func(s *InvitationService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithInvitationExpiry overrides the invitation token lifetime.
func WithInvitationExpiry(d time.Duration) InvitationOption {
	return func(s *InvitationService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithInvitationClock injects a custom clock primarily for testing.
func WithInvitationClock(clock func() time.Time) InvitationOption {
	return func(s *InvitationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// InvitationService manages the project invitation token lifecycle:
// pending resolves to exactly one of accepted, declined, or expired.
type InvitationService struct {
	db            *gorm.DB
	mailer        mail.Mailer
	notifications *NotificationService
	baseURL       string
	expiry        time.Duration
	tokenLength   int
	now           func() time.Time
}

// NewInvitationService constructs an InvitationService. The mailer and
// notification service are optional collaborators.
func NewInvitationService(db *gorm.DB, mailer mail.Mailer, notifier *NotificationService, opts ...InvitationOption) (*InvitationService, error) {
	if db == nil {
		return nil, errors.New("invitation service: db is required")
	}

	service := &InvitationService{
		db:            db,
		mailer:        mailer,
		notifications: notifier,
		expiry:        defaultInvitationExpiry,
		tokenLength:   defaultInvitationTokenBytes,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// CreateInvitationInput describes a new project invitation.
type CreateInvitationInput struct {
	ProjectID string
	Email     string
	Role      string
	InvitedBy string
}

// InvitationResult pairs the persisted invitation with the raw token, which
// exists only in memory at issuance time.
type InvitationResult struct {
	Invitation *models.ProjectInvitation
	Token      string
	Link       string
}

// Create issues a single-use invitation token, emails the invitee, and drops
// an in-app notification when the invitee already has an account. Mail
// delivery failure is logged by the transport, never surfaced to the invitee.
func (s *InvitationService) Create(ctx context.Context, input CreateInvitationInput) (*InvitationResult, error) {
	ctx = ensureContext(ctx)

	email := normaliseEmail(input.Email)
	if email == "" {
		return nil, errors.New("invitation service: email is required")
	}
	projectID := strings.TrimSpace(input.ProjectID)
	if projectID == "" {
		return nil, errors.New("invitation service: project id is required")
	}
	role := defaultIfEmpty(strings.TrimSpace(input.Role), models.RoleContractor)
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("invitation service: invalid role %q", role)
	}

	var project models.Project
	if err := s.db.WithContext(ctx).Take(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("invitation service: load project: %w", err)
	}

	rawToken, err := crypto.GenerateToken(s.tokenLength)
	if err != nil {
		return nil, fmt.Errorf("invitation service: generate token: %w", err)
	}

	now := s.now()
	invitation := models.ProjectInvitation{
		ProjectID: projectID,
		Email:     email,
		Role:      role,
		TokenHash: crypto.HashToken(rawToken),
		InvitedBy: strings.TrimSpace(input.InvitedBy),
		Status:    models.InvitationPending,
		ExpiresAt: now.Add(s.expiry),
	}

	if err := s.db.WithContext(ctx).Create(&invitation).Error; err != nil {
		return nil, fmt.Errorf("invitation service: create invitation: %w", err)
	}

	link := s.invitationLink(rawToken)

	if s.mailer != nil {
		message := mail.Message{
			To:      []string{email},
			Subject: fmt.Sprintf("You're invited to join %s on ProBuild", project.Name),
			Body:    s.invitationBody(project.Name, role, link),
		}
		if mailErr := s.mailer.Send(ctx, message); mailErr != nil {
			return nil, fmt.Errorf("invitation service: send email: %w", mailErr)
		}
	}

	s.notifyInvitee(ctx, &project, email, role)

	return &InvitationResult{
		Invitation: &invitation,
		Token:      rawToken,
		Link:       link,
	}, nil
}

// GetByToken resolves an invitation from its raw token, applying lazy expiry:
// a pending invitation past its window is marked expired before returning.
func (s *InvitationService) GetByToken(ctx context.Context, token string) (*models.ProjectInvitation, error) {
	ctx = ensureContext(ctx)
	invitation, err := s.findByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.expireIfStale(ctx, invitation); err != nil {
		return nil, err
	}
	return invitation, nil
}

// Accept transitions a pending invitation to accepted and grants the role on
// the project to the acting user. Repeating an accept for the same user is a
// success; accepting after a decline reports the resolved conflict.
func (s *InvitationService) Accept(ctx context.Context, token, userID string) (*models.ProjectInvitation, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("invitation service: user id is required")
	}

	invitation, err := s.findByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.expireIfStale(ctx, invitation); err != nil {
		return nil, err
	}

	switch invitation.Status {
	case models.InvitationAccepted:
		// Retry after a network timeout lands here; report the same outcome.
		if invitation.AcceptedBy != nil && *invitation.AcceptedBy == userID {
			return invitation, nil
		}
		return nil, ErrInvitationResolved
	case models.InvitationDeclined:
		return nil, ErrInvitationResolved
	case models.InvitationExpired:
		return nil, ErrInvitationExpired
	}

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.ProjectInvitation{}).
			Where("id = ? AND status = ?", invitation.ID, models.InvitationPending).
			Updates(map[string]any{
				"status":      models.InvitationAccepted,
				"resolved_at": now,
				"accepted_by": userID,
			})
		if result.Error != nil {
			return fmt.Errorf("invitation service: mark accepted: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrInvitationResolved
		}

		member := models.ProjectMember{
			ProjectID: invitation.ProjectID,
			UserID:    userID,
			Role:      invitation.Role,
		}
		if err := tx.Create(&member).Error; err != nil {
			if isUniqueConstraintError(err) {
				// Already a member; the grant stands.
				return nil
			}
			return fmt.Errorf("invitation service: grant membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	invitation.Status = models.InvitationAccepted
	invitation.ResolvedAt = &now
	invitation.AcceptedBy = &userID

	metrics.InvitationOutcomes.WithLabelValues(models.InvitationAccepted).Inc()
	return invitation, nil
}

// Decline transitions a pending invitation to declined. A repeated decline is
// a success; declining after an accept reports the resolved conflict.
func (s *InvitationService) Decline(ctx context.Context, token string) (*models.ProjectInvitation, error) {
	ctx = ensureContext(ctx)

	invitation, err := s.findByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.expireIfStale(ctx, invitation); err != nil {
		return nil, err
	}

	switch invitation.Status {
	case models.InvitationDeclined:
		return invitation, nil
	case models.InvitationAccepted:
		return nil, ErrInvitationResolved
	case models.InvitationExpired:
		return nil, ErrInvitationExpired
	}

	now := s.now()
	result := s.db.WithContext(ctx).
		Model(&models.ProjectInvitation{}).
		Where("id = ? AND status = ?", invitation.ID, models.InvitationPending).
		Updates(map[string]any{
			"status":      models.InvitationDeclined,
			"resolved_at": now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("invitation service: mark declined: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrInvitationResolved
	}

	invitation.Status = models.InvitationDeclined
	invitation.ResolvedAt = &now

	metrics.InvitationOutcomes.WithLabelValues(models.InvitationDeclined).Inc()
	return invitation, nil
}

// ListForProject returns invitations issued for a project, newest first.
func (s *InvitationService) ListForProject(ctx context.Context, projectID string) ([]models.ProjectInvitation, error) {
	ctx = ensureContext(ctx)
	var rows []models.ProjectInvitation
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", strings.TrimSpace(projectID)).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("invitation service: list invitations: %w", err)
	}
	return rows, nil
}

// ExpireStale marks every pending invitation past its window as expired.
// Runs from the maintenance sweep; lazy detection on access covers the gap
// between runs.
func (s *InvitationService) ExpireStale(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	now := s.now()

	result := s.db.WithContext(ctx).
		Model(&models.ProjectInvitation{}).
		Where("status = ? AND expires_at < ?", models.InvitationPending, now).
		Updates(map[string]any{
			"status":      models.InvitationExpired,
			"resolved_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("invitation service: expire stale invitations: %w", result.Error)
	}

	for i := int64(0); i < result.RowsAffected; i++ {
		metrics.InvitationOutcomes.WithLabelValues(models.InvitationExpired).Inc()
	}
	return result.RowsAffected, nil
}

func (s *InvitationService) findByToken(ctx context.Context, token string) (*models.ProjectInvitation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvitationNotFound
	}

	var invitation models.ProjectInvitation
	if err := s.db.WithContext(ctx).
		Where("token_hash = ?", crypto.HashToken(token)).
		First(&invitation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("invitation service: find invitation: %w", err)
	}
	return &invitation, nil
}

func (s *InvitationService) expireIfStale(ctx context.Context, invitation *models.ProjectInvitation) error {
	if invitation.Status != models.InvitationPending {
		return nil
	}
	now := s.now()
	if !invitation.ExpiresAt.Before(now) {
		return nil
	}

	result := s.db.WithContext(ctx).
		Model(&models.ProjectInvitation{}).
		Where("id = ? AND status = ?", invitation.ID, models.InvitationPending).
		Updates(map[string]any{
			"status":      models.InvitationExpired,
			"resolved_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("invitation service: expire invitation: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		metrics.InvitationOutcomes.WithLabelValues(models.InvitationExpired).Inc()
	}

	invitation.Status = models.InvitationExpired
	invitation.ResolvedAt = &now
	return nil
}

func (s *InvitationService) notifyInvitee(ctx context.Context, project *models.Project, email, role string) {
	if s.notifications == nil {
		return
	}

	var invitee models.User
	err := s.db.WithContext(ctx).
		Select("id").
		Where("email = ?", email).
		First(&invitee).Error
	if err != nil {
		return
	}

	_, _ = s.notifications.Create(ctx, CreateNotificationInput{
		UserID:   invitee.ID,
		Type:     "invitation.received",
		Title:    fmt.Sprintf("Invitation to %s", project.Name),
		Message:  fmt.Sprintf("You have been invited to join %s as %s.", project.Name, role),
		Priority: string(notifications.PriorityHigh),
		Metadata: map[string]any{
			"project_id": project.ID,
			"role":       role,
		},
	})
}

func (s *InvitationService) invitationLink(token string) string {
	base := s.baseURL
	if base == "" {
		base = "http://localhost:8080"
	}
	return fmt.Sprintf("%s/invitations/%s", base, token)
}

func (s *InvitationService) invitationBody(projectName, role, link string) string {
	var b strings.Builder
	b.WriteString("Hello,\n\n")
	fmt.Fprintf(&b, "You have been invited to join the project %q as %s.\n\n", projectName, role)
	fmt.Fprintf(&b, "Accept or decline the invitation here: %s\n\n", link)
	fmt.Fprintf(&b, "The link expires in %d days.\n", int(s.expiry.Hours()/24))
	return b.String()
}
