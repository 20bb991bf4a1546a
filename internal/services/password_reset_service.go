package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/probuildhq/probuild/internal/auth"
	"github.com/probuildhq/probuild/internal/cache"
	"github.com/probuildhq/probuild/internal/models"
	"github.com/probuildhq/probuild/pkg/crypto"
	"github.com/probuildhq/probuild/pkg/mail"
)

const (
	defaultResetExpiry     = 24 * time.Hour
	defaultResetTokenBytes = 48
	defaultResetCooldown   = 5 * time.Minute

	resetThrottlePrefix = "auth:password-reset:"
)

// ResetOption customises the PasswordResetService.
type ResetOption func(*PasswordResetService)

// WithResetBaseURL sets the base URL used in reset links.
func WithResetBaseURL(url string) ResetOption {
	return func(s *PasswordResetService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithResetExpiry overrides the token lifetime.
func WithResetExpiry(d time.Duration) ResetOption {
	return func(s *PasswordResetService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithResetCooldown overrides the per-account request cooldown.
func WithResetCooldown(d time.Duration) ResetOption {
	return func(s *PasswordResetService) {
		if d > 0 {
			s.cooldown = d
		}
	}
}

// WithResetClock injects a custom time source.
func WithResetClock(clock func() time.Time) ResetOption {
	return func(s *PasswordResetService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// PasswordResetService manages single-use, time-limited password reset tokens.
type PasswordResetService struct {
	db          *gorm.DB
	mailer      mail.Mailer
	sessions    *auth.SessionService
	throttle    cache.Store
	baseURL     string
	expiry      time.Duration
	cooldown    time.Duration
	tokenLength int
	now         func() time.Time
}

// NewPasswordResetService constructs a PasswordResetService. The throttle
// store and session service are optional; without a session service existing
// logins survive a reset.
func NewPasswordResetService(db *gorm.DB, mailer mail.Mailer, sessions *auth.SessionService, throttle cache.Store, opts ...ResetOption) (*PasswordResetService, error) {
	if db == nil {
		return nil, errors.New("password reset service: db is required")
	}

	service := &PasswordResetService{
		db:          db,
		mailer:      mailer,
		sessions:    sessions,
		throttle:    throttle,
		expiry:      defaultResetExpiry,
		cooldown:    defaultResetCooldown,
		tokenLength: defaultResetTokenBytes,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Request issues a reset token and emails the link. The return never reveals
// whether an account exists: unknown addresses succeed silently. Repeat
// requests inside the cooldown window return ErrResetThrottled.
func (s *PasswordResetService) Request(ctx context.Context, email string) error {
	ctx = ensureContext(ctx)

	email = normaliseEmail(email)
	if email == "" {
		return errors.New("password reset service: email is required")
	}

	if err := s.checkThrottle(ctx, email); err != nil {
		return err
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("password reset service: load user: %w", err)
	}

	rawToken, err := crypto.GenerateToken(s.tokenLength)
	if err != nil {
		return fmt.Errorf("password reset service: generate token: %w", err)
	}

	now := s.now()
	token := models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: crypto.HashToken(rawToken),
		ExpiresAt: now.Add(s.expiry),
	}
	if err := s.db.WithContext(ctx).Create(&token).Error; err != nil {
		return fmt.Errorf("password reset service: create token: %w", err)
	}

	if s.mailer != nil {
		message := mail.Message{
			To:      []string{email},
			Subject: "Reset your ProBuild password",
			Body:    s.resetBody(rawToken),
		}
		if mailErr := s.mailer.Send(ctx, message); mailErr != nil {
			return fmt.Errorf("password reset service: send email: %w", mailErr)
		}
	}

	return nil
}

// Reset consumes a token and sets a new password. Tokens are single use:
// reuse after success reports ErrResetTokenInvalid. All of the user's
// sessions are revoked on success.
func (s *PasswordResetService) Reset(ctx context.Context, token, newPassword string) error {
	ctx = ensureContext(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		return ErrResetTokenInvalid
	}
	if len(newPassword) < 8 {
		return errors.New("password reset service: password must be at least 8 characters")
	}

	var record models.PasswordResetToken
	err := s.db.WithContext(ctx).
		Where("token_hash = ?", crypto.HashToken(token)).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("password reset service: find token: %w", err)
	}

	now := s.now()
	if record.UsedAt != nil {
		return ErrResetTokenInvalid
	}
	if record.ExpiresAt.Before(now) {
		return ErrResetTokenExpired
	}

	hashed, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("password reset service: hash password: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.PasswordResetToken{}).
			Where("id = ? AND used_at IS NULL", record.ID).
			Update("used_at", now)
		if result.Error != nil {
			return fmt.Errorf("password reset service: consume token: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrResetTokenInvalid
		}

		if err := tx.Model(&models.User{}).
			Where("id = ?", record.UserID).
			Updates(map[string]any{
				"password":        hashed,
				"failed_attempts": 0,
				"locked_until":    nil,
			}).Error; err != nil {
			return fmt.Errorf("password reset service: update password: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.sessions != nil {
		if err := s.sessions.RevokeUserSessions(record.UserID); err != nil {
			return fmt.Errorf("password reset service: revoke sessions: %w", err)
		}
	}

	return nil
}

// PurgeStale deletes consumed and expired reset tokens. Run from the
// maintenance sweep.
func (s *PasswordResetService) PurgeStale(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("used_at IS NOT NULL").
		Or("expires_at < ?", s.now()).
		Delete(&models.PasswordResetToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("password reset service: purge tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *PasswordResetService) checkThrottle(ctx context.Context, email string) error {
	if s.throttle == nil {
		return nil
	}

	count, _, err := s.throttle.IncrementWithTTL(ctx, resetThrottlePrefix+email, s.cooldown)
	if err != nil {
		// The throttle is advisory; a broken store must not block resets.
		return nil
	}
	if count > 1 {
		return ErrResetThrottled
	}
	return nil
}

func (s *PasswordResetService) resetBody(token string) string {
	base := s.baseURL
	if base == "" {
		base = "http://localhost:8080"
	}

	var b strings.Builder
	b.WriteString("Hello,\n\n")
	fmt.Fprintf(&b, "A password reset was requested for your account. Use the link below within %d hours:\n\n", int(s.expiry.Hours()))
	fmt.Fprintf(&b, "%s/reset-password/%s\n\n", base, token)
	b.WriteString("If you did not request this, you can ignore this email.\n")
	return b.String()
}
