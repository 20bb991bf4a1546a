package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/probuildhq/probuild/internal/models"
	"github.com/probuildhq/probuild/pkg/crypto"
	apperrors "github.com/probuildhq/probuild/pkg/errors"
	"github.com/probuildhq/probuild/pkg/metrics"
)

const (
	maxFailedLogins = 5
	lockoutDuration = 15 * time.Minute
)

// UserOption customises the UserService.
type UserOption func(*UserService)

// WithUserClock injects a custom time source.
func WithUserClock(clock func() time.Time) UserOption {
	return func(s *UserService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// UserService manages accounts: registration, authentication, and profile data.
type UserService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB, opts ...UserOption) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	svc := &UserService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Company   string
	Trade     string
}

// Register creates a new account with a hashed password.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	email := normaliseEmail(input.Email)
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if len(input.Password) < 8 {
		return nil, apperrors.NewBadRequest("password must be at least 8 characters")
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := models.User{
		Email:       email,
		Password:    hashed,
		FirstName:   strings.TrimSpace(input.FirstName),
		LastName:    strings.TrimSpace(input.LastName),
		Company:     strings.TrimSpace(input.Company),
		Trade:       strings.TrimSpace(input.Trade),
		IsActive:    true,
		Preferences: MarshalUserPreferences(DefaultUserPreferences()),
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.NewBadRequest("an account with this email already exists")
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}
	return &user, nil
}

// Authenticate verifies credentials, applying a temporary lockout after
// repeated failures. The same error is returned for unknown accounts and
// wrong passwords.
func (s *UserService) Authenticate(ctx context.Context, email, password, ip string) (*models.User, error) {
	ctx = ensureContext(ctx)

	email = normaliseEmail(email)
	if email == "" || password == "" {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	now := s.now()

	if !user.IsActive {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		metrics.AuthAttempts.WithLabelValues("locked").Inc()
		return nil, apperrors.ErrAccountLocked
	}

	if !crypto.VerifyPassword(user.Password, password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		if err := s.recordFailure(ctx, &user, now); err != nil {
			return nil, err
		}
		return nil, apperrors.ErrInvalidCredentials
	}

	updates := map[string]any{
		"failed_attempts": 0,
		"locked_until":    nil,
		"last_login_at":   now,
		"last_login_ip":   strings.TrimSpace(ip),
	}
	if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("user service: record login: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()

	user.FailedAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now
	return &user, nil
}

// Get loads a user by id.
func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	ctx = ensureContext(ctx)
	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", strings.TrimSpace(userID)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

// GetByEmail loads a user by email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx = ensureContext(ctx)
	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "email = ?", normaliseEmail(email)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

// UpdateProfileInput lists the mutable profile fields. Nil fields are left
// untouched.
type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
	Company   *string
	Trade     *string
	Avatar    *string
}

// UpdateProfile applies partial profile changes.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*input.LastName)
	}
	if input.Company != nil {
		updates["company"] = strings.TrimSpace(*input.Company)
	}
	if input.Trade != nil {
		updates["trade"] = strings.TrimSpace(*input.Trade)
	}
	if input.Avatar != nil {
		updates["avatar"] = strings.TrimSpace(*input.Avatar)
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("user service: update profile: %w", err)
	}
	return s.Get(ctx, userID)
}

// ChangePassword verifies the current password before setting a new one.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	ctx = ensureContext(ctx)

	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	if !crypto.VerifyPassword(user.Password, currentPassword) {
		return apperrors.ErrInvalidCredentials
	}
	if len(newPassword) < 8 {
		return apperrors.NewBadRequest("password must be at least 8 characters")
	}

	hashed, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("user service: hash password: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(user).Update("password", hashed).Error; err != nil {
		return fmt.Errorf("user service: change password: %w", err)
	}
	return nil
}

func (s *UserService) recordFailure(ctx context.Context, user *models.User, now time.Time) error {
	attempts := user.FailedAttempts + 1
	updates := map[string]any{"failed_attempts": attempts}
	if attempts >= maxFailedLogins {
		updates["locked_until"] = now.Add(lockoutDuration)
		updates["failed_attempts"] = 0
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return fmt.Errorf("user service: record failed login: %w", err)
	}
	return nil
}
