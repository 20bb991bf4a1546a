package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/probuildhq/probuild/internal/notifications"
	apperrors "github.com/probuildhq/probuild/pkg/errors"
)

// UserPreferences represents persisted user-level customisations.
type UserPreferences struct {
	Notifications NotificationPreferences `json:"notifications"`
}

// NotificationPreferences controls how the notification centre behaves for a user.
type NotificationPreferences struct {
	SoundsEnabled bool   `json:"sounds_enabled"`
	DefaultOrder  string `json:"default_order"`
}

// PreferencesService coordinates CRUD operations for user preference data.
type PreferencesService struct {
	db *gorm.DB
}

// NewPreferencesService constructs a PreferencesService.
func NewPreferencesService(db *gorm.DB) (*PreferencesService, error) {
	if db == nil {
		return nil, fmt.Errorf("preferences service: db is required")
	}
	return &PreferencesService{db: db}, nil
}

// Get returns the effective preference set for the specified user.
func (s *PreferencesService) Get(ctx context.Context, userID string) (UserPreferences, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return DefaultUserPreferences(), apperrors.NewBadRequest("user id is required")
	}

	raw, err := s.loadRaw(ctx, userID)
	if err != nil {
		return DefaultUserPreferences(), err
	}
	return NormaliseUserPreferences(raw), nil
}

// Update persists preference changes for the specified user and returns the
// effective result.
func (s *PreferencesService) Update(ctx context.Context, userID string, prefs UserPreferences) (UserPreferences, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return DefaultUserPreferences(), apperrors.NewBadRequest("user id is required")
	}

	if _, err := s.loadRaw(ctx, userID); err != nil {
		return DefaultUserPreferences(), err
	}

	sanitised := sanitizeUserPreferences(prefs)
	payload := MarshalUserPreferences(sanitised)

	if err := s.db.WithContext(ctx).
		Table("users").
		Where("id = ?", userID).
		Update("preferences", payload).Error; err != nil {
		return DefaultUserPreferences(), fmt.Errorf("preferences service: update preferences: %w", err)
	}

	return sanitised, nil
}

// SoundsEnabled reports whether audio cues are enabled for the user.
// Missing users and malformed preference documents fall back to the default.
func (s *PreferencesService) SoundsEnabled(ctx context.Context, userID string) bool {
	prefs, err := s.Get(ctx, userID)
	if err != nil {
		return DefaultUserPreferences().Notifications.SoundsEnabled
	}
	return prefs.Notifications.SoundsEnabled
}

func (s *PreferencesService) loadRaw(ctx context.Context, userID string) (datatypes.JSONMap, error) {
	var user struct {
		ID          string
		Preferences datatypes.JSONMap
	}

	err := s.db.WithContext(ctx).
		Table("users").
		Select("id", "preferences").
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("preferences service: load user preferences: %w", err)
	}
	return user.Preferences, nil
}

// DefaultUserPreferences returns the canonical defaults applied when no user preference exists.
func DefaultUserPreferences() UserPreferences {
	return UserPreferences{
		Notifications: NotificationPreferences{
			SoundsEnabled: true,
			DefaultOrder:  string(notifications.OrderNewest),
		},
	}
}

// NormaliseUserPreferences coerces the raw JSON map (if any) into a strongly
// typed structure with defaults applied.
func NormaliseUserPreferences(raw datatypes.JSONMap) UserPreferences {
	prefs := DefaultUserPreferences()
	if len(raw) == 0 {
		return prefs
	}

	node, ok := toMap(raw["notifications"])
	if !ok {
		return prefs
	}

	if enabled, ok := asBool(node["sounds_enabled"]); ok {
		prefs.Notifications.SoundsEnabled = enabled
	}
	if order, ok := asString(node["default_order"]); ok {
		prefs.Notifications.DefaultOrder = string(notifications.ParseOrder(order))
	}
	return prefs
}

// MarshalUserPreferences converts the typed preference structure into the
// JSON map persisted on the user row.
func MarshalUserPreferences(prefs UserPreferences) datatypes.JSONMap {
	return datatypes.JSONMap{
		"notifications": map[string]any{
			"sounds_enabled": prefs.Notifications.SoundsEnabled,
			"default_order":  prefs.Notifications.DefaultOrder,
		},
	}
}

func sanitizeUserPreferences(prefs UserPreferences) UserPreferences {
	prefs.Notifications.DefaultOrder = string(notifications.ParseOrder(prefs.Notifications.DefaultOrder))
	return prefs
}
