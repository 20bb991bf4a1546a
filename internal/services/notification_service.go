package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/probuildhq/probuild/internal/models"
	"github.com/probuildhq/probuild/internal/notifications"
	apperrors "github.com/probuildhq/probuild/pkg/errors"
	"github.com/probuildhq/probuild/pkg/metrics"
)

// NotificationDTO represents the API-friendly notification payload.
type NotificationDTO struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Priority  notifications.Priority `json:"priority"`
	Sound     notifications.Sound    `json:"sound"`
	ActionURL string                 `json:"action_url,omitempty"`
	Metadata  map[string]any         `json:"metadata,omitempty"`
	IsRead    bool                   `json:"is_read"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`
}

// NotificationPriority implements notifications.Sortable.
func (d NotificationDTO) NotificationPriority() notifications.Priority { return d.Priority }

// NotificationCreatedAt implements notifications.Sortable.
func (d NotificationDTO) NotificationCreatedAt() time.Time { return d.CreatedAt }

// CreateNotificationInput defines attributes required to persist a notification.
type CreateNotificationInput struct {
	UserID    string
	Type      string
	Title     string
	Message   string
	Priority  string
	ActionURL string
	Metadata  map[string]any
}

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	UserID     string
	Order      notifications.Order
	UnreadOnly bool
	Limit      int
	Offset     int
}

// NotificationSummary condenses a user's notification state for badge and
// emphasis rendering.
type NotificationSummary struct {
	UnreadCount     int64  `json:"unread_count"`
	HasUrgentUnread bool   `json:"has_urgent_unread"`
	HasHighUnread   bool   `json:"has_high_unread"`
	Emphasis        string `json:"emphasis"`
}

// NotificationService manages user in-app notifications.
type NotificationService struct {
	db          *gorm.DB
	hub         *notifications.Hub
	preferences *PreferencesService
	now         func() time.Time
}

// NotificationOption customises the NotificationService.
type NotificationOption func(*NotificationService)

// WithNotificationClock overrides the time source, used by tests.
func WithNotificationClock(clock func() time.Time) NotificationOption {
	return func(s *NotificationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewNotificationService constructs a NotificationService. The hub may be nil
// when realtime delivery is not wanted.
func NewNotificationService(db *gorm.DB, hub *notifications.Hub, preferences *PreferencesService, opts ...NotificationOption) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	svc := &NotificationService{
		db:          db,
		hub:         hub,
		preferences: preferences,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create registers a new notification and broadcasts it to the recipient's
// open connections together with the audio cue their preferences allow.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}
	notificationType := strings.TrimSpace(input.Type)
	if notificationType == "" {
		return nil, errors.New("notification service: type is required")
	}

	priority := notifications.ParsePriority(input.Priority)

	notification := models.Notification{
		UserID:    userID,
		Type:      notificationType,
		Title:     strings.TrimSpace(input.Title),
		Message:   strings.TrimSpace(input.Message),
		Priority:  string(priority),
		ActionURL: strings.TrimSpace(input.ActionURL),
	}

	if input.Metadata != nil {
		data, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("notification service: marshal metadata: %w", err)
		}
		notification.Metadata = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return nil, fmt.Errorf("notification service: create notification: %w", err)
	}

	metrics.NotificationsCreated.WithLabelValues(string(priority)).Inc()

	soundsEnabled := true
	if s.preferences != nil {
		soundsEnabled = s.preferences.SoundsEnabled(ctx, userID)
	}

	dto := s.mapNotification(notification, soundsEnabled)
	s.broadcast(userID, notifications.Event{
		Event:        "notification.created",
		Notification: &dto,
		Sound:        dto.Sound,
	})
	return &dto, nil
}

// ListForUser returns notifications for the supplied user in the requested
// order. Priority ordering ranks urgent first and breaks ties newest first;
// the default is plain recency.
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) ([]NotificationDTO, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}

	limit := input.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(max(0, input.Offset))
	if input.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var rows []models.Notification
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	soundsEnabled := true
	if s.preferences != nil {
		soundsEnabled = s.preferences.SoundsEnabled(ctx, userID)
	}

	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, s.mapNotification(row, soundsEnabled))
	}

	// The rows arrive newest-first; priority ordering is applied in memory so
	// unknown priorities keep their deterministic last place.
	notifications.Sort(items, input.Order)
	return items, nil
}

// UnreadCount returns the number of unread notifications for the user.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: count unread: %w", err)
	}
	return count, nil
}

// Summary reports the unread badge state. Urgent unread takes precedence over
// high unread when choosing the emphasis level.
func (s *NotificationService) Summary(ctx context.Context, userID string) (*NotificationSummary, error) {
	ctx = ensureContext(ctx)

	count, err := s.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	var unreadPriorities []string
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Distinct().
		Pluck("priority", &unreadPriorities).Error; err != nil {
		return nil, fmt.Errorf("notification service: unread priorities: %w", err)
	}

	summary := &NotificationSummary{UnreadCount: count, Emphasis: "none"}
	for _, raw := range unreadPriorities {
		switch notifications.ParsePriority(raw) {
		case notifications.PriorityUrgent:
			summary.HasUrgentUnread = true
		case notifications.PriorityHigh:
			summary.HasHighUnread = true
		}
	}
	switch {
	case summary.HasUrgentUnread:
		summary.Emphasis = "urgent"
	case summary.HasHighUnread:
		summary.Emphasis = "high"
	}
	return summary, nil
}

// MarkRead sets the read flag on one notification. Marking an already-read or
// unknown notification is a no-op, not an error.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	ctx = ensureContext(ctx)
	now := s.now().UTC()

	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND is_read = ?", notificationID, userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("notification service: mark read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil
	}

	s.broadcast(userID, notifications.Event{
		Event:          "notification.read",
		NotificationID: notificationID,
	})
	return nil
}

// MarkAllRead marks every notification for the user as read. Safe to call
// when the user has none.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	ctx = ensureContext(ctx)
	now := s.now().UTC()

	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("notification service: mark all read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil
	}

	s.broadcast(userID, notifications.Event{Event: "notification.read_all"})
	return nil
}

// Delete removes a notification owned by the supplied user.
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return fmt.Errorf("notification service: delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	s.broadcast(userID, notifications.Event{
		Event:          "notification.deleted",
		NotificationID: notificationID,
	})
	return nil
}

func (s *NotificationService) broadcast(userID string, event notifications.Event) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(userID, event)
}

func (s *NotificationService) mapNotification(row models.Notification, soundsEnabled bool) NotificationDTO {
	priority := notifications.ParsePriority(row.Priority)
	return NotificationDTO{
		ID:        row.ID,
		UserID:    row.UserID,
		Type:      row.Type,
		Title:     row.Title,
		Message:   row.Message,
		Priority:  priority,
		Sound:     notifications.SoundFor(priority, soundsEnabled),
		ActionURL: row.ActionURL,
		Metadata:  decodeJSON(row.Metadata),
		IsRead:    row.IsRead,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		ReadAt:    row.ReadAt,
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
