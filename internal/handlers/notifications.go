package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/probuildhq/probuild/internal/middleware"
	"github.com/probuildhq/probuild/internal/notifications"
	"github.com/probuildhq/probuild/internal/services"
	"github.com/probuildhq/probuild/pkg/errors"
	"github.com/probuildhq/probuild/pkg/response"
)

// NotificationHandler exposes HTTP endpoints for the notification centre.
type NotificationHandler struct {
	service *services.NotificationService
	hub     *notifications.Hub
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(service *services.NotificationService, hub *notifications.Hub) *NotificationHandler {
	return &NotificationHandler{service: service, hub: hub}
}

// List returns notifications for the current user. The order query parameter
// selects newest (default) or priority ordering.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	items, err := h.service.ListForUser(requestContext(c), services.ListNotificationsInput{
		UserID:     userID,
		Order:      notifications.ParseOrder(c.Query("order")),
		UnreadOnly: c.Query("unread") == "true",
		Limit:      parseIntQuery(c, "limit", 50),
		Offset:     parseIntQuery(c, "offset", 0),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}

// Summary returns the unread badge state for the current user.
func (h *NotificationHandler) Summary(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	summary, err := h.service.Summary(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

// MarkRead marks one notification as read. Repeats and unknown ids succeed.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.service.MarkRead(requestContext(c), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"read": true})
}

// MarkAllRead marks every notification for the current user as read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.service.MarkAllRead(requestContext(c), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"read": true})
}

// Delete removes one notification.
func (h *NotificationHandler) Delete(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(requestContext(c), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// Stream upgrades to a WebSocket that receives notification events as they
// are created.
func (h *NotificationHandler) Stream(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	h.hub.Serve(userID, c.Writer, c.Request)
}
