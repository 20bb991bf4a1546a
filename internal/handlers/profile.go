package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/probuildhq/probuild/internal/middleware"
	"github.com/probuildhq/probuild/internal/services"
	"github.com/probuildhq/probuild/pkg/errors"
	"github.com/probuildhq/probuild/pkg/response"
)

// ProfileHandler exposes profile and preference endpoints for the current user.
type ProfileHandler struct {
	users       *services.UserService
	preferences *services.PreferencesService
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(users *services.UserService, preferences *services.PreferencesService) *ProfileHandler {
	return &ProfileHandler{users: users, preferences: preferences}
}

type updateProfileRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=120"`
	LastName  *string `json:"last_name" validate:"omitempty,max=120"`
	Company   *string `json:"company" validate:"omitempty,max=200"`
	Trade     *string `json:"trade" validate:"omitempty,max=100"`
	Avatar    *string `json:"avatar" validate:"omitempty,max=500"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

type updatePreferencesRequest struct {
	SoundsEnabled *bool   `json:"sounds_enabled"`
	DefaultOrder  *string `json:"default_order" validate:"omitempty,oneof=newest priority"`
}

// Update applies partial profile changes.
func (h *ProfileHandler) Update(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req updateProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.UpdateProfile(requestContext(c), userID, services.UpdateProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Company:   req.Company,
		Trade:     req.Trade,
		Avatar:    req.Avatar,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// ChangePassword verifies the current password before replacing it.
func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.users.ChangePassword(requestContext(c), userID, req.CurrentPassword, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"changed": true})
}

// GetPreferences returns the effective preferences for the current user.
func (h *ProfileHandler) GetPreferences(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	prefs, err := h.preferences.Get(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, prefs)
}

// UpdatePreferences applies partial preference changes.
func (h *ProfileHandler) UpdatePreferences(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req updatePreferencesRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)
	prefs, err := h.preferences.Get(ctx, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if req.SoundsEnabled != nil {
		prefs.Notifications.SoundsEnabled = *req.SoundsEnabled
	}
	if req.DefaultOrder != nil {
		prefs.Notifications.DefaultOrder = *req.DefaultOrder
	}

	updated, err := h.preferences.Update(ctx, userID, prefs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, updated)
}
