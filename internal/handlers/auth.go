package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	iauth "github.com/probuildhq/probuild/internal/auth"
	"github.com/probuildhq/probuild/internal/middleware"
	"github.com/probuildhq/probuild/internal/models"
	"github.com/probuildhq/probuild/internal/services"
	"github.com/probuildhq/probuild/pkg/errors"
	"github.com/probuildhq/probuild/pkg/response"
)

// AuthHandler exposes registration, login, session, and password-reset endpoints.
type AuthHandler struct {
	users    *services.UserService
	sessions *iauth.SessionService
	resets   *services.PasswordResetService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(users *services.UserService, sessions *iauth.SessionService, resets *services.PasswordResetService) *AuthHandler {
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		resets:   resets,
	}
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"max=120"`
	LastName  string `json:"last_name" validate:"max=120"`
	Company   string `json:"company" validate:"max=200"`
	Trade     string `json:"trade" validate:"max=100"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type resetRequestPayload struct {
	Email string `json:"email" validate:"required,email"`
}

type resetConfirmPayload struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *models.User `json:"user,omitempty"`
}

// Register creates a new account and opens the first session.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Register(requestContext(c), services.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Company:   req.Company,
		Trade:     req.Trade,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	pair, _, err := h.sessions.CreateSession(user.ID, h.sessionMetadata(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user,
	})
}

// Login verifies credentials and issues a token pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Authenticate(requestContext(c), req.Email, req.Password, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	pair, _, err := h.sessions.CreateSession(user.ID, h.sessionMetadata(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user,
	})
}

// Refresh rotates a refresh token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}

	pair, _, err := h.sessions.RefreshSession(req.RefreshToken)
	if err != nil {
		response.Error(c, errors.ErrUnauthorized.WithInternal(err))
		return
	}

	response.Success(c, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Logout revokes the current session.
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID := c.GetString(middleware.CtxSessionIDKey)
	if sessionID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.sessions.RevokeSession(sessionID); err != nil {
		response.Error(c, errors.ErrUnauthorized.WithInternal(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	user, err := h.users.Get(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// RequestPasswordReset issues a reset token. The response is identical for
// known and unknown addresses.
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req resetRequestPayload
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.resets.Request(requestContext(c), req.Email)
	if err != nil {
		if err == services.ErrResetThrottled {
			response.Error(c, errors.ErrRateLimit)
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"message": "If the account exists, a reset link has been sent.",
	})
}

// ConfirmPasswordReset consumes a reset token and sets the new password.
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req resetConfirmPayload
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.resets.Reset(requestContext(c), req.Token, req.Password)
	switch err {
	case nil:
		response.Success(c, http.StatusOK, gin.H{"reset": true})
	case services.ErrResetTokenInvalid:
		response.Error(c, errors.ErrInvalidToken)
	case services.ErrResetTokenExpired:
		response.Error(c, errors.ErrTokenExpired)
	default:
		response.Error(c, err)
	}
}

func (h *AuthHandler) sessionMetadata(c *gin.Context) iauth.SessionMetadata {
	return iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
