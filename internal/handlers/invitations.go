package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/probuildhq/probuild/internal/middleware"
	"github.com/probuildhq/probuild/internal/models"
	"github.com/probuildhq/probuild/internal/services"
	"github.com/probuildhq/probuild/pkg/errors"
	"github.com/probuildhq/probuild/pkg/response"
)

// InvitationHandler exposes the project invitation lifecycle over HTTP.
type InvitationHandler struct {
	invitations *services.InvitationService
	projects    *services.ProjectService
}

// NewInvitationHandler constructs an InvitationHandler.
func NewInvitationHandler(invitations *services.InvitationService, projects *services.ProjectService) *InvitationHandler {
	return &InvitationHandler{invitations: invitations, projects: projects}
}

type createInvitationRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,oneof=manager contractor viewer"`
}

// invitationView is the public shape of an invitation; the token hash never
// leaves the server.
type invitationView struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	Status    string  `json:"status"`
	ExpiresAt string  `json:"expires_at"`
	Project   *string `json:"project_name,omitempty"`
}

// Create issues an invitation for a project. Requires manage rights.
func (h *InvitationHandler) Create(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	projectID := c.Param("id")

	canManage, err := h.projects.CanManage(requestContext(c), projectID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !canManage {
		response.Error(c, errors.ErrForbidden)
		return
	}

	var req createInvitationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.invitations.Create(requestContext(c), services.CreateInvitationInput{
		ProjectID: projectID,
		Email:     req.Email,
		Role:      req.Role,
		InvitedBy: userID,
	})
	if err != nil {
		if err == services.ErrProjectNotFound {
			response.Error(c, errors.ErrNotFound)
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, mapInvitation(result.Invitation))
}

// ListForProject returns invitations issued for a project. Requires manage rights.
func (h *InvitationHandler) ListForProject(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	projectID := c.Param("id")

	canManage, err := h.projects.CanManage(requestContext(c), projectID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !canManage {
		response.Error(c, errors.ErrForbidden)
		return
	}

	rows, err := h.invitations.ListForProject(requestContext(c), projectID)
	if err != nil {
		response.Error(c, err)
		return
	}

	views := make([]invitationView, 0, len(rows))
	for i := range rows {
		views = append(views, mapInvitation(&rows[i]))
	}
	response.Success(c, http.StatusOK, views)
}

// Get resolves an invitation by token so the join page can render it. No
// authentication required; the token itself is the credential.
func (h *InvitationHandler) Get(c *gin.Context) {
	invitation, err := h.invitations.GetByToken(requestContext(c), c.Param("token"))
	if err != nil {
		h.writeLifecycleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, mapInvitation(invitation))
}

// Accept resolves the invitation to accepted and grants the role.
func (h *InvitationHandler) Accept(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	invitation, err := h.invitations.Accept(requestContext(c), c.Param("token"), userID)
	if err != nil {
		h.writeLifecycleError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"invitation": mapInvitation(invitation),
		"project_id": invitation.ProjectID,
	})
}

// Decline resolves the invitation to declined.
func (h *InvitationHandler) Decline(c *gin.Context) {
	invitation, err := h.invitations.Decline(requestContext(c), c.Param("token"))
	if err != nil {
		h.writeLifecycleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, mapInvitation(invitation))
}

// writeLifecycleError maps invitation lifecycle failures onto terminal,
// human-readable API errors.
func (h *InvitationHandler) writeLifecycleError(c *gin.Context, err error) {
	switch err {
	case services.ErrInvitationNotFound:
		response.Error(c, errors.ErrInvalidToken)
	case services.ErrInvitationExpired:
		response.Error(c, errors.ErrTokenExpired)
	case services.ErrInvitationResolved:
		response.Error(c, errors.ErrAlreadyResolved)
	default:
		response.Error(c, err)
	}
}

func mapInvitation(invitation *models.ProjectInvitation) invitationView {
	view := invitationView{
		ID:        invitation.ID,
		ProjectID: invitation.ProjectID,
		Email:     invitation.Email,
		Role:      invitation.Role,
		Status:    invitation.Status,
		ExpiresAt: invitation.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if invitation.Project != nil {
		name := invitation.Project.Name
		view.Project = &name
	}
	return view
}
