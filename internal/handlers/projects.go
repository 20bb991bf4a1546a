package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/probuildhq/probuild/internal/middleware"
	"github.com/probuildhq/probuild/internal/services"
	"github.com/probuildhq/probuild/pkg/errors"
	"github.com/probuildhq/probuild/pkg/response"
)

// ProjectHandler exposes project CRUD and membership endpoints.
type ProjectHandler struct {
	projects *services.ProjectService
}

// NewProjectHandler constructs a ProjectHandler.
func NewProjectHandler(projects *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

type createProjectRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=4000"`
	Location    string `json:"location" validate:"max=200"`
	Trade       string `json:"trade" validate:"max=100"`
}

type updateProjectRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=4000"`
	Location    *string `json:"location" validate:"omitempty,max=200"`
	Trade       *string `json:"trade" validate:"omitempty,max=100"`
	Status      *string `json:"status" validate:"omitempty,oneof=active on_hold completed archived"`
}

// Create registers a new project owned by the current user.
func (h *ProjectHandler) Create(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req createProjectRequest
	if !bindAndValidate(c, &req) {
		return
	}

	project, err := h.projects.Create(requestContext(c), services.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		Trade:       req.Trade,
		OwnerID:     userID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, project)
}

// List returns the projects the current user belongs to.
func (h *ProjectHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	projects, err := h.projects.ListForUser(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, projects)
}

// Get returns one project with its members. Requires membership.
func (h *ProjectHandler) Get(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	projectID := c.Param("id")

	role, err := h.projects.MemberRole(requestContext(c), projectID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if role == "" {
		response.Error(c, errors.ErrForbidden)
		return
	}

	project, err := h.projects.Get(requestContext(c), projectID)
	if err != nil {
		if err == services.ErrProjectNotFound {
			response.Error(c, errors.ErrNotFound)
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, project)
}

// ListMembers returns the member roster for a project. Requires membership.
func (h *ProjectHandler) ListMembers(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	projectID := c.Param("id")

	role, err := h.projects.MemberRole(requestContext(c), projectID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if role == "" {
		response.Error(c, errors.ErrForbidden)
		return
	}

	project, err := h.projects.Get(requestContext(c), projectID)
	if err != nil {
		if err == services.ErrProjectNotFound {
			response.Error(c, errors.ErrNotFound)
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, project.Members)
}

// Update applies partial changes to a project. Requires manage rights.
func (h *ProjectHandler) Update(c *gin.Context) {
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

	var req updateProjectRequest
	if !bindAndValidate(c, &req) {
		return
	}

	project, err := h.projects.Update(requestContext(c), projectID, services.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		Trade:       req.Trade,
		Status:      req.Status,
	})
	if err != nil {
		if err == services.ErrProjectNotFound {
			response.Error(c, errors.ErrNotFound)
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, project)
}

// RemoveMember drops a member from the project. Requires manage rights.
func (h *ProjectHandler) RemoveMember(c *gin.Context) {
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

	if err := h.projects.RemoveMember(requestContext(c), projectID, c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}
