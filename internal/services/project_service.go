package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/probuildhq/probuild/internal/models"
	apperrors "github.com/probuildhq/probuild/pkg/errors"
)

// ProjectService manages construction projects and their memberships.
type ProjectService struct {
	db *gorm.DB
}

// NewProjectService constructs a ProjectService.
func NewProjectService(db *gorm.DB) (*ProjectService, error) {
	if db == nil {
		return nil, errors.New("project service: db is required")
	}
	return &ProjectService{db: db}, nil
}

// CreateProjectInput describes a new project listing.
type CreateProjectInput struct {
	Name        string
	Description string
	Location    string
	Trade       string
	OwnerID     string
}

// Create persists a project and enrols the owner as its first member.
func (s *ProjectService) Create(ctx context.Context, input CreateProjectInput) (*models.Project, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("project name is required")
	}
	ownerID := strings.TrimSpace(input.OwnerID)
	if ownerID == "" {
		return nil, errors.New("project service: owner id is required")
	}

	project := models.Project{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Location:    strings.TrimSpace(input.Location),
		Trade:       strings.TrimSpace(input.Trade),
		Status:      "active",
		OwnerID:     ownerID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return fmt.Errorf("project service: create project: %w", err)
		}
		member := models.ProjectMember{
			ProjectID: project.ID,
			UserID:    ownerID,
			Role:      models.RoleOwner,
		}
		if err := tx.Create(&member).Error; err != nil {
			return fmt.Errorf("project service: enrol owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// Get loads a project with its members.
func (s *ProjectService) Get(ctx context.Context, projectID string) (*models.Project, error) {
	ctx = ensureContext(ctx)

	var project models.Project
	err := s.db.WithContext(ctx).
		Preload("Members").
		Preload("Members.User").
		Take(&project, "id = ?", strings.TrimSpace(projectID)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("project service: load project: %w", err)
	}
	return &project, nil
}

// ListForUser returns the projects the user owns or belongs to, newest first.
func (s *ProjectService) ListForUser(ctx context.Context, userID string) ([]models.Project, error) {
	ctx = ensureContext(ctx)

	var projects []models.Project
	err := s.db.WithContext(ctx).
		Joins("JOIN project_members ON project_members.project_id = projects.id").
		Where("project_members.user_id = ?", strings.TrimSpace(userID)).
		Order("projects.created_at DESC").
		Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("project service: list projects: %w", err)
	}
	return projects, nil
}

// MemberRole returns the role the user holds on the project, or an empty
// string when they are not a member.
func (s *ProjectService) MemberRole(ctx context.Context, projectID, userID string) (string, error) {
	ctx = ensureContext(ctx)

	var member models.ProjectMember
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", strings.TrimSpace(projectID), strings.TrimSpace(userID)).
		Take(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("project service: load membership: %w", err)
	}
	return member.Role, nil
}

// CanManage reports whether the user may administer the project (invite
// members, upload documents, change settings).
func (s *ProjectService) CanManage(ctx context.Context, projectID, userID string) (bool, error) {
	role, err := s.MemberRole(ctx, projectID, userID)
	if err != nil {
		return false, err
	}
	return role == models.RoleOwner || role == models.RoleManager, nil
}

// UpdateProjectInput lists the mutable project fields. Nil fields are left
// untouched.
type UpdateProjectInput struct {
	Name        *string
	Description *string
	Location    *string
	Trade       *string
	Status      *string
}

// Update applies partial changes to a project.
func (s *ProjectService) Update(ctx context.Context, projectID string, input UpdateProjectInput) (*models.Project, error) {
	ctx = ensureContext(ctx)

	project, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("project name is required")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Location != nil {
		updates["location"] = strings.TrimSpace(*input.Location)
	}
	if input.Trade != nil {
		updates["trade"] = strings.TrimSpace(*input.Trade)
	}
	if input.Status != nil {
		updates["status"] = strings.TrimSpace(*input.Status)
	}
	if len(updates) == 0 {
		return project, nil
	}

	if err := s.db.WithContext(ctx).Model(project).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("project service: update project: %w", err)
	}
	return s.Get(ctx, projectID)
}

// RemoveMember drops a user from the project. The owner cannot be removed.
func (s *ProjectService) RemoveMember(ctx context.Context, projectID, userID string) error {
	ctx = ensureContext(ctx)

	project, err := s.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if project.OwnerID == strings.TrimSpace(userID) {
		return apperrors.NewBadRequest("the project owner cannot be removed")
	}

	result := s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", project.ID, strings.TrimSpace(userID)).
		Delete(&models.ProjectMember{})
	if result.Error != nil {
		return fmt.Errorf("project service: remove member: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
