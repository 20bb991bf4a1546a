package models

// Project member roles, from most to least privileged.
const (
	RoleOwner      = "owner"
	RoleManager    = "manager"
	RoleContractor = "contractor"
	RoleViewer     = "viewer"
)

// ValidRole reports whether the supplied role is one a member may hold.
func ValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleManager, RoleContractor, RoleViewer:
		return true
	}
	return false
}

// ProjectMember links a user to a project with a role.
type ProjectMember struct {
	BaseModel

	ProjectID string   `gorm:"type:uuid;not null;uniqueIndex:idx_project_user" json:"project_id"`
	UserID    string   `gorm:"type:uuid;not null;uniqueIndex:idx_project_user" json:"user_id"`
	Role      string   `gorm:"type:varchar(32);not null" json:"role"`
	Project   *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	User      *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
