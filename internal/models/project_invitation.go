package models

import "time"

// Invitation lifecycle states. An invitation leaves pending at most once.
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationDeclined = "declined"
	InvitationExpired  = "expired"
)

// ProjectInvitation grants a role on a project to the holder of a single-use token.
// The raw token is never stored; only its SHA-256 digest.
type ProjectInvitation struct {
	BaseModel

	ProjectID string   `gorm:"type:uuid;not null;index" json:"project_id"`
	Project   *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`

	Email     string `gorm:"not null;index" json:"email"`
	Role      string `gorm:"type:varchar(32);not null" json:"role"`
	TokenHash string `gorm:"uniqueIndex;not null" json:"-"`
	InvitedBy string `gorm:"type:uuid" json:"invited_by"`

	Status     string     `gorm:"type:varchar(16);default:'pending';index" json:"status"`
	ExpiresAt  time.Time  `gorm:"index" json:"expires_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
	AcceptedBy *string    `gorm:"type:uuid" json:"accepted_by,omitempty"`
}

// Resolved reports whether the invitation has reached a terminal state.
func (i *ProjectInvitation) Resolved() bool {
	return i.Status != InvitationPending
}
