package models

// Project represents a construction project listed on the marketplace.
type Project struct {
	BaseModel

	Name        string `gorm:"not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Location    string `json:"location"`
	Trade       string `json:"trade"`
	Status      string `gorm:"type:varchar(32);default:'active'" json:"status"`

	OwnerID string `gorm:"type:uuid;not null;index" json:"owner_id"`
	Owner   *User  `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`

	Members   []ProjectMember `gorm:"foreignKey:ProjectID" json:"members,omitempty"`
	Documents []Document      `gorm:"foreignKey:ProjectID" json:"-"`
}
