package models

// Document stores metadata for a file uploaded to a project (plans, permits,
// site photos). The bytes live on disk under the configured upload directory.
type Document struct {
	BaseModel

	ProjectID  string   `gorm:"type:uuid;not null;index" json:"project_id"`
	Project    *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	UploaderID string   `gorm:"type:uuid;not null" json:"uploader_id"`

	FileName    string `gorm:"not null" json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	StoragePath string `gorm:"not null" json:"-"`
}
