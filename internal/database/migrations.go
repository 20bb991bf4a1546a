package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/probuildhq/probuild/internal/models"
	"github.com/probuildhq/probuild/pkg/crypto"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Project{},
		&models.ProjectMember{},
		&models.ProjectInvitation{},
		&models.Notification{},
		&models.PasswordResetToken{},
		&models.Document{},
		&models.CacheEntry{},
	)
}

// SeedData ensures a bootstrap administrator account exists so a fresh
// deployment can be logged into. The password must be rotated on first login.
func SeedData(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := crypto.HashPassword("changeme")
	if err != nil {
		return err
	}

	admin := models.User{
		Email:     "admin@probuild.local",
		Password:  hashed,
		FirstName: "Site",
		LastName:  "Admin",
		IsActive:  true,
	}
	return db.Create(&admin).Error
}
