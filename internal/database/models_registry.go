package database

import "github.com/Maktab119TinyInstagram/ESPA-Social-Meda/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Order matters for AutoMigrate: referenced tables come first.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.OTP{},
		&models.Hashtag{},
		&models.Post{},
		&models.Media{},
		&models.Comment{},
		&models.Reaction{},
		&models.Follow{},
	}
}
