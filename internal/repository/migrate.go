package repository

import "gorm.io/gorm"

// Migrate brings the schema up to date for every table this package owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&userModel{},
		&propertyModel{},
		&reservationModel{},
	)
}
