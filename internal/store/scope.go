package store

import "gorm.io/gorm"

// ForDay returns a GORM scope that filters plan rows by (email, date).
func ForDay(email, date string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("email = ? AND date = ?", email, date)
	}
}

// ForEmail returns a GORM scope that filters rows by email.
func ForEmail(email string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("email = ?", email)
	}
}
