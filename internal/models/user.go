package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Goals offered by the profile form. Any other non-empty string is accepted as free-form.
const (
	GoalGainMuscle = "gain muscle"
	GoalLoseWeight = "lose weight"
)

// User is the locally stored user profile. Email is the stable identity key.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string         `gorm:"not null;size:255;uniqueIndex" json:"email"`
	Password  string         `gorm:"not null;default:''" json:"-"`
	Name      *string        `gorm:"size:255" json:"name"`
	Age       *int           `json:"age"`
	Height    *float64       `json:"height"` // meters
	Weight    *float64       `json:"weight"` // kilograms
	Goal      *string        `gorm:"size:100" json:"goal"`
	BMI       *float64       `gorm:"column:bmi" json:"bmi"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// IsComplete reports whether the profile carries the attributes plan generation needs.
func (u *User) IsComplete() bool {
	return u.Height != nil && u.Weight != nil && *u.Height > 0 && *u.Weight > 0
}

// ComputeBMI returns weight / height², or nil when either is missing.
func ComputeBMI(height, weight *float64) *float64 {
	if height == nil || weight == nil || *height <= 0 {
		return nil
	}
	bmi := *weight / (*height * *height)
	return &bmi
}
