package dto

import (
	"time"

	"github.com/google/uuid"
)

// CreateProfileRequest is the body of POST /api/profile. The email always comes from the
// token.
type CreateProfileRequest struct {
	Password string `json:"password,omitempty"`
	ProfileRequest
}

// ProfileRequest is the body of PUT /api/profile.
type ProfileRequest struct {
	Name   *string  `json:"name"`
	Age    *int     `json:"age"`
	Height *float64 `json:"height"`
	Weight *float64 `json:"weight"`
	Goal   *string  `json:"goal"`
}

type ProfileResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	Age       *int      `json:"age"`
	Height    *float64  `json:"height"`
	Weight    *float64  `json:"weight"`
	Goal      *string   `json:"goal"`
	BMI       *float64  `json:"bmi"`
	Complete  bool      `json:"complete"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UpdateProfileResponse struct {
	Profile ProfileResponse `json:"profile"`
	Synced  bool            `json:"synced"`
}
