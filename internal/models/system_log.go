package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SystemLog stores ERROR+ log records for later inspection.
type SystemLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Timestamp  time.Time      `gorm:"not null;index" json:"timestamp"`
	Level      string         `gorm:"size:10;not null;index" json:"level"`
	Message    string         `gorm:"type:text" json:"message"`
	TraceID    string         `gorm:"size:36;index" json:"trace_id"`
	Email      *string        `gorm:"size:255;index" json:"email"`
	Action     string         `gorm:"size:100" json:"action"`
	Collection string         `gorm:"size:50" json:"collection"`
	Error      string         `gorm:"type:text" json:"error"`
	LatencyMs  int            `json:"latency_ms"`
	Extra      datatypes.JSON `gorm:"default:'{}'" json:"extra"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (SystemLog) TableName() string {
	return "system_logs"
}
