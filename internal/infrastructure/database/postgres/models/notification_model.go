package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationModel represents the database model for Notification
type NotificationModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	RecipientUserID uuid.UUID `gorm:"type:uuid;not null;index"`
	Type            string    `gorm:"type:varchar(50);not null"`
	DeviceID        string    `gorm:"type:varchar(128);not null"`
	RequestID       uuid.UUID `gorm:"type:uuid;not null"`
	Read            bool      `gorm:"not null;default:false"`
	ReadAt          *time.Time
	CreatedAt       time.Time `gorm:"not null;index;autoCreateTime:false"`
}

func (NotificationModel) TableName() string {
	return "notifications"
}
