package models

import (
	"time"

	"github.com/google/uuid"
)

// DeviceModel represents the database model for Devices.
type DeviceModel struct {
	ID          string     `gorm:"type:varchar(128);primaryKey"`
	OwnerUserID *uuid.UUID `gorm:"type:uuid;index"`
	Status      string     `gorm:"type:varchar(32);not null;index"`
	RequestID   *uuid.UUID `gorm:"type:uuid"`
	AssignedAt  *time.Time
	AssignedBy  *uuid.UUID `gorm:"type:uuid"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime:false"`
	UpdatedAt   time.Time  `gorm:"not null;autoUpdateTime:false"`
}

func (DeviceModel) TableName() string {
	return "devices"
}

// UserDeviceModel is the users/{id}/devices membership index.
type UserDeviceModel struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	DeviceID  string    `gorm:"type:varchar(128);primaryKey"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false"`
}

func (UserDeviceModel) TableName() string {
	return "user_devices"
}
