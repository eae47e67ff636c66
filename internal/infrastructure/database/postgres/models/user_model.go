package models

import (
	"time"

	"github.com/google/uuid"
)

// UserModel represents the database model for User
type UserModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email     string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	FullName  string    `gorm:"type:varchar(255);not null"`
	Role      string    `gorm:"type:varchar(32);not null;default:'owner'"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (UserModel) TableName() string {
	return "users"
}

// All lists every model managed by migrations.
func All() []interface{} {
	return []interface{}{
		&UserModel{},
		&DeviceRequestModel{},
		&DeviceModel{},
		&UserDeviceModel{},
		&AccessGrantModel{},
		&NotificationModel{},
	}
}
