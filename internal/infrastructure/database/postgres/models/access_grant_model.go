package models

import (
	"time"

	"github.com/google/uuid"
)

// AccessGrantModel represents the database model for AccessGrant
type AccessGrantModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	DeviceID      string     `gorm:"type:varchar(128);not null;index"`
	OwnerUserID   uuid.UUID  `gorm:"type:uuid;not null"`
	GranteeUserID uuid.UUID  `gorm:"type:uuid;not null;index"`
	AccessType    string     `gorm:"type:varchar(16);not null"`
	CreatedAt     time.Time  `gorm:"not null;autoCreateTime:false"`
	RevokedAt     *time.Time `gorm:"index"`
}

func (AccessGrantModel) TableName() string {
	return "access_grants"
}
