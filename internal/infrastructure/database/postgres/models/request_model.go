package models

import (
	"time"

	"github.com/google/uuid"
)

// DeviceRequestModel represents the database model for DeviceRequest.
// Cost details are flattened into nullable cost_* columns.
type DeviceRequestModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index"`
	Status      string    `gorm:"type:varchar(32);not null;index"`

	FullName   string `gorm:"type:varchar(255);not null"`
	Email      string `gorm:"type:varchar(255);not null"`
	Phone      string `gorm:"type:varchar(32)"`
	NationalID string `gorm:"type:varchar(64)"`
	Address    string `gorm:"type:text"`

	FarmName  string  `gorm:"type:varchar(255);not null"`
	FarmSize  float64 `gorm:"type:double precision"`
	SoilType  string  `gorm:"type:varchar(100)"`
	Location  string  `gorm:"type:varchar(255)"`
	FarmNotes string  `gorm:"type:text"`

	// JSON array of sensor capability names
	RequestedParameters string `gorm:"type:text;not null"`

	CostDeviceEntry       *float64   `gorm:"type:double precision"`
	CostDeviceCanonical   *float64   `gorm:"type:double precision"`
	CostServiceEntry      *float64   `gorm:"type:double precision"`
	CostServiceCanonical  *float64   `gorm:"type:double precision"`
	CostDeliveryEntry     *float64   `gorm:"type:double precision"`
	CostDeliveryCanonical *float64   `gorm:"type:double precision"`
	CostTotalEntry        *float64   `gorm:"type:double precision"`
	CostTotalCanonical    *float64   `gorm:"type:double precision"`
	CostExchangeRate      *float64   `gorm:"type:double precision"`
	CostEntryCurrency     *string    `gorm:"type:varchar(8)"`
	CostCanonicalCurrency *string    `gorm:"type:varchar(8)"`
	CostNotes             *string    `gorm:"type:text"`
	CostEstimatedBy       *uuid.UUID `gorm:"type:uuid"`

	AssignedDeviceID *string    `gorm:"type:varchar(128);index"`
	AssignedBy       *uuid.UUID `gorm:"type:uuid"`

	RejectionReason    *string `gorm:"type:text"`
	CancellationReason *string `gorm:"type:text"`

	AcceptedAt       *time.Time
	RejectedAt       *time.Time
	EstimatedAt      *time.Time
	UserAcceptedAt   *time.Time
	UserRejectedAt   *time.Time
	DeviceAssignedAt *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time

	CreatedAt time.Time `gorm:"not null;index;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (DeviceRequestModel) TableName() string {
	return "device_requests"
}
