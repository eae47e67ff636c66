package device

import (
	"time"

	"github.com/google/uuid"
)

// DeviceStatus represents the status of a device
type DeviceStatus string

const (
	StatusUnassigned  DeviceStatus = "unassigned"
	StatusActive      DeviceStatus = "active"
	StatusOffline     DeviceStatus = "offline"
	StatusMaintenance DeviceStatus = "maintenance"
)

func (s DeviceStatus) Valid() bool {
	switch s {
	case StatusUnassigned, StatusActive, StatusOffline, StatusMaintenance:
		return true
	}
	return false
}

// Device represents a physical farm sensor. It is created on first assignment
// and never destroyed; reassignment only moves OwnerUserID.
type Device struct {
	ID          string
	OwnerUserID *uuid.UUID
	Status      DeviceStatus
	RequestID   *uuid.UUID
	AssignedAt  *time.Time
	AssignedBy  *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsOwnedBy reports whether userID is the device's current owner.
func (d *Device) IsOwnedBy(userID uuid.UUID) bool {
	return d.OwnerUserID != nil && *d.OwnerUserID == userID
}

// CheckInvariants verifies that ownership and status agree.
func (d *Device) CheckInvariants() error {
	if !d.Status.Valid() {
		return ErrInvalidStatus
	}
	if (d.OwnerUserID != nil) != (d.Status != StatusUnassigned) {
		return ErrOwnershipMismatch
	}
	return nil
}

// Link is one entry of a user's owned-device index.
type Link struct {
	UserID    uuid.UUID
	DeviceID  string
	CreatedAt time.Time
}
