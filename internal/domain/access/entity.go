package access

import (
	"time"

	"farm-iot-provisioning/internal/domain/device"

	"github.com/google/uuid"
)

// AccessType is how a user reaches a device.
type AccessType string

const (
	AccessOwner    AccessType = "owner"
	AccessShared   AccessType = "shared"
	AccessOperator AccessType = "operator"
)

// Operation classifies what a caller wants to do with a device.
type Operation string

const (
	OperationRead    Operation = "read"
	OperationControl Operation = "control"
)

// Grant is a read-only permission letting a non-owner view a device.
// The owner is never represented as a grant.
type Grant struct {
	ID            uuid.UUID
	DeviceID      string
	OwnerUserID   uuid.UUID
	GranteeUserID uuid.UUID
	AccessType    AccessType
	CreatedAt     time.Time
	RevokedAt     *time.Time
}

func (g *Grant) IsActive() bool {
	return g.RevokedAt == nil
}

// AccessibleDevice is one entry of a user's device listing.
type AccessibleDevice struct {
	Device     *device.Device `json:"device"`
	AccessType AccessType     `json:"access_type"`
	OwnerName  *string        `json:"owner_name,omitempty"`
}
