package access

import (
	"time"

	domainAccess "farm-iot-provisioning/internal/domain/access"
	domainDevice "farm-iot-provisioning/internal/domain/device"

	"github.com/google/uuid"
)

// Request DTOs
type GrantRequest struct {
	// Grantee is the grantee's user id or email address
	Grantee string `json:"grantee" validate:"required,max=255"`
}

type SetStatusRequest struct {
	Status domainDevice.DeviceStatus `json:"status" validate:"required,oneof=active offline maintenance"`
}

// Response DTOs
type DeviceResponse struct {
	ID          string                    `json:"id"`
	OwnerUserID *uuid.UUID                `json:"owner_user_id,omitempty"`
	Status      domainDevice.DeviceStatus `json:"status"`
	RequestID   *uuid.UUID                `json:"request_id,omitempty"`
	AssignedAt  *time.Time                `json:"assigned_at,omitempty"`
	CreatedAt   time.Time                 `json:"created_at"`
	UpdatedAt   time.Time                 `json:"updated_at"`
}

type AccessibleDeviceResponse struct {
	Device     *DeviceResponse         `json:"device"`
	AccessType domainAccess.AccessType `json:"access_type"`
	OwnerName  *string                 `json:"owner_name,omitempty"`
}

type GrantResponse struct {
	ID            uuid.UUID               `json:"id"`
	DeviceID      string                  `json:"device_id"`
	OwnerUserID   uuid.UUID               `json:"owner_user_id"`
	GranteeUserID uuid.UUID               `json:"grantee_user_id"`
	AccessType    domainAccess.AccessType `json:"access_type"`
	CreatedAt     time.Time               `json:"created_at"`
	RevokedAt     *time.Time              `json:"revoked_at,omitempty"`
}

func ToDeviceResponse(d *domainDevice.Device) *DeviceResponse {
	return &DeviceResponse{
		ID:          d.ID,
		OwnerUserID: d.OwnerUserID,
		Status:      d.Status,
		RequestID:   d.RequestID,
		AssignedAt:  d.AssignedAt,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func ToAccessibleDeviceResponse(a *domainAccess.AccessibleDevice) *AccessibleDeviceResponse {
	return &AccessibleDeviceResponse{
		Device:     ToDeviceResponse(a.Device),
		AccessType: a.AccessType,
		OwnerName:  a.OwnerName,
	}
}

func ToGrantResponse(g *domainAccess.Grant) *GrantResponse {
	return &GrantResponse{
		ID:            g.ID,
		DeviceID:      g.DeviceID,
		OwnerUserID:   g.OwnerUserID,
		GranteeUserID: g.GranteeUserID,
		AccessType:    g.AccessType,
		CreatedAt:     g.CreatedAt,
		RevokedAt:     g.RevokedAt,
	}
}
