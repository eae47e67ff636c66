package assignment

import (
	usecaseAccess "farm-iot-provisioning/internal/usecase/access"
	usecaseNotification "farm-iot-provisioning/internal/usecase/notification"
	usecaseRequest "farm-iot-provisioning/internal/usecase/request"

	"github.com/google/uuid"
)

type AssignRequest struct {
	DeviceID string    `json:"device_id" validate:"required,max=128"`
	UserID   uuid.UUID `json:"user_id"`

	// Reassign moves a device that is currently owned by someone else.
	Reassign bool `json:"reassign"`
}

// AssignmentRecord is the stored outcome of an assignment. Replayed is set when
// the call matched an assignment that had already been committed.
type AssignmentRecord struct {
	Request      *usecaseRequest.RequestResponse           `json:"request"`
	Device       *usecaseAccess.DeviceResponse             `json:"device"`
	Notification *usecaseNotification.NotificationResponse `json:"notification,omitempty"`
	Replayed     bool                                      `json:"replayed"`
}
