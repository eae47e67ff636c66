package notification

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	TypeDeviceAssignment NotificationType = "device_assignment"
)

// namespace for deterministic notification ids
var idNamespace = uuid.MustParse("6f1c8a52-3d0e-4b7a-9c61-2f4e8d9b0a17")

type Payload struct {
	DeviceID  string    `json:"device_id"`
	RequestID uuid.UUID `json:"request_id"`
}

// Notification is created once per assignment and only its Read flag changes afterwards.
type Notification struct {
	ID              uuid.UUID
	RecipientUserID uuid.UUID
	Type            NotificationType
	Payload         Payload
	Read            bool
	ReadAt          *time.Time
	CreatedAt       time.Time
}

// AssignmentID derives the notification id for an assignment so a retried
// assignment addresses the same record.
func AssignmentID(recipient, requestID uuid.UUID, deviceID string) uuid.UUID {
	return uuid.NewSHA1(idNamespace, []byte(recipient.String()+"/"+requestID.String()+"/"+deviceID))
}

// NewDeviceAssignment builds the unread notification for a device assignment.
func NewDeviceAssignment(recipient, requestID uuid.UUID, deviceID string, at time.Time) *Notification {
	return &Notification{
		ID:              AssignmentID(recipient, requestID, deviceID),
		RecipientUserID: recipient,
		Type:            TypeDeviceAssignment,
		Payload: Payload{
			DeviceID:  deviceID,
			RequestID: requestID,
		},
		CreatedAt: at,
	}
}
