package notification

import (
	"time"

	domainNotification "farm-iot-provisioning/internal/domain/notification"

	"github.com/google/uuid"
)

type ListRequest struct {
	UnreadOnly bool `form:"unread_only"`
	Limit      int  `form:"limit" validate:"omitempty,min=1,max=200"`
}

type NotificationResponse struct {
	ID              uuid.UUID                           `json:"id"`
	RecipientUserID uuid.UUID                           `json:"recipient_user_id"`
	Type            domainNotification.NotificationType `json:"type"`
	Payload         domainNotification.Payload          `json:"payload"`
	Read            bool                                `json:"read"`
	ReadAt          *time.Time                          `json:"read_at,omitempty"`
	CreatedAt       time.Time                           `json:"created_at"`
}

func ToNotificationResponse(n *domainNotification.Notification) *NotificationResponse {
	return &NotificationResponse{
		ID:              n.ID,
		RecipientUserID: n.RecipientUserID,
		Type:            n.Type,
		Payload:         n.Payload,
		Read:            n.Read,
		ReadAt:          n.ReadAt,
		CreatedAt:       n.CreatedAt,
	}
}
