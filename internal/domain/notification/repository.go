package notification

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, notificationID uuid.UUID) (*Notification, error)
	ListByRecipient(ctx context.Context, recipientUserID uuid.UUID, unreadOnly bool, limit int) ([]*Notification, error)
	// MarkRead flips the read flag; it is the only mutation a notification accepts.
	MarkRead(ctx context.Context, recipientUserID, notificationID uuid.UUID) error
}
