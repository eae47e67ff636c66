package notification

import (
	"context"
	"errors"

	domainNotification "farm-iot-provisioning/internal/domain/notification"
	domainUser "farm-iot-provisioning/internal/domain/user"
	"farm-iot-provisioning/internal/logger"
	appErrors "farm-iot-provisioning/pkg/errors"
	"farm-iot-provisioning/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service exposes a user's notification feed.
type Service struct {
	notificationRepo domainNotification.Repository
}

func NewService(notificationRepo domainNotification.Repository) *Service {
	return &Service{notificationRepo: notificationRepo}
}

// List returns the caller's notifications, newest first.
func (s *Service) List(ctx context.Context, actor domainUser.Actor, req *ListRequest) ([]*NotificationResponse, error) {
	if req == nil {
		req = &ListRequest{}
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.Validation("Invalid input", err)
	}

	notifications, err := s.notificationRepo.ListByRecipient(ctx, actor.UserID, req.UnreadOnly, req.Limit)
	if err != nil {
		return nil, appErrors.Persistence("Failed to list notifications", err)
	}

	responses := make([]*NotificationResponse, len(notifications))
	for i, n := range notifications {
		responses[i] = ToNotificationResponse(n)
	}
	return responses, nil
}

// MarkRead flags one of the caller's notifications as read. Marking it again is a no-op.
func (s *Service) MarkRead(ctx context.Context, actor domainUser.Actor, notificationID uuid.UUID) (*NotificationResponse, error) {
	err := s.notificationRepo.MarkRead(ctx, actor.UserID, notificationID)
	if errors.Is(err, domainNotification.ErrNotificationNotFound) {
		return nil, appErrors.NotFound("Notification not found", err)
	}
	if err != nil {
		return nil, appErrors.Persistence("Failed to update notification", err)
	}

	n, err := s.notificationRepo.GetByID(ctx, notificationID)
	if err != nil {
		return nil, appErrors.Persistence("Failed to load notification", err)
	}

	logger.Debug("Notification read",
		zap.String("notification_id", notificationID.String()),
		zap.String("user_id", actor.UserID.String()),
		logger.Event("notification_read"),
	)
	return ToNotificationResponse(n), nil
}
