package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainNotification "farm-iot-provisioning/internal/domain/notification"
	"farm-iot-provisioning/internal/infrastructure/database/postgres/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationRepository implements domain.Notification.Repository interface
type NotificationRepository struct {
	db *DB
}

func NewNotificationRepository(db *DB) domainNotification.Repository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) GetByID(ctx context.Context, notificationID uuid.UUID) (*domainNotification.Notification, error) {
	var dbModel models.NotificationModel
	err := r.db.DB.WithContext(ctx).
		Where("id = ?", notificationID).
		First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainNotification.ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}

	return toNotificationEntity(&dbModel), nil
}

func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientUserID uuid.UUID, unreadOnly bool, limit int) ([]*domainNotification.Notification, error) {
	var dbModels []models.NotificationModel

	db := r.db.DB.WithContext(ctx).Where("recipient_user_id = ?", recipientUserID)
	if unreadOnly {
		db = db.Where("read = ?", false)
	}
	if limit <= 0 {
		limit = 50
	}

	if err := db.Order("created_at DESC").Order("id").Limit(limit).Find(&dbModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	notifications := make([]*domainNotification.Notification, len(dbModels))
	for i := range dbModels {
		notifications[i] = toNotificationEntity(&dbModels[i])
	}
	return notifications, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, recipientUserID, notificationID uuid.UUID) error {
	result := r.db.DB.WithContext(ctx).
		Model(&models.NotificationModel{}).
		Where("id = ? AND recipient_user_id = ?", notificationID, recipientUserID).
		Updates(map[string]interface{}{
			"read":    true,
			"read_at": gorm.Expr("COALESCE(read_at, ?)", time.Now().UTC()),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to mark notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainNotification.ErrNotificationNotFound
	}

	return nil
}

func toNotificationModel(n *domainNotification.Notification) *models.NotificationModel {
	return &models.NotificationModel{
		ID:              n.ID,
		RecipientUserID: n.RecipientUserID,
		Type:            string(n.Type),
		DeviceID:        n.Payload.DeviceID,
		RequestID:       n.Payload.RequestID,
		Read:            n.Read,
		ReadAt:          n.ReadAt,
		CreatedAt:       n.CreatedAt,
	}
}

func toNotificationEntity(m *models.NotificationModel) *domainNotification.Notification {
	return &domainNotification.Notification{
		ID:              m.ID,
		RecipientUserID: m.RecipientUserID,
		Type:            domainNotification.NotificationType(m.Type),
		Payload: domainNotification.Payload{
			DeviceID:  m.DeviceID,
			RequestID: m.RequestID,
		},
		Read:      m.Read,
		ReadAt:    m.ReadAt,
		CreatedAt: m.CreatedAt,
	}
}
