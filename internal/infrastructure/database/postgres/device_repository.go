package postgres

import (
	"context"
	"errors"
	"fmt"

	domainDevice "farm-iot-provisioning/internal/domain/device"
	"farm-iot-provisioning/internal/infrastructure/database/postgres/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeviceRepository implements domain.Device.Repository interface
type DeviceRepository struct {
	db *DB
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(db *DB) domainDevice.Repository {
	return &DeviceRepository{db: db}
}

func (r *DeviceRepository) GetByID(ctx context.Context, deviceID string) (*domainDevice.Device, error) {
	var dbModel models.DeviceModel
	err := r.db.DB.WithContext(ctx).
		Where("id = ?", deviceID).
		First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainDevice.ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return toDeviceEntity(&dbModel), nil
}

func (r *DeviceRepository) List(ctx context.Context, filter *domainDevice.Filter) ([]*domainDevice.Device, error) {
	var dbModels []models.DeviceModel

	if filter == nil {
		filter = &domainDevice.Filter{}
	}

	db := r.db.DB.WithContext(ctx).Model(&models.DeviceModel{})

	// Apply filters
	if filter.OwnerUserID != nil {
		db = db.Where("owner_user_id = ?", *filter.OwnerUserID)
	}
	if filter.OwnedOnly {
		db = db.Where("owner_user_id IS NOT NULL")
	}
	if filter.Status != nil {
		db = db.Where("status = ?", string(*filter.Status))
	}
	if filter.IDs != nil {
		if len(filter.IDs) == 0 {
			return []*domainDevice.Device{}, nil
		}
		db = db.Where("id IN ?", filter.IDs)
	}

	if err := db.Order("id").Find(&dbModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	devices := make([]*domainDevice.Device, len(dbModels))
	for i := range dbModels {
		devices[i] = toDeviceEntity(&dbModels[i])
	}

	return devices, nil
}

func (r *DeviceRepository) HasLink(ctx context.Context, userID uuid.UUID, deviceID string) (bool, error) {
	var count int64
	err := r.db.DB.WithContext(ctx).
		Model(&models.UserDeviceModel{}).
		Where("user_id = ? AND device_id = ?", userID, deviceID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check user device link: %w", err)
	}
	return count > 0, nil
}

func (r *DeviceRepository) ListLinks(ctx context.Context, userID *uuid.UUID) ([]*domainDevice.Link, error) {
	var dbModels []models.UserDeviceModel

	db := r.db.DB.WithContext(ctx).Model(&models.UserDeviceModel{})
	if userID != nil {
		db = db.Where("user_id = ?", *userID)
	}

	if err := db.Order("user_id").Order("device_id").Find(&dbModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list user device links: %w", err)
	}

	links := make([]*domainDevice.Link, len(dbModels))
	for i, m := range dbModels {
		links[i] = &domainDevice.Link{
			UserID:    m.UserID,
			DeviceID:  m.DeviceID,
			CreatedAt: m.CreatedAt,
		}
	}
	return links, nil
}

// Helper functions to convert between domain entities and database models

func toDeviceModel(d *domainDevice.Device) *models.DeviceModel {
	return &models.DeviceModel{
		ID:          d.ID,
		OwnerUserID: d.OwnerUserID,
		Status:      string(d.Status),
		RequestID:   d.RequestID,
		AssignedAt:  d.AssignedAt,
		AssignedBy:  d.AssignedBy,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func deviceColumns(m *models.DeviceModel) map[string]interface{} {
	return map[string]interface{}{
		"owner_user_id": m.OwnerUserID,
		"status":        m.Status,
		"request_id":    m.RequestID,
		"assigned_at":   m.AssignedAt,
		"assigned_by":   m.AssignedBy,
		"updated_at":    m.UpdatedAt,
	}
}

func toDeviceEntity(m *models.DeviceModel) *domainDevice.Device {
	return &domainDevice.Device{
		ID:          m.ID,
		OwnerUserID: m.OwnerUserID,
		Status:      domainDevice.DeviceStatus(m.Status),
		RequestID:   m.RequestID,
		AssignedAt:  m.AssignedAt,
		AssignedBy:  m.AssignedBy,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
