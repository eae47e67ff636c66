package postgres

import (
	"context"
	"errors"
	"fmt"

	domainAccess "farm-iot-provisioning/internal/domain/access"
	"farm-iot-provisioning/internal/infrastructure/database/postgres/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccessRepository implements domain.Access.Repository interface
type AccessRepository struct {
	db *DB
}

func NewAccessRepository(db *DB) domainAccess.Repository {
	return &AccessRepository{db: db}
}

func (r *AccessRepository) GetActive(ctx context.Context, deviceID string, granteeUserID uuid.UUID) (*domainAccess.Grant, error) {
	var dbModel models.AccessGrantModel
	err := r.db.DB.WithContext(ctx).
		Where("device_id = ? AND grantee_user_id = ? AND revoked_at IS NULL", deviceID, granteeUserID).
		Order("created_at").
		First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainAccess.ErrGrantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get access grant: %w", err)
	}

	return toGrantEntity(&dbModel), nil
}

func (r *AccessRepository) ListByDevice(ctx context.Context, deviceID string, activeOnly bool) ([]*domainAccess.Grant, error) {
	db := r.db.DB.WithContext(ctx).Where("device_id = ?", deviceID)
	if activeOnly {
		db = db.Where("revoked_at IS NULL")
	}
	return r.find(db)
}

func (r *AccessRepository) ListByGrantee(ctx context.Context, granteeUserID uuid.UUID, activeOnly bool) ([]*domainAccess.Grant, error) {
	db := r.db.DB.WithContext(ctx).Where("grantee_user_id = ?", granteeUserID)
	if activeOnly {
		db = db.Where("revoked_at IS NULL")
	}
	return r.find(db)
}

func (r *AccessRepository) find(db *gorm.DB) ([]*domainAccess.Grant, error) {
	var dbModels []models.AccessGrantModel
	if err := db.Order("created_at").Order("id").Find(&dbModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list access grants: %w", err)
	}

	grants := make([]*domainAccess.Grant, len(dbModels))
	for i := range dbModels {
		grants[i] = toGrantEntity(&dbModels[i])
	}
	return grants, nil
}

func toGrantModel(g *domainAccess.Grant) *models.AccessGrantModel {
	return &models.AccessGrantModel{
		ID:            g.ID,
		DeviceID:      g.DeviceID,
		OwnerUserID:   g.OwnerUserID,
		GranteeUserID: g.GranteeUserID,
		AccessType:    string(g.AccessType),
		CreatedAt:     g.CreatedAt,
		RevokedAt:     g.RevokedAt,
	}
}

func toGrantEntity(m *models.AccessGrantModel) *domainAccess.Grant {
	return &domainAccess.Grant{
		ID:            m.ID,
		DeviceID:      m.DeviceID,
		OwnerUserID:   m.OwnerUserID,
		GranteeUserID: m.GranteeUserID,
		AccessType:    domainAccess.AccessType(m.AccessType),
		CreatedAt:     m.CreatedAt,
		RevokedAt:     m.RevokedAt,
	}
}
