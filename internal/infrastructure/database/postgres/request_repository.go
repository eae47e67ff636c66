package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domainRequest "farm-iot-provisioning/internal/domain/request"
	"farm-iot-provisioning/internal/infrastructure/database/postgres/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestRepository implements domain.Request.Repository interface
type RequestRepository struct {
	db *DB
}

// NewRequestRepository creates a new device request repository
func NewRequestRepository(db *DB) domainRequest.Repository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) GetByID(ctx context.Context, requestID uuid.UUID) (*domainRequest.DeviceRequest, error) {
	var dbModel models.DeviceRequestModel
	err := r.db.DB.WithContext(ctx).
		Where("id = ?", requestID).
		First(&dbModel).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domainRequest.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device request: %w", err)
	}

	return toRequestEntity(&dbModel)
}

func (r *RequestRepository) List(ctx context.Context, filter *domainRequest.Filter) ([]*domainRequest.DeviceRequest, int64, error) {
	var dbModels []models.DeviceRequestModel
	var total int64

	if filter == nil {
		filter = &domainRequest.Filter{}
	}

	db := r.db.DB.WithContext(ctx).Model(&models.DeviceRequestModel{})

	// Apply filters
	if filter.OwnerUserID != nil {
		db = db.Where("owner_user_id = ?", *filter.OwnerUserID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", string(*filter.Status))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		db = db.Where("status IN ?", statuses)
	}

	// Count total
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count device requests: %w", err)
	}

	// Apply pagination
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	err := db.Order("created_at DESC").
		Order("id").
		Limit(pageSize).
		Offset(offset).
		Find(&dbModels).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list device requests: %w", err)
	}

	requests := make([]*domainRequest.DeviceRequest, len(dbModels))
	for i := range dbModels {
		entity, err := toRequestEntity(&dbModels[i])
		if err != nil {
			return nil, 0, err
		}
		requests[i] = entity
	}

	return requests, total, nil
}

// Helper functions to convert between domain entities and database models

func toRequestModel(r *domainRequest.DeviceRequest) (*models.DeviceRequestModel, error) {
	params := r.RequestedParameters
	if params == nil {
		params = []string{}
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode requested parameters: %w", err)
	}

	m := &models.DeviceRequestModel{
		ID:                  r.ID,
		OwnerUserID:         r.OwnerUserID,
		Status:              string(r.Status),
		FullName:            r.PersonalInfo.FullName,
		Email:               r.PersonalInfo.Email,
		Phone:               r.PersonalInfo.Phone,
		NationalID:          r.PersonalInfo.NationalID,
		Address:             r.PersonalInfo.Address,
		FarmName:            r.FarmInfo.FarmName,
		FarmSize:            r.FarmInfo.FarmSize,
		SoilType:            r.FarmInfo.SoilType,
		Location:            r.FarmInfo.Location,
		FarmNotes:           r.FarmInfo.Notes,
		RequestedParameters: string(encoded),
		AssignedDeviceID:    r.AssignedDeviceID,
		AssignedBy:          r.AssignedBy,
		RejectionReason:     r.RejectionReason,
		CancellationReason:  r.CancellationReason,
		AcceptedAt:          r.AcceptedAt,
		RejectedAt:          r.RejectedAt,
		EstimatedAt:         r.EstimatedAt,
		UserAcceptedAt:      r.UserAcceptedAt,
		UserRejectedAt:      r.UserRejectedAt,
		DeviceAssignedAt:    r.DeviceAssignedAt,
		CompletedAt:         r.CompletedAt,
		CancelledAt:         r.CancelledAt,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}

	if c := r.CostDetails; c != nil {
		m.CostDeviceEntry = floatPtr(c.DeviceCost.Entry)
		m.CostDeviceCanonical = floatPtr(c.DeviceCost.Canonical)
		m.CostServiceEntry = floatPtr(c.ServiceCharge.Entry)
		m.CostServiceCanonical = floatPtr(c.ServiceCharge.Canonical)
		m.CostDeliveryEntry = floatPtr(c.DeliveryCharge.Entry)
		m.CostDeliveryCanonical = floatPtr(c.DeliveryCharge.Canonical)
		m.CostTotalEntry = floatPtr(c.TotalCost.Entry)
		m.CostTotalCanonical = floatPtr(c.TotalCost.Canonical)
		m.CostExchangeRate = floatPtr(c.ExchangeRate)
		m.CostEntryCurrency = stringPtr(c.EntryCurrency)
		m.CostCanonicalCurrency = stringPtr(c.CanonicalCurrency)
		m.CostNotes = c.Notes
		estimatedBy := c.EstimatedBy
		m.CostEstimatedBy = &estimatedBy
	}

	return m, nil
}

// requestColumns lists every mutable column so an update is an absolute set.
func requestColumns(m *models.DeviceRequestModel) map[string]interface{} {
	return map[string]interface{}{
		"status":                  m.Status,
		"full_name":               m.FullName,
		"email":                   m.Email,
		"phone":                   m.Phone,
		"national_id":             m.NationalID,
		"address":                 m.Address,
		"farm_name":               m.FarmName,
		"farm_size":               m.FarmSize,
		"soil_type":               m.SoilType,
		"location":                m.Location,
		"farm_notes":              m.FarmNotes,
		"requested_parameters":    m.RequestedParameters,
		"cost_device_entry":       m.CostDeviceEntry,
		"cost_device_canonical":   m.CostDeviceCanonical,
		"cost_service_entry":      m.CostServiceEntry,
		"cost_service_canonical":  m.CostServiceCanonical,
		"cost_delivery_entry":     m.CostDeliveryEntry,
		"cost_delivery_canonical": m.CostDeliveryCanonical,
		"cost_total_entry":        m.CostTotalEntry,
		"cost_total_canonical":    m.CostTotalCanonical,
		"cost_exchange_rate":      m.CostExchangeRate,
		"cost_entry_currency":     m.CostEntryCurrency,
		"cost_canonical_currency": m.CostCanonicalCurrency,
		"cost_notes":              m.CostNotes,
		"cost_estimated_by":       m.CostEstimatedBy,
		"assigned_device_id":      m.AssignedDeviceID,
		"assigned_by":             m.AssignedBy,
		"rejection_reason":        m.RejectionReason,
		"cancellation_reason":     m.CancellationReason,
		"accepted_at":             m.AcceptedAt,
		"rejected_at":             m.RejectedAt,
		"estimated_at":            m.EstimatedAt,
		"user_accepted_at":        m.UserAcceptedAt,
		"user_rejected_at":        m.UserRejectedAt,
		"device_assigned_at":      m.DeviceAssignedAt,
		"completed_at":            m.CompletedAt,
		"cancelled_at":            m.CancelledAt,
		"updated_at":              m.UpdatedAt,
	}
}

func toRequestEntity(m *models.DeviceRequestModel) (*domainRequest.DeviceRequest, error) {
	var params []string
	if m.RequestedParameters != "" {
		if err := json.Unmarshal([]byte(m.RequestedParameters), &params); err != nil {
			return nil, fmt.Errorf("failed to decode requested parameters of %s: %w", m.ID, err)
		}
	}

	r := &domainRequest.DeviceRequest{
		ID:          m.ID,
		OwnerUserID: m.OwnerUserID,
		Status:      domainRequest.Status(m.Status),
		PersonalInfo: domainRequest.PersonalInfo{
			FullName:   m.FullName,
			Email:      m.Email,
			Phone:      m.Phone,
			NationalID: m.NationalID,
			Address:    m.Address,
		},
		FarmInfo: domainRequest.FarmInfo{
			FarmName: m.FarmName,
			FarmSize: m.FarmSize,
			SoilType: m.SoilType,
			Location: m.Location,
			Notes:    m.FarmNotes,
		},
		RequestedParameters: params,
		AssignedDeviceID:    m.AssignedDeviceID,
		AssignedBy:          m.AssignedBy,
		RejectionReason:     m.RejectionReason,
		CancellationReason:  m.CancellationReason,
		AcceptedAt:          m.AcceptedAt,
		RejectedAt:          m.RejectedAt,
		EstimatedAt:         m.EstimatedAt,
		UserAcceptedAt:      m.UserAcceptedAt,
		UserRejectedAt:      m.UserRejectedAt,
		DeviceAssignedAt:    m.DeviceAssignedAt,
		CompletedAt:         m.CompletedAt,
		CancelledAt:         m.CancelledAt,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}

	if m.CostTotalEntry != nil {
		r.CostDetails = &domainRequest.CostDetails{
			DeviceCost:        domainRequest.Amount{Entry: floatVal(m.CostDeviceEntry), Canonical: floatVal(m.CostDeviceCanonical)},
			ServiceCharge:     domainRequest.Amount{Entry: floatVal(m.CostServiceEntry), Canonical: floatVal(m.CostServiceCanonical)},
			DeliveryCharge:    domainRequest.Amount{Entry: floatVal(m.CostDeliveryEntry), Canonical: floatVal(m.CostDeliveryCanonical)},
			TotalCost:         domainRequest.Amount{Entry: floatVal(m.CostTotalEntry), Canonical: floatVal(m.CostTotalCanonical)},
			ExchangeRate:      floatVal(m.CostExchangeRate),
			EntryCurrency:     stringVal(m.CostEntryCurrency),
			CanonicalCurrency: stringVal(m.CostCanonicalCurrency),
			Notes:             m.CostNotes,
		}
		if m.CostEstimatedBy != nil {
			r.CostDetails.EstimatedBy = *m.CostEstimatedBy
		}
	}

	return r, nil
}

func floatPtr(v float64) *float64 { return &v }

func floatVal(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func stringPtr(v string) *string { return &v }

func stringVal(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
