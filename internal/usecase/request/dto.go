package request

import (
	"time"

	domainRequest "farm-iot-provisioning/internal/domain/request"
	domainUser "farm-iot-provisioning/internal/domain/user"
	"farm-iot-provisioning/internal/request/lifecycle"

	"github.com/google/uuid"
)

// Request DTOs
type PersonalInfoInput struct {
	FullName   string `json:"full_name" validate:"required,min=2,max=255"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required,min=7,max=32"`
	NationalID string `json:"nic" validate:"required,min=5,max=64"`
	Address    string `json:"address" validate:"required,min=5,max=500"`
}

type FarmInfoInput struct {
	FarmName string  `json:"farm_name" validate:"required,min=2,max=255"`
	FarmSize float64 `json:"farm_size" validate:"gt=0"`
	SoilType string  `json:"soil_type" validate:"omitempty,max=100"`
	Location string  `json:"location" validate:"required,max=255"`
	Notes    string  `json:"notes" validate:"omitempty,max=1000"`
}

type SubmitRequest struct {
	PersonalInfo        PersonalInfoInput `json:"personal_info" validate:"required"`
	FarmInfo            FarmInfoInput     `json:"farm_info" validate:"required"`
	RequestedParameters []string          `json:"requested_parameters" validate:"required,min=1,dive,required,max=64"`
}

type UpdateRequest struct {
	PersonalInfo        *PersonalInfoInput `json:"personal_info" validate:"omitempty"`
	FarmInfo            *FarmInfoInput     `json:"farm_info" validate:"omitempty"`
	RequestedParameters []string           `json:"requested_parameters" validate:"omitempty,min=1,dive,required,max=64"`
}

type ReasonRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

type ListRequest struct {
	Status   *domainRequest.Status `form:"status"`
	OwnerID  *uuid.UUID            `form:"-"`
	Page     int                   `form:"page" validate:"omitempty,min=1"`
	PageSize int                   `form:"page_size" validate:"omitempty,min=1,max=100"`
}

// Response DTOs
type AmountResponse struct {
	Entry     float64 `json:"entry"`
	Canonical float64 `json:"canonical"`
}

type CostDetailsResponse struct {
	DeviceCost        AmountResponse `json:"device_cost"`
	ServiceCharge     AmountResponse `json:"service_charge"`
	DeliveryCharge    AmountResponse `json:"delivery_charge"`
	TotalCost         AmountResponse `json:"total_cost"`
	ExchangeRate      float64        `json:"exchange_rate"`
	EntryCurrency     string         `json:"entry_currency"`
	CanonicalCurrency string         `json:"canonical_currency"`
	Notes             *string        `json:"notes,omitempty"`
	EstimatedBy       uuid.UUID      `json:"estimated_by"`
}

type RequestResponse struct {
	ID                  uuid.UUID            `json:"id"`
	OwnerUserID         uuid.UUID            `json:"owner_user_id"`
	Status              domainRequest.Status `json:"status"`
	PersonalInfo        PersonalInfoInput    `json:"personal_info"`
	FarmInfo            FarmInfoInput        `json:"farm_info"`
	RequestedParameters []string             `json:"requested_parameters"`
	CostDetails         *CostDetailsResponse `json:"cost_details,omitempty"`
	AssignedDeviceID    *string              `json:"assigned_device_id,omitempty"`
	AssignedBy          *uuid.UUID           `json:"assigned_by,omitempty"`
	RejectionReason     *string              `json:"rejection_reason,omitempty"`
	CancellationReason  *string              `json:"cancellation_reason,omitempty"`
	AcceptedAt          *time.Time           `json:"accepted_at,omitempty"`
	RejectedAt          *time.Time           `json:"rejected_at,omitempty"`
	EstimatedAt         *time.Time           `json:"estimated_at,omitempty"`
	UserAcceptedAt      *time.Time           `json:"user_accepted_at,omitempty"`
	UserRejectedAt      *time.Time           `json:"user_rejected_at,omitempty"`
	DeviceAssignedAt    *time.Time           `json:"device_assigned_at,omitempty"`
	CompletedAt         *time.Time           `json:"completed_at,omitempty"`
	CancelledAt         *time.Time           `json:"cancelled_at,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
	AllowedActions      []lifecycle.Action   `json:"allowed_actions"`
}

type ListResponse struct {
	Requests   []*RequestResponse `json:"requests"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
	TotalPages int                `json:"total_pages"`
}

func ToRequestResponse(r *domainRequest.DeviceRequest, viewer domainUser.Actor) *RequestResponse {
	resp := &RequestResponse{
		ID:          r.ID,
		OwnerUserID: r.OwnerUserID,
		Status:      r.Status,
		PersonalInfo: PersonalInfoInput{
			FullName:   r.PersonalInfo.FullName,
			Email:      r.PersonalInfo.Email,
			Phone:      r.PersonalInfo.Phone,
			NationalID: r.PersonalInfo.NationalID,
			Address:    r.PersonalInfo.Address,
		},
		FarmInfo: FarmInfoInput{
			FarmName: r.FarmInfo.FarmName,
			FarmSize: r.FarmInfo.FarmSize,
			SoilType: r.FarmInfo.SoilType,
			Location: r.FarmInfo.Location,
			Notes:    r.FarmInfo.Notes,
		},
		RequestedParameters: r.RequestedParameters,
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
		AllowedActions:      lifecycle.AllowedActions(r, viewer),
	}
	if resp.AllowedActions == nil {
		resp.AllowedActions = []lifecycle.Action{}
	}

	if c := r.CostDetails; c != nil {
		resp.CostDetails = &CostDetailsResponse{
			DeviceCost:        AmountResponse(c.DeviceCost),
			ServiceCharge:     AmountResponse(c.ServiceCharge),
			DeliveryCharge:    AmountResponse(c.DeliveryCharge),
			TotalCost:         AmountResponse(c.TotalCost),
			ExchangeRate:      c.ExchangeRate,
			EntryCurrency:     c.EntryCurrency,
			CanonicalCurrency: c.CanonicalCurrency,
			Notes:             c.Notes,
			EstimatedBy:       c.EstimatedBy,
		}
	}

	return resp
}
