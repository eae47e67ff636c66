package request

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle status of a device request
type Status string

const (
	StatusPending        Status = "pending"         // Submitted by the requesting user
	StatusAccepted       Status = "accepted"        // Operator took the request on
	StatusRejected       Status = "rejected"        // Operator declined
	StatusCancelled      Status = "cancelled"       // Requesting user withdrew
	StatusCostEstimated  Status = "cost-estimated"  // Operator entered the cost breakdown
	StatusUserAccepted   Status = "user-accepted"   // User agreed to the estimate
	StatusUserRejected   Status = "user-rejected"   // User declined the estimate
	StatusDeviceAssigned Status = "device-assigned" // Physical device bound to the user
	StatusCompleted      Status = "completed"       // Order closed out
)

var AllStatuses = []Status{
	StatusPending,
	StatusAccepted,
	StatusRejected,
	StatusCancelled,
	StatusCostEstimated,
	StatusUserAccepted,
	StatusUserRejected,
	StatusDeviceAssigned,
	StatusCompleted,
}

func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves the status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusCancelled, StatusUserRejected:
		return true
	}
	return false
}

// RequiresCostDetails reports whether a request in this status carries a cost breakdown.
func (s Status) RequiresCostDetails() bool {
	switch s {
	case StatusCostEstimated, StatusUserAccepted, StatusUserRejected, StatusDeviceAssigned, StatusCompleted:
		return true
	}
	return false
}

// RequiresAssignedDevice reports whether a request in this status is bound to a device.
func (s Status) RequiresAssignedDevice() bool {
	return s == StatusDeviceAssigned || s == StatusCompleted
}

type PersonalInfo struct {
	FullName   string
	Email      string
	Phone      string
	NationalID string // NIC or passport number
	Address    string
}

type FarmInfo struct {
	FarmName string
	FarmSize float64
	SoilType string
	Location string
	Notes    string
}

// Amount is one cost figure kept in both currencies.
type Amount struct {
	Entry     float64
	Canonical float64
}

// CostDetails is the operator's cost breakdown for a request.
type CostDetails struct {
	DeviceCost     Amount
	ServiceCharge  Amount
	DeliveryCharge Amount
	TotalCost      Amount

	// Rate used for the conversion, kept so historical totals stay reproducible
	ExchangeRate      float64
	EntryCurrency     string
	CanonicalCurrency string

	Notes       *string
	EstimatedBy uuid.UUID
}

// DeviceRequest is a user's request for a farm sensor device.
type DeviceRequest struct {
	ID          uuid.UUID
	OwnerUserID uuid.UUID
	Status      Status

	PersonalInfo        PersonalInfo
	FarmInfo            FarmInfo
	RequestedParameters []string

	CostDetails *CostDetails

	AssignedDeviceID *string
	AssignedBy       *uuid.UUID

	RejectionReason    *string
	CancellationReason *string

	// Transition timestamps, each set at most once
	AcceptedAt       *time.Time
	RejectedAt       *time.Time
	EstimatedAt      *time.Time
	UserAcceptedAt   *time.Time
	UserRejectedAt   *time.Time
	DeviceAssignedAt *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so transitions never alias the caller's value.
func (r *DeviceRequest) Clone() *DeviceRequest {
	if r == nil {
		return nil
	}
	out := *r
	out.RequestedParameters = append([]string(nil), r.RequestedParameters...)
	if r.CostDetails != nil {
		cost := *r.CostDetails
		cost.Notes = cloneString(r.CostDetails.Notes)
		out.CostDetails = &cost
	}
	out.AssignedDeviceID = cloneString(r.AssignedDeviceID)
	out.RejectionReason = cloneString(r.RejectionReason)
	out.CancellationReason = cloneString(r.CancellationReason)
	if r.AssignedBy != nil {
		id := *r.AssignedBy
		out.AssignedBy = &id
	}
	out.AcceptedAt = cloneTime(r.AcceptedAt)
	out.RejectedAt = cloneTime(r.RejectedAt)
	out.EstimatedAt = cloneTime(r.EstimatedAt)
	out.UserAcceptedAt = cloneTime(r.UserAcceptedAt)
	out.UserRejectedAt = cloneTime(r.UserRejectedAt)
	out.DeviceAssignedAt = cloneTime(r.DeviceAssignedAt)
	out.CompletedAt = cloneTime(r.CompletedAt)
	out.CancelledAt = cloneTime(r.CancelledAt)
	return &out
}

// CheckInvariants verifies the status-dependent presence of cost details and device.
func (r *DeviceRequest) CheckInvariants() error {
	if !r.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, r.Status)
	}
	if hasDevice := r.AssignedDeviceID != nil; hasDevice != r.Status.RequiresAssignedDevice() {
		return fmt.Errorf("%w: assigned device present=%t in status %s", ErrInvariantViolated, hasDevice, r.Status)
	}
	if hasCost := r.CostDetails != nil; hasCost != r.Status.RequiresCostDetails() {
		return fmt.Errorf("%w: cost details present=%t in status %s", ErrInvariantViolated, hasCost, r.Status)
	}
	return nil
}

// NormalizeParameters turns requested sensor capabilities into a sorted set.
func NormalizeParameters(params []string) []string {
	seen := make(map[string]struct{}, len(params))
	out := make([]string, 0, len(params))
	for _, p := range params {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
