package request

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the read side of device requests. Writes go through store.Committer.
type Repository interface {
	GetByID(ctx context.Context, requestID uuid.UUID) (*DeviceRequest, error)
	List(ctx context.Context, filter *Filter) ([]*DeviceRequest, int64, error)
}

// Filter represents filtering options for listing requests, newest first
type Filter struct {
	OwnerUserID *uuid.UUID
	Status      *Status
	Statuses    []Status

	Page     int
	PageSize int
}
