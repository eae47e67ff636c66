package access

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the read side of access grants.
type Repository interface {
	GetActive(ctx context.Context, deviceID string, granteeUserID uuid.UUID) (*Grant, error)
	ListByDevice(ctx context.Context, deviceID string, activeOnly bool) ([]*Grant, error)
	ListByGrantee(ctx context.Context, granteeUserID uuid.UUID, activeOnly bool) ([]*Grant, error)
}
