package device

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the read side of devices and the user-device index.
type Repository interface {
	GetByID(ctx context.Context, deviceID string) (*Device, error)
	List(ctx context.Context, filter *Filter) ([]*Device, error)
	HasLink(ctx context.Context, userID uuid.UUID, deviceID string) (bool, error)
	ListLinks(ctx context.Context, userID *uuid.UUID) ([]*Link, error) // nil lists every link
}

// Filter represents filtering options for listing devices
type Filter struct {
	OwnerUserID *uuid.UUID
	Status      *DeviceStatus
	IDs         []string
	OwnedOnly   bool
}
