package device

import "errors"

var (
	ErrDeviceNotFound          = errors.New("device not found")
	ErrInvalidStatus           = errors.New("invalid device status")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrOwnershipMismatch       = errors.New("device owner does not match device status")
)
