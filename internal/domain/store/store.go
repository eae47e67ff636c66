// Package store defines the transactional-write boundary. Every state change of
// the provisioning engine is expressed as a list of declarative writes that a
// Committer applies atomically: all of them become visible or none does.
package store

import (
	"context"
	"errors"
	"fmt"

	"farm-iot-provisioning/internal/domain/access"
	"farm-iot-provisioning/internal/domain/device"
	"farm-iot-provisioning/internal/domain/notification"
	"farm-iot-provisioning/internal/domain/request"

	"github.com/google/uuid"
)

// ErrConflict reports that a conditional write found a different state than expected.
var ErrConflict = errors.New("conditional write conflict")

// Committer applies writes in a single atomic commit.
type Committer interface {
	Commit(ctx context.Context, writes ...Write) error
}

// Write is one declarative change inside a commit.
type Write interface {
	Target() string
}

// RequestWrite stores the full request. An empty ExpectStatus inserts a new
// record; otherwise the update only applies while the stored status equals it.
type RequestWrite struct {
	Request      *request.DeviceRequest
	ExpectStatus request.Status
}

func (RequestWrite) Target() string { return "device_request" }

// DeviceWrite stores the full device. Create inserts a new record; otherwise the
// update only applies while the stored owner equals ExpectOwner (nil = unowned).
type DeviceWrite struct {
	Device      *device.Device
	Create      bool
	ExpectOwner *uuid.UUID
}

func (DeviceWrite) Target() string { return "device" }

// LinkWrite adds a device to a user's owned-device index (set union).
type LinkWrite struct {
	UserID   uuid.UUID
	DeviceID string
}

func (LinkWrite) Target() string { return "user_device" }

// UnlinkWrite removes a device from a user's owned-device index.
type UnlinkWrite struct {
	UserID   uuid.UUID
	DeviceID string
}

func (UnlinkWrite) Target() string { return "user_device" }

// NotificationWrite inserts a notification unless one with the same id exists.
type NotificationWrite struct {
	Notification *notification.Notification
}

func (NotificationWrite) Target() string { return "notification" }

// GrantWrite inserts a grant (Create) or stores its revocation; a revocation
// only applies to a grant that is still active.
type GrantWrite struct {
	Grant  *access.Grant
	Create bool
}

func (GrantWrite) Target() string { return "access_grant" }

// ConflictError names the write whose precondition failed.
type ConflictError struct {
	Target string
	Key    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Target, e.Key, ErrConflict)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ConflictTarget returns the target of a conflict in err's chain, or "".
func ConflictTarget(err error) string {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict.Target
	}
	return ""
}
