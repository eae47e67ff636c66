package assignment

import (
	"context"
	"errors"
	"strings"

	domainDevice "farm-iot-provisioning/internal/domain/device"
	domainNotification "farm-iot-provisioning/internal/domain/notification"
	domainRequest "farm-iot-provisioning/internal/domain/request"
	"farm-iot-provisioning/internal/domain/store"
	domainUser "farm-iot-provisioning/internal/domain/user"
	"farm-iot-provisioning/internal/logger"
	"farm-iot-provisioning/internal/provisioning"
	"farm-iot-provisioning/internal/request/lifecycle"
	"farm-iot-provisioning/internal/usecase/transition"
	usecaseAccess "farm-iot-provisioning/internal/usecase/access"
	usecaseNotification "farm-iot-provisioning/internal/usecase/notification"
	usecaseRequest "farm-iot-provisioning/internal/usecase/request"
	appErrors "farm-iot-provisioning/pkg/errors"
	"farm-iot-provisioning/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccessInvalidator is told which cached device listings an assignment touched.
type AccessInvalidator interface {
	DeviceChanged(ctx context.Context, deviceID string, users ...uuid.UUID)
}

// Service binds physical devices to accepted requests.
type Service struct {
	runner           *transition.Runner
	deviceRepo       domainDevice.Repository
	notificationRepo domainNotification.Repository
	publisher        provisioning.Publisher
	access           AccessInvalidator
}

func NewService(
	runner *transition.Runner,
	deviceRepo domainDevice.Repository,
	notificationRepo domainNotification.Repository,
	publisher provisioning.Publisher,
	access AccessInvalidator,
) *Service {
	if publisher == nil {
		publisher = provisioning.NoopPublisher{}
	}
	return &Service{
		runner:           runner,
		deviceRepo:       deviceRepo,
		notificationRepo: notificationRepo,
		publisher:        publisher,
		access:           access,
	}
}

// Assign binds the device to the requesting user. The device, the request, the
// owner's device index and the notification commit together or not at all.
// Repeating a committed assignment returns the stored record without writing.
func (s *Service) Assign(ctx context.Context, actor domainUser.Actor, requestID uuid.UUID, req *AssignRequest) (*AssignmentRecord, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.Validation("Invalid input", err)
	}
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		return nil, appErrors.Validation("Device id is required", nil)
	}
	if req.UserID == uuid.Nil {
		return nil, appErrors.Validation("User id is required", nil)
	}

	var previousOwner *uuid.UUID

	step := transition.Step{
		Command: lifecycle.Command{
			Action:   lifecycle.ActionAssign,
			Actor:    actor,
			DeviceID: deviceID,
		},
		Done: func(current *domainRequest.DeviceRequest) bool {
			return current.Status == domainRequest.StatusDeviceAssigned &&
				current.AssignedDeviceID != nil && *current.AssignedDeviceID == deviceID &&
				current.OwnerUserID == req.UserID
		},
		OnReject: func(current *domainRequest.DeviceRequest, err error) error {
			if appErrors.CodeOf(err) != appErrors.CodeInvalidTransition {
				return err
			}
			return appErrors.NewAppError(
				appErrors.CodeRequestNotAssignable,
				"Request must be accepted by the user before a device is assigned",
				err,
			)
		},
		Writes: func(ctx context.Context, current, next *domainRequest.DeviceRequest) ([]store.Write, error) {
			if req.UserID != current.OwnerUserID {
				return nil, appErrors.Validation("Device must be assigned to the requesting user", nil)
			}
			writes, prev, err := s.assignmentWrites(ctx, next, req.Reassign)
			previousOwner = prev
			return writes, err
		},
	}

	r, applied, err := s.runner.Run(ctx, requestID, step)
	if err != nil {
		return nil, err
	}

	device, err := s.deviceRepo.GetByID(ctx, deviceID)
	if err != nil && !(errors.Is(err, domainDevice.ErrDeviceNotFound) && !applied) {
		return nil, appErrors.Persistence("Failed to load assigned device", err)
	}
	if !applied && !boundTo(device, r) {
		logger.Warn("Device moved on since the assignment was committed",
			zap.String("request_id", r.ID.String()),
			zap.String("device_id", deviceID),
			logger.Event("device_unavailable"),
		)
		return nil, appErrors.NewAppError(
			appErrors.CodeDeviceUnavailable,
			"Device has since been assigned to another request",
			nil,
		)
	}
	n, err := s.notificationRepo.GetByID(ctx, domainNotification.AssignmentID(r.OwnerUserID, r.ID, deviceID))
	if err != nil && !errors.Is(err, domainNotification.ErrNotificationNotFound) {
		return nil, appErrors.Persistence("Failed to load assignment notification", err)
	}

	if applied {
		users := []uuid.UUID{r.OwnerUserID}
		if previousOwner != nil {
			users = append(users, *previousOwner)
		}
		if s.access != nil {
			s.access.DeviceChanged(ctx, deviceID, users...)
		}

		logger.Info("Device assigned",
			zap.String("request_id", r.ID.String()),
			zap.String("device_id", deviceID),
			zap.String("owner_user_id", r.OwnerUserID.String()),
			zap.String("assigned_by", actor.UserID.String()),
			zap.Bool("reassigned", previousOwner != nil),
			logger.Event("device_assigned"),
		)
	}

	// The retained message is republished on replay so a lost publish heals on retry.
	s.publish(ctx, r, device)

	record := &AssignmentRecord{
		Request:  usecaseRequest.ToRequestResponse(r, actor),
		Device:   usecaseAccess.ToDeviceResponse(device),
		Replayed: !applied,
	}
	if n != nil {
		record.Notification = usecaseNotification.ToNotificationResponse(n)
	}
	return record, nil
}

// assignmentWrites builds the writes that move the device to next's owner. It
// returns the owner the device is taken from, if any.
func (s *Service) assignmentWrites(ctx context.Context, next *domainRequest.DeviceRequest, reassign bool) ([]store.Write, *uuid.UUID, error) {
	deviceID := *next.AssignedDeviceID
	owner := next.OwnerUserID
	at := *next.DeviceAssignedAt

	existing, err := s.deviceRepo.GetByID(ctx, deviceID)
	if err != nil && !errors.Is(err, domainDevice.ErrDeviceNotFound) {
		return nil, nil, appErrors.Persistence("Failed to load device", err)
	}

	device := &domainDevice.Device{
		ID:          deviceID,
		OwnerUserID: &owner,
		Status:      domainDevice.StatusActive,
		RequestID:   &next.ID,
		AssignedAt:  &at,
		AssignedBy:  next.AssignedBy,
		CreatedAt:   at,
		UpdatedAt:   at,
	}

	var (
		deviceWrite   store.DeviceWrite
		previousOwner *uuid.UUID
	)
	switch {
	case existing == nil:
		deviceWrite = store.DeviceWrite{Device: device, Create: true}
	case existing.OwnerUserID == nil || *existing.OwnerUserID == owner:
		device.CreatedAt = existing.CreatedAt
		deviceWrite = store.DeviceWrite{Device: device, ExpectOwner: existing.OwnerUserID}
	case reassign:
		device.CreatedAt = existing.CreatedAt
		prev := *existing.OwnerUserID
		previousOwner = &prev
		deviceWrite = store.DeviceWrite{Device: device, ExpectOwner: &prev}
	default:
		logger.Warn("Device already owned by another user",
			zap.String("request_id", next.ID.String()),
			zap.String("device_id", deviceID),
			logger.Event("device_unavailable"),
		)
		return nil, nil, appErrors.NewAppError(
			appErrors.CodeDeviceUnavailable,
			"Device is already assigned to another user",
			nil,
		)
	}

	writes := []store.Write{deviceWrite}
	if previousOwner != nil {
		writes = append(writes, store.UnlinkWrite{UserID: *previousOwner, DeviceID: deviceID})
	}
	writes = append(writes,
		store.LinkWrite{UserID: owner, DeviceID: deviceID},
		store.NotificationWrite{Notification: domainNotification.NewDeviceAssignment(owner, next.ID, deviceID, at)},
	)
	return writes, previousOwner, nil
}

// boundTo reports whether device is still held by r's owner on behalf of r.
func boundTo(device *domainDevice.Device, r *domainRequest.DeviceRequest) bool {
	return device != nil &&
		device.RequestID != nil && *device.RequestID == r.ID &&
		device.IsOwnedBy(r.OwnerUserID)
}

func (s *Service) publish(ctx context.Context, r *domainRequest.DeviceRequest, device *domainDevice.Device) {
	msg := &provisioning.AssignmentMessage{
		DeviceID:            device.ID,
		OwnerUserID:         r.OwnerUserID,
		RequestID:           r.ID,
		RequestedParameters: r.RequestedParameters,
	}
	if r.DeviceAssignedAt != nil {
		msg.AssignedAt = *r.DeviceAssignedAt
	}

	if err := s.publisher.PublishAssignment(ctx, msg); err != nil {
		logger.Error("Failed to publish provisioning message",
			zap.String("request_id", r.ID.String()),
			zap.String("device_id", device.ID),
			zap.Error(err),
			logger.Event("device_provisioning_failed"),
		)
	}
}

// Complete closes out an assigned request.
func (s *Service) Complete(ctx context.Context, actor domainUser.Actor, requestID uuid.UUID) (*usecaseRequest.RequestResponse, error) {
	r, _, err := s.runner.Run(ctx, requestID, transition.Step{
		Command: lifecycle.Command{Action: lifecycle.ActionComplete, Actor: actor},
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Device request completed",
		zap.String("request_id", r.ID.String()),
		zap.String("completed_by", actor.UserID.String()),
		logger.Event("device_request_completed"),
	)
	return usecaseRequest.ToRequestResponse(r, actor), nil
}
