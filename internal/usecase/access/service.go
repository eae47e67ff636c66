package access

import (
	"context"
	"errors"
	"strings"
	"time"

	"farm-iot-provisioning/internal/cache"
	domainAccess "farm-iot-provisioning/internal/domain/access"
	domainDevice "farm-iot-provisioning/internal/domain/device"
	"farm-iot-provisioning/internal/domain/store"
	domainUser "farm-iot-provisioning/internal/domain/user"
	"farm-iot-provisioning/internal/logger"
	appErrors "farm-iot-provisioning/pkg/errors"
	"farm-iot-provisioning/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxRevokeAttempts bounds how often a revocation re-reads grants after a conflict.
const maxRevokeAttempts = 3

// Service implements owner and shared-viewer access control on devices
type Service struct {
	deviceRepo domainDevice.Repository
	accessRepo domainAccess.Repository
	userRepo   domainUser.Repository
	committer  store.Committer
	cache      cache.AccessCache
	now        func() time.Time
}

func NewService(
	deviceRepo domainDevice.Repository,
	accessRepo domainAccess.Repository,
	userRepo domainUser.Repository,
	committer store.Committer,
	accessCache cache.AccessCache,
) *Service {
	if accessCache == nil {
		accessCache = cache.NoopAccessCache{}
	}
	return &Service{
		deviceRepo: deviceRepo,
		accessRepo: accessRepo,
		userRepo:   userRepo,
		committer:  committer,
		cache:      accessCache,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for grant timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// GrantAccess lets the device owner share read-only access with another user.
// Granting an already shared device returns the existing grant.
func (s *Service) GrantAccess(ctx context.Context, actor domainUser.Actor, deviceID string, req *GrantRequest) (*GrantResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.Validation("Invalid input", err)
	}

	device, err := s.ownedDevice(ctx, actor, deviceID, "grant access to")
	if err != nil {
		return nil, err
	}

	grantee, err := s.resolveUser(ctx, req.Grantee)
	if err != nil {
		return nil, err
	}
	if grantee.ID == actor.UserID {
		return nil, appErrors.Validation("Cannot share a device with its owner", domainAccess.ErrSelfGrant)
	}

	active, err := s.accessRepo.ListByDevice(ctx, device.ID, true)
	if err != nil {
		return nil, appErrors.Persistence("Failed to load access grants", err)
	}

	var writes []store.Write
	now := s.now()
	for _, g := range active {
		if g.GranteeUserID != grantee.ID {
			continue
		}
		if g.OwnerUserID == actor.UserID {
			return ToGrantResponse(g), nil
		}
		// Left over from a previous owner; retire it with the new grant.
		revoked := *g
		revoked.RevokedAt = &now
		writes = append(writes, store.GrantWrite{Grant: &revoked})
	}

	grant := &domainAccess.Grant{
		ID:            uuid.New(),
		DeviceID:      device.ID,
		OwnerUserID:   actor.UserID,
		GranteeUserID: grantee.ID,
		AccessType:    domainAccess.AccessShared,
		CreatedAt:     now,
	}
	writes = append(writes, store.GrantWrite{Grant: grant, Create: true})

	if err := s.committer.Commit(ctx, writes...); err != nil {
		return nil, appErrors.Persistence("Failed to store access grant", err)
	}
	s.invalidate(ctx, grantee.ID)

	logger.Info("Device access granted",
		zap.String("device_id", device.ID),
		zap.String("owner_user_id", actor.UserID.String()),
		zap.String("grantee_user_id", grantee.ID.String()),
		logger.Event("device_access_granted"),
	)

	return ToGrantResponse(grant), nil
}

// RevokeAccess ends every active grant of granteeID on the device. Revoking
// access that is not shared is a no-op.
func (s *Service) RevokeAccess(ctx context.Context, actor domainUser.Actor, deviceID string, granteeID uuid.UUID) error {
	device, err := s.ownedDevice(ctx, actor, deviceID, "revoke access to")
	if err != nil {
		return err
	}

	revoked, err := s.revokeGrants(ctx, device.ID, granteeID)
	if err != nil {
		return err
	}
	s.invalidate(ctx, granteeID)

	logger.Info("Device access revoked",
		zap.String("device_id", device.ID),
		zap.String("owner_user_id", actor.UserID.String()),
		zap.String("grantee_user_id", granteeID.String()),
		zap.Int("grants_revoked", revoked),
		logger.Event("device_access_revoked"),
	)
	return nil
}

// revokeGrants revokes every active grant of granteeID on the device in one
// commit. A concurrent revocation makes the commit conflict; the grants are
// then re-read so only the ones still active are revoked.
func (s *Service) revokeGrants(ctx context.Context, deviceID string, granteeID uuid.UUID) (int, error) {
	var lastConflict error
	for attempt := 1; attempt <= maxRevokeAttempts; attempt++ {
		active, err := s.accessRepo.ListByDevice(ctx, deviceID, true)
		if err != nil {
			return 0, appErrors.Persistence("Failed to load access grants", err)
		}

		now := s.now()
		var writes []store.Write
		for _, g := range active {
			if g.GranteeUserID != granteeID {
				continue
			}
			revoked := *g
			revoked.RevokedAt = &now
			writes = append(writes, store.GrantWrite{Grant: &revoked})
		}
		if len(writes) == 0 {
			return 0, nil
		}

		err = s.committer.Commit(ctx, writes...)
		if err == nil {
			return len(writes), nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return 0, appErrors.Persistence("Failed to revoke access grant", err)
		}
		lastConflict = err
	}
	return 0, appErrors.Persistence("Access grants kept changing during revocation", lastConflict)
}

// ListGrants returns the active grants of a device to its owner.
func (s *Service) ListGrants(ctx context.Context, actor domainUser.Actor, deviceID string) ([]*GrantResponse, error) {
	device, err := s.ownedDevice(ctx, actor, deviceID, "list grants of")
	if err != nil {
		return nil, err
	}

	grants, err := s.accessRepo.ListByDevice(ctx, device.ID, true)
	if err != nil {
		return nil, appErrors.Persistence("Failed to load access grants", err)
	}

	responses := make([]*GrantResponse, 0, len(grants))
	for _, g := range grants {
		if g.OwnerUserID != *device.OwnerUserID {
			continue
		}
		responses = append(responses, ToGrantResponse(g))
	}
	return responses, nil
}

// ListAccessibleDevices returns devices the user owns plus devices shared
// with them by their current owner.
func (s *Service) ListAccessibleDevices(ctx context.Context, actor domainUser.Actor) ([]*AccessibleDeviceResponse, error) {
	accessible, hit, err := s.cache.GetAccessible(ctx, actor.UserID)
	if err != nil {
		logger.Warn("Access cache read failed", zap.Error(err), logger.Event("access_cache_error"))
	}
	if !hit {
		accessible, err = s.loadAccessible(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetAccessible(ctx, actor.UserID, accessible); err != nil {
			logger.Warn("Access cache write failed", zap.Error(err), logger.Event("access_cache_error"))
		}
	}

	responses := make([]*AccessibleDeviceResponse, len(accessible))
	for i, a := range accessible {
		responses[i] = ToAccessibleDeviceResponse(a)
	}
	return responses, nil
}

func (s *Service) loadAccessible(ctx context.Context, userID uuid.UUID) ([]*domainAccess.AccessibleDevice, error) {
	owned, err := s.deviceRepo.List(ctx, &domainDevice.Filter{OwnerUserID: &userID})
	if err != nil {
		return nil, appErrors.Persistence("Failed to list owned devices", err)
	}

	accessible := make([]*domainAccess.AccessibleDevice, 0, len(owned))
	for _, d := range owned {
		accessible = append(accessible, &domainAccess.AccessibleDevice{Device: d, AccessType: domainAccess.AccessOwner})
	}

	grants, err := s.accessRepo.ListByGrantee(ctx, userID, true)
	if err != nil {
		return nil, appErrors.Persistence("Failed to list shared devices", err)
	}
	if len(grants) == 0 {
		return accessible, nil
	}

	grantOwner := make(map[string]uuid.UUID, len(grants))
	ids := make([]string, 0, len(grants))
	for _, g := range grants {
		if _, seen := grantOwner[g.DeviceID]; seen {
			continue
		}
		grantOwner[g.DeviceID] = g.OwnerUserID
		ids = append(ids, g.DeviceID)
	}

	shared, err := s.deviceRepo.List(ctx, &domainDevice.Filter{IDs: ids})
	if err != nil {
		return nil, appErrors.Persistence("Failed to list shared devices", err)
	}

	ownerNames := map[uuid.UUID]*string{}
	for _, d := range shared {
		// A grant only counts while its owner still owns the device.
		if !d.IsOwnedBy(grantOwner[d.ID]) || d.IsOwnedBy(userID) {
			continue
		}
		owner := *d.OwnerUserID
		name, ok := ownerNames[owner]
		if !ok {
			if u, err := s.userRepo.GetByID(ctx, owner); err == nil {
				name = &u.FullName
			}
			ownerNames[owner] = name
		}
		accessible = append(accessible, &domainAccess.AccessibleDevice{Device: d, AccessType: domainAccess.AccessShared, OwnerName: name})
	}

	return accessible, nil
}

// Authorize checks whether actor may perform op on the device and returns how
// they reach it. Shared viewers may only read; operators may read any device.
func (s *Service) Authorize(ctx context.Context, actor domainUser.Actor, deviceID string, op domainAccess.Operation) (domainAccess.AccessType, *domainDevice.Device, error) {
	device, err := s.loadDevice(ctx, deviceID)
	if err != nil {
		return "", nil, err
	}

	if device.IsOwnedBy(actor.UserID) {
		return domainAccess.AccessOwner, device, nil
	}
	if actor.IsSuperAdmin() {
		return domainAccess.AccessOperator, device, nil
	}

	if op == domainAccess.OperationRead {
		if actor.IsOperator() {
			return domainAccess.AccessOperator, device, nil
		}
		if device.OwnerUserID != nil {
			grant, err := s.accessRepo.GetActive(ctx, device.ID, actor.UserID)
			if err != nil && !errors.Is(err, domainAccess.ErrGrantNotFound) {
				return "", nil, appErrors.Persistence("Failed to load access grant", err)
			}
			if grant != nil && grant.OwnerUserID == *device.OwnerUserID {
				return domainAccess.AccessShared, device, nil
			}
		}
	}

	logger.Warn("Device access denied",
		zap.String("device_id", deviceID),
		zap.String("user_id", actor.UserID.String()),
		zap.String("operation", string(op)),
		logger.Event("device_access_unauthorized"),
	)
	return "", nil, appErrors.Unauthorized("Not allowed to " + string(op) + " this device")
}

// GetDevice returns a device the caller may read.
func (s *Service) GetDevice(ctx context.Context, actor domainUser.Actor, deviceID string) (*AccessibleDeviceResponse, error) {
	accessType, device, err := s.Authorize(ctx, actor, deviceID, domainAccess.OperationRead)
	if err != nil {
		return nil, err
	}
	return &AccessibleDeviceResponse{Device: ToDeviceResponse(device), AccessType: accessType}, nil
}

// SetDeviceStatus is a control operation reserved for the owner.
func (s *Service) SetDeviceStatus(ctx context.Context, actor domainUser.Actor, deviceID string, req *SetStatusRequest) (*DeviceResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.Validation("Invalid input", err)
	}

	_, device, err := s.Authorize(ctx, actor, deviceID, domainAccess.OperationControl)
	if err != nil {
		return nil, err
	}
	if device.OwnerUserID == nil {
		return nil, appErrors.NewAppError(appErrors.CodeDeviceUnavailable, "Device is not assigned", domainDevice.ErrInvalidStatusTransition)
	}
	if device.Status == req.Status {
		return ToDeviceResponse(device), nil
	}

	owner := *device.OwnerUserID
	updated := *device
	updated.Status = req.Status
	updated.UpdatedAt = s.now()

	err = s.committer.Commit(ctx, store.DeviceWrite{Device: &updated, ExpectOwner: &owner})
	if errors.Is(err, store.ErrConflict) {
		return nil, appErrors.NewAppError(appErrors.CodeDeviceUnavailable, "Device changed owner concurrently", err)
	}
	if err != nil {
		return nil, appErrors.Persistence("Failed to update device status", err)
	}
	s.DeviceChanged(ctx, device.ID, owner)

	logger.Info("Device status changed",
		zap.String("device_id", device.ID),
		zap.String("from", string(device.Status)),
		zap.String("to", string(req.Status)),
		logger.Event("device_status_changed"),
	)
	return ToDeviceResponse(&updated), nil
}

// DeviceChanged drops cached listings of the given users and of every grantee
// of the device.
func (s *Service) DeviceChanged(ctx context.Context, deviceID string, users ...uuid.UUID) {
	grants, err := s.accessRepo.ListByDevice(ctx, deviceID, true)
	if err != nil {
		logger.Warn("Failed to load grants for cache invalidation", zap.Error(err), logger.Event("access_cache_error"))
	}
	for _, g := range grants {
		users = append(users, g.GranteeUserID)
	}
	s.invalidate(ctx, users...)
}

func (s *Service) invalidate(ctx context.Context, users ...uuid.UUID) {
	if err := s.cache.Invalidate(ctx, users...); err != nil {
		logger.Warn("Access cache invalidation failed", zap.Error(err), logger.Event("access_cache_error"))
	}
}

func (s *Service) loadDevice(ctx context.Context, deviceID string) (*domainDevice.Device, error) {
	device, err := s.deviceRepo.GetByID(ctx, deviceID)
	if errors.Is(err, domainDevice.ErrDeviceNotFound) {
		return nil, appErrors.NotFound("Device not found", err)
	}
	if err != nil {
		return nil, appErrors.Persistence("Failed to load device", err)
	}
	return device, nil
}

func (s *Service) ownedDevice(ctx context.Context, actor domainUser.Actor, deviceID, verb string) (*domainDevice.Device, error) {
	device, err := s.loadDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if !device.IsOwnedBy(actor.UserID) {
		logger.Warn("Only the owner may manage device access",
			zap.String("device_id", deviceID),
			zap.String("user_id", actor.UserID.String()),
			logger.Event("device_access_unauthorized"),
		)
		return nil, appErrors.Unauthorized("Only the device owner can " + verb + " this device")
	}
	return device, nil
}

// resolveUser finds a user by id or, failing that, by email.
func (s *Service) resolveUser(ctx context.Context, idOrEmail string) (*domainUser.User, error) {
	idOrEmail = strings.TrimSpace(idOrEmail)

	var (
		u   *domainUser.User
		err error
	)
	if id, parseErr := uuid.Parse(idOrEmail); parseErr == nil {
		u, err = s.userRepo.GetByID(ctx, id)
	} else {
		email, emailErr := utils.ParseEmail(idOrEmail)
		if emailErr != nil {
			return nil, appErrors.Validation("Grantee must be a user id or an email address", emailErr)
		}
		u, err = s.userRepo.GetByEmail(ctx, email)
	}

	if errors.Is(err, domainUser.ErrUserNotFound) {
		return nil, appErrors.NotFound("Grantee not found", err)
	}
	if err != nil {
		return nil, appErrors.Persistence("Failed to look up grantee", err)
	}
	return u, nil
}
