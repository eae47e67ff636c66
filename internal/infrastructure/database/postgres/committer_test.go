package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"farm-iot-provisioning/internal/domain/device"
	"farm-iot-provisioning/internal/domain/notification"
	"farm-iot-provisioning/internal/domain/request"
	"farm-iot-provisioning/internal/domain/store"
	domainUser "farm-iot-provisioning/internal/domain/user"
	"farm-iot-provisioning/internal/infrastructure/database/postgres"
	"farm-iot-provisioning/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

func TestCommitter_RequestInsertAndConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	committer := postgres.NewCommitter(db)
	requests := postgres.NewRequestRepository(db)

	r := testutil.PendingRequest(uuid.New(), t0)
	require.NoError(t, committer.Commit(ctx, store.RequestWrite{Request: r}))

	err := committer.Commit(ctx, store.RequestWrite{Request: r})
	assert.True(t, errors.Is(err, store.ErrConflict), "duplicate insert must conflict")

	accepted := r.Clone()
	accepted.Status = request.StatusAccepted
	at := t0.Add(time.Minute)
	accepted.AcceptedAt = &at
	require.NoError(t, committer.Commit(ctx, store.RequestWrite{Request: accepted, ExpectStatus: request.StatusPending}))

	// A second writer that still believes the request is pending loses.
	rejected := r.Clone()
	rejected.Status = request.StatusRejected
	rejected.RejectedAt = &at
	err = committer.Commit(ctx, store.RequestWrite{Request: rejected, ExpectStatus: request.StatusPending})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrConflict))
	assert.Equal(t, "device_request", store.ConflictTarget(err))

	stored, err := requests.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, request.StatusAccepted, stored.Status)
	assert.Nil(t, stored.RejectedAt)
	require.NotNil(t, stored.AcceptedAt)
	assert.True(t, at.Equal(*stored.AcceptedAt))
}

func TestCommitter_RequestRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	committer := postgres.NewCommitter(db)

	operatorID := uuid.New()
	r := testutil.PendingRequest(uuid.New(), t0)
	r.Status = request.StatusCostEstimated
	r.CostDetails = testutil.SampleCost(operatorID)
	notes := "includes solar kit"
	r.CostDetails.Notes = &notes
	estimatedAt := t0.Add(time.Hour)
	r.EstimatedAt = &estimatedAt

	require.NoError(t, committer.Commit(ctx, store.RequestWrite{Request: r}))

	stored, err := postgres.NewRequestRepository(db).GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.RequestedParameters, stored.RequestedParameters)
	assert.Equal(t, r.PersonalInfo, stored.PersonalInfo)
	assert.Equal(t, r.FarmInfo, stored.FarmInfo)
	require.NotNil(t, stored.CostDetails)
	assert.Equal(t, 18000.0, stored.CostDetails.TotalCost.Entry)
	assert.InDelta(t, 59.2846, stored.CostDetails.TotalCost.Canonical, 0.0001)
	assert.Equal(t, 303.62, stored.CostDetails.ExchangeRate)
	assert.Equal(t, "LKR", stored.CostDetails.EntryCurrency)
	assert.Equal(t, operatorID, stored.CostDetails.EstimatedBy)
	assert.Equal(t, notes, *stored.CostDetails.Notes)
	assert.NoError(t, stored.CheckInvariants())
}

func TestCommitter_DeviceOwnerCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	committer := postgres.NewCommitter(db)
	devices := postgres.NewDeviceRepository(db)

	unowned := &device.Device{ID: "SN-100", Status: device.StatusUnassigned, CreatedAt: t0, UpdatedAt: t0}
	require.NoError(t, committer.Commit(ctx, store.DeviceWrite{Device: unowned, Create: true}))

	alice, bob := uuid.New(), uuid.New()
	owned := func(owner uuid.UUID) *device.Device {
		d := *unowned
		d.OwnerUserID = &owner
		d.Status = device.StatusActive
		return &d
	}

	require.NoError(t, committer.Commit(ctx, store.DeviceWrite{Device: owned(alice)}))

	err := committer.Commit(ctx, store.DeviceWrite{Device: owned(bob)})
	assert.True(t, errors.Is(err, store.ErrConflict), "unowned expectation must fail once owned")

	require.NoError(t, committer.Commit(ctx, store.DeviceWrite{Device: owned(bob), ExpectOwner: &alice}))

	stored, err := devices.GetByID(ctx, "SN-100")
	require.NoError(t, err)
	assert.True(t, stored.IsOwnedBy(bob))

	broken := owned(bob)
	broken.Status = device.StatusUnassigned
	err = committer.Commit(ctx, store.DeviceWrite{Device: broken, ExpectOwner: &bob})
	assert.ErrorIs(t, err, device.ErrOwnershipMismatch)
}

func TestCommitter_RollsBackEveryWriteOnFailure(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	committer := postgres.NewCommitter(db)

	owner := uuid.New()
	r := testutil.PendingRequest(owner, t0)
	require.NoError(t, committer.Commit(ctx, store.RequestWrite{Request: r}))

	testutil.FailWrites(t, db, "notifications")

	accepted := r.Clone()
	accepted.Status = request.StatusAccepted
	err := committer.Commit(ctx,
		store.RequestWrite{Request: accepted, ExpectStatus: request.StatusPending},
		store.DeviceWrite{Device: &device.Device{ID: "SN-7", OwnerUserID: &owner, Status: device.StatusActive, CreatedAt: t0, UpdatedAt: t0}, Create: true},
		store.LinkWrite{UserID: owner, DeviceID: "SN-7"},
		store.NotificationWrite{Notification: notification.NewDeviceAssignment(owner, r.ID, "SN-7", t0)},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, testutil.ErrInjected)

	stored, err := postgres.NewRequestRepository(db).GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, request.StatusPending, stored.Status)

	_, err = postgres.NewDeviceRepository(db).GetByID(ctx, "SN-7")
	assert.ErrorIs(t, err, device.ErrDeviceNotFound)

	linked, err := postgres.NewDeviceRepository(db).HasLink(ctx, owner, "SN-7")
	require.NoError(t, err)
	assert.False(t, linked)
}

func TestCommitter_IdempotentWrites(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	committer := postgres.NewCommitter(db)

	owner := uuid.New()
	requestID := uuid.New()
	link := store.LinkWrite{UserID: owner, DeviceID: "SN-1"}
	note := store.NotificationWrite{Notification: notification.NewDeviceAssignment(owner, requestID, "SN-1", t0)}

	require.NoError(t, committer.Commit(ctx, link, note))
	require.NoError(t, committer.Commit(ctx, link, note))

	links, err := postgres.NewDeviceRepository(db).ListLinks(ctx, &owner)
	require.NoError(t, err)
	assert.Len(t, links, 1)

	notifications, err := postgres.NewNotificationRepository(db).ListByRecipient(ctx, owner, false, 0)
	require.NoError(t, err)
	assert.Len(t, notifications, 1)

	require.NoError(t, committer.Commit(ctx, store.UnlinkWrite{UserID: owner, DeviceID: "SN-1"}))
	linked, err := postgres.NewDeviceRepository(db).HasLink(ctx, owner, "SN-1")
	require.NoError(t, err)
	assert.False(t, linked)
}

func TestRequestRepository_List(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	committer := postgres.NewCommitter(db)
	requests := postgres.NewRequestRepository(db)

	alice, bob := uuid.New(), uuid.New()
	first := testutil.PendingRequest(alice, t0)
	second := testutil.PendingRequest(alice, t0.Add(time.Hour))
	second.Status = request.StatusAccepted
	second.AcceptedAt = &t0
	other := testutil.PendingRequest(bob, t0.Add(2*time.Hour))
	require.NoError(t, committer.Commit(ctx,
		store.RequestWrite{Request: first},
		store.RequestWrite{Request: second},
		store.RequestWrite{Request: other},
	))

	mine, total, err := requests.List(ctx, &request.Filter{OwnerUserID: &alice})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID, "newest first")
	assert.Equal(t, first.ID, mine[1].ID)

	pending := request.StatusPending
	byStatus, total, err := requests.List(ctx, &request.Filter{Status: &pending})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, other.ID, byStatus[0].ID)

	page, total, err := requests.List(ctx, &request.Filter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)

	_, err = requests.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, request.ErrRequestNotFound)
}

func TestNotificationRepository_MarkRead(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := postgres.NewNotificationRepository(db)

	owner := uuid.New()
	n := notification.NewDeviceAssignment(owner, uuid.New(), "SN-2", t0)
	require.NoError(t, postgres.NewCommitter(db).Commit(ctx, store.NotificationWrite{Notification: n}))

	assert.ErrorIs(t, repo.MarkRead(ctx, uuid.New(), n.ID), notification.ErrNotificationNotFound)
	require.NoError(t, repo.MarkRead(ctx, owner, n.ID))

	stored, err := repo.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, stored.Read)
	assert.NotNil(t, stored.ReadAt)

	unread, err := repo.ListByRecipient(ctx, owner, true, 10)
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	repo := postgres.NewUserRepository(db)

	u := testutil.SeedUser(t, db, "Farmer@Example.com", domainUser.RoleOwner)

	byEmail, err := repo.GetByEmail(ctx, "farmer@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	dup := *u
	dup.ID = uuid.New()
	assert.ErrorIs(t, repo.Create(ctx, &dup), domainUser.ErrUserAlreadyExists)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domainUser.ErrUserNotFound)
}
