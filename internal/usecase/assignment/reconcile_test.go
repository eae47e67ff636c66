package assignment

import (
	"context"
	"errors"
	"testing"

	domainDevice "farm-iot-provisioning/internal/domain/device"
	domainRequest "farm-iot-provisioning/internal/domain/request"
	"farm-iot-provisioning/internal/domain/store"
	domainUser "farm-iot-provisioning/internal/domain/user"
	appErrors "farm-iot-provisioning/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueKinds(report *Report) map[IssueKind][]string {
	kinds := map[IssueKind][]string{}
	for _, issue := range report.Issues {
		kinds[issue.Kind] = append(kinds[issue.Kind], issue.DeviceID)
	}
	return kinds
}

func TestReconciler_DetectsDivergence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// A device written without its request: the request still waits for assignment.
	owner := uuid.New()
	r := f.userAccepted(t, owner)
	orphan := &domainDevice.Device{
		ID:          "SN-ORPHAN",
		OwnerUserID: &owner,
		Status:      domainDevice.StatusActive,
		RequestID:   &r.ID,
		AssignedAt:  &t0,
		CreatedAt:   t0,
		UpdatedAt:   t0,
	}
	require.NoError(t, f.committer.Commit(ctx, store.DeviceWrite{Device: orphan, Create: true}))

	// A request claiming a device that was never written.
	ghostOwner := uuid.New()
	ghost := f.userAccepted(t, ghostOwner)
	ghostDevice := "SN-GHOST"
	assigned := ghost.Clone()
	assigned.Status = domainRequest.StatusDeviceAssigned
	assigned.AssignedDeviceID = &ghostDevice
	assigned.DeviceAssignedAt = &t0
	require.NoError(t, f.committer.Commit(ctx, store.RequestWrite{Request: assigned, ExpectStatus: domainRequest.StatusUserAccepted}))

	// An index entry for a device the user does not own.
	stranger := uuid.New()
	require.NoError(t, f.committer.Commit(ctx, store.LinkWrite{UserID: stranger, DeviceID: "SN-ORPHAN"}))

	report, err := f.reconciler.Check(ctx)
	require.NoError(t, err)
	assert.False(t, report.Consistent())

	kinds := issueKinds(report)
	assert.Equal(t, []string{"SN-ORPHAN"}, kinds[IssueRequestMismatch])
	assert.Equal(t, []string{"SN-ORPHAN"}, kinds[IssueLinkMissing])
	assert.Equal(t, []string{"SN-GHOST"}, kinds[IssueDeviceMissing])
	assert.Equal(t, []string{"SN-ORPHAN"}, kinds[IssueLinkStale])
	assert.Len(t, report.Issues, 4)
}

func TestReconciler_DeviceWithoutRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	owner := uuid.New()
	missing := uuid.New()
	d := &domainDevice.Device{
		ID:          "SN-LOST",
		OwnerUserID: &owner,
		Status:      domainDevice.StatusOffline,
		RequestID:   &missing,
		CreatedAt:   t0,
		UpdatedAt:   t0,
	}
	require.NoError(t, f.committer.Commit(ctx,
		store.DeviceWrite{Device: d, Create: true},
		store.LinkWrite{UserID: owner, DeviceID: d.ID},
	))

	report, err := f.reconciler.Check(ctx)
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, IssueRequestMissing, report.Issues[0].Kind)
	assert.Equal(t, missing, *report.Issues[0].RequestID)
}

func TestReconciler_RunRequiresOperator(t *testing.T) {
	f := newFixture(t)

	_, err := f.reconciler.Run(context.Background(), domainUser.Actor{UserID: uuid.New(), Role: domainUser.RoleOwner})
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	report, err := f.reconciler.Run(context.Background(), f.operator)
	require.NoError(t, err)
	assert.True(t, report.Consistent())
	assert.NotNil(t, report.Issues)
}
