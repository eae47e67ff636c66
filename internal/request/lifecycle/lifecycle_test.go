package lifecycle

import (
	"errors"
	"testing"
	"time"

	"farm-iot-provisioning/internal/domain/request"
	"farm-iot-provisioning/internal/domain/user"
	appErrors "farm-iot-provisioning/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	now      = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	ownerID  = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	operator = user.Actor{UserID: uuid.MustParse("22222222-2222-2222-2222-222222222222"), Role: user.RoleOperator}
	admin    = user.Actor{UserID: uuid.MustParse("33333333-3333-3333-3333-333333333333"), Role: user.RoleSuperAdmin}
	owner    = user.Actor{UserID: ownerID, Role: user.RoleOwner}
	stranger = user.Actor{UserID: uuid.MustParse("44444444-4444-4444-4444-444444444444"), Role: user.RoleOwner}
)

func requestIn(status request.Status) *request.DeviceRequest {
	r := &request.DeviceRequest{
		ID:          uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001"),
		OwnerUserID: ownerID,
		Status:      status,
		PersonalInfo: request.PersonalInfo{
			FullName: "Nimal Perera",
			Email:    "nimal@example.com",
		},
		FarmInfo:            request.FarmInfo{FarmName: "Green Acres", FarmSize: 2.5},
		RequestedParameters: []string{"humidity", "soil_moisture"},
		CreatedAt:           now.Add(-time.Hour),
		UpdatedAt:           now.Add(-time.Hour),
	}
	if status.RequiresCostDetails() {
		r.CostDetails = sampleCost()
	}
	if status.RequiresAssignedDevice() {
		id := "SN-001"
		r.AssignedDeviceID = &id
	}
	return r
}

func sampleCost() *request.CostDetails {
	return &request.CostDetails{
		DeviceCost:        request.Amount{Entry: 15000, Canonical: 49.4038},
		ServiceCharge:     request.Amount{Entry: 2000, Canonical: 6.5872},
		DeliveryCharge:    request.Amount{Entry: 1000, Canonical: 3.2936},
		TotalCost:         request.Amount{Entry: 18000, Canonical: 59.2846},
		ExchangeRate:      303.62,
		EntryCurrency:     "LKR",
		CanonicalCurrency: "USD",
	}
}

// fullCommand builds a command carrying every payload an action can need.
func fullCommand(action Action, actor user.Actor) Command {
	reason := "changed plans"
	return Command{
		Action:   action,
		Actor:    actor,
		At:       now,
		Cost:     sampleCost(),
		DeviceID: "SN-001",
		Edit:     &Edit{RequestedParameters: []string{"Temperature", "humidity"}},
		Reason:   &reason,
	}
}

func actorFor(action Action) user.Actor {
	if actionPerformers[action] == performerOwner {
		return owner
	}
	return operator
}

func TestTransition_EdgeTable(t *testing.T) {
	for _, status := range request.AllStatuses {
		for _, action := range orderedActions {
			t.Run(string(status)+"/"+string(action), func(t *testing.T) {
				current := requestIn(status)
				next, err := Transition(current, fullCommand(action, actorFor(action)))

				target, allowed := validTransitions[status][action]
				switch {
				case status.IsTerminal():
					require.Error(t, err)
					assert.Equal(t, appErrors.CodeAlreadyTerminal, appErrors.CodeOf(err))
					assert.True(t, errors.Is(err, appErrors.ErrAlreadyTerminal))
					assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
				case !allowed:
					require.Error(t, err)
					assert.Equal(t, appErrors.CodeInvalidTransition, appErrors.CodeOf(err))
				default:
					require.NoError(t, err)
					assert.Equal(t, target, next.Status)
					assert.NoError(t, next.CheckInvariants())
					assert.Equal(t, now, next.UpdatedAt)
				}
			})
		}
	}
}

func TestTransition_TerminalStatuses(t *testing.T) {
	terminal := []request.Status{
		request.StatusCompleted,
		request.StatusRejected,
		request.StatusCancelled,
		request.StatusUserRejected,
	}
	for _, status := range terminal {
		assert.True(t, status.IsTerminal(), status)
		assert.Empty(t, GetAllowedTransitions(status), status)
	}
}

func TestTransition_DoesNotMutateInput(t *testing.T) {
	current := requestIn(request.StatusAccepted)
	before := current.Clone()

	next, err := Transition(current, fullCommand(ActionEstimate, operator))
	require.NoError(t, err)

	assert.Equal(t, before, current)
	assert.Equal(t, request.StatusCostEstimated, next.Status)
	require.NotNil(t, next.EstimatedAt)
	assert.Equal(t, now, *next.EstimatedAt)
	assert.Equal(t, operator.UserID, next.CostDetails.EstimatedBy)

	next.CostDetails.TotalCost.Entry = 1
	assert.Nil(t, current.CostDetails)
}

func TestTransition_RoleEnforcement(t *testing.T) {
	tests := []struct {
		name   string
		status request.Status
		action Action
		actor  user.Actor
		ok     bool
	}{
		{"owner cannot accept", request.StatusPending, ActionAccept, owner, false},
		{"owner cannot estimate", request.StatusAccepted, ActionEstimate, owner, false},
		{"owner cannot assign", request.StatusUserAccepted, ActionAssign, owner, false},
		{"owner cannot complete", request.StatusDeviceAssigned, ActionComplete, owner, false},
		{"stranger cannot cancel", request.StatusPending, ActionCancel, stranger, false},
		{"stranger cannot user-accept", request.StatusCostEstimated, ActionUserAccept, stranger, false},
		{"operator cannot user-accept for owner", request.StatusCostEstimated, ActionUserAccept, operator, false},
		{"operator cannot update", request.StatusPending, ActionUpdate, operator, false},
		{"operator accepts", request.StatusPending, ActionAccept, operator, true},
		{"owner cancels", request.StatusPending, ActionCancel, owner, true},
		{"superadmin accepts", request.StatusPending, ActionAccept, admin, true},
		{"superadmin user-accepts", request.StatusCostEstimated, ActionUserAccept, admin, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Transition(requestIn(tt.status), fullCommand(tt.action, tt.actor))
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
		})
	}
}

func TestTransition_OwnerCannotRunOperatorActionsInAnyStatus(t *testing.T) {
	operatorActions := []Action{ActionAccept, ActionReject, ActionEstimate, ActionAssign, ActionComplete}

	for _, status := range request.AllStatuses {
		for _, action := range operatorActions {
			t.Run(string(status)+"/"+string(action), func(t *testing.T) {
				current := requestIn(status)
				before := current.Clone()

				next, err := Transition(current, fullCommand(action, owner))
				require.Error(t, err)
				assert.Nil(t, next)
				assert.True(t, errors.Is(err, appErrors.ErrUnauthorized), "got %v", err)
				assert.Equal(t, before, current)
			})
		}
	}
}

func TestTransition_RoleCheckedBeforeStatus(t *testing.T) {
	_, err := Transition(requestIn(request.StatusCompleted), fullCommand(ActionAccept, owner))
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	_, err = Transition(requestIn(request.StatusCompleted), fullCommand(ActionAccept, operator))
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyTerminal))
}

func TestTransition_MissingPayload(t *testing.T) {
	tests := []struct {
		name   string
		status request.Status
		cmd    Command
	}{
		{"estimate without cost", request.StatusAccepted, Command{Action: ActionEstimate, Actor: operator, At: now}},
		{"assign without device", request.StatusUserAccepted, Command{Action: ActionAssign, Actor: operator, At: now, DeviceID: "  "}},
		{"update without edit", request.StatusPending, Command{Action: ActionUpdate, Actor: owner, At: now}},
		{"update with blank parameters", request.StatusPending, Command{Action: ActionUpdate, Actor: owner, At: now, Edit: &Edit{RequestedParameters: []string{" "}}}},
		{"missing timestamp", request.StatusPending, Command{Action: ActionAccept, Actor: operator}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Transition(requestIn(tt.status), tt.cmd)
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrValidation))
		})
	}
}

func TestTransition_UnknownAction(t *testing.T) {
	_, err := Transition(requestIn(request.StatusPending), Command{Action: "approve", Actor: admin, At: now})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
}

func TestTransition_Effects(t *testing.T) {
	t.Run("assign binds device and operator", func(t *testing.T) {
		next, err := Transition(requestIn(request.StatusUserAccepted), Command{Action: ActionAssign, Actor: operator, At: now, DeviceID: " SN-9 "})
		require.NoError(t, err)
		require.NotNil(t, next.AssignedDeviceID)
		assert.Equal(t, "SN-9", *next.AssignedDeviceID)
		assert.Equal(t, operator.UserID, *next.AssignedBy)
		assert.Equal(t, now, *next.DeviceAssignedAt)
	})

	t.Run("update normalizes parameters", func(t *testing.T) {
		next, err := Transition(requestIn(request.StatusPending), fullCommand(ActionUpdate, owner))
		require.NoError(t, err)
		assert.Equal(t, request.StatusPending, next.Status)
		assert.Equal(t, []string{"humidity", "temperature"}, next.RequestedParameters)
	})

	t.Run("reject keeps reason", func(t *testing.T) {
		next, err := Transition(requestIn(request.StatusAccepted), fullCommand(ActionReject, operator))
		require.NoError(t, err)
		require.NotNil(t, next.RejectionReason)
		assert.Equal(t, "changed plans", *next.RejectionReason)
		assert.Equal(t, now, *next.RejectedAt)
	})
}

func TestAllowedActions(t *testing.T) {
	assert.Equal(t, []Action{ActionUpdate, ActionCancel}, AllowedActions(requestIn(request.StatusPending), owner))
	assert.Equal(t, []Action{ActionAccept, ActionReject}, AllowedActions(requestIn(request.StatusPending), operator))
	assert.Empty(t, AllowedActions(requestIn(request.StatusPending), stranger))
	assert.Empty(t, AllowedActions(requestIn(request.StatusCompleted), admin))
}
