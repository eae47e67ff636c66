package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"farm-iot-provisioning/internal/domain/request"
	"farm-iot-provisioning/internal/domain/user"
	appErrors "farm-iot-provisioning/pkg/errors"
)

// Action is a named transition a caller asks for.
type Action string

const (
	ActionAccept     Action = "accept"
	ActionReject     Action = "reject"
	ActionCancel     Action = "cancel"
	ActionUpdate     Action = "update"
	ActionEstimate   Action = "estimate"
	ActionUserAccept Action = "user-accept"
	ActionUserReject Action = "user-reject"
	ActionAssign     Action = "assign"
	ActionComplete   Action = "complete"
)

// performer is who may run an action besides a superadmin.
type performer int

const (
	performerOperator performer = iota
	performerOwner              // the user who submitted the request
)

var actionPerformers = map[Action]performer{
	ActionAccept:     performerOperator,
	ActionReject:     performerOperator,
	ActionEstimate:   performerOperator,
	ActionAssign:     performerOperator,
	ActionComplete:   performerOperator,
	ActionCancel:     performerOwner,
	ActionUpdate:     performerOwner,
	ActionUserAccept: performerOwner,
	ActionUserReject: performerOwner,
}

// State machine for device request status transitions
var validTransitions = map[request.Status]map[Action]request.Status{
	request.StatusPending: {
		ActionAccept: request.StatusAccepted,
		ActionReject: request.StatusRejected,
		ActionCancel: request.StatusCancelled,
		ActionUpdate: request.StatusPending, // Edits keep the request pending
	},
	request.StatusAccepted: {
		ActionEstimate: request.StatusCostEstimated,
		ActionReject:   request.StatusRejected,
	},
	request.StatusCostEstimated: {
		ActionUserAccept: request.StatusUserAccepted,
		ActionUserReject: request.StatusUserRejected,
	},
	request.StatusUserAccepted: {
		ActionAssign: request.StatusDeviceAssigned,
	},
	request.StatusDeviceAssigned: {
		ActionComplete: request.StatusCompleted,
	},
	request.StatusCompleted: {
		// Terminal state - no transitions
	},
	request.StatusRejected: {
		// Terminal state - no transitions
	},
	request.StatusCancelled: {
		// Terminal state - no transitions
	},
	request.StatusUserRejected: {
		// Terminal state - no re-estimation
	},
}

// Edit carries the fields an owner may change while the request is pending.
type Edit struct {
	PersonalInfo        *request.PersonalInfo
	FarmInfo            *request.FarmInfo
	RequestedParameters []string
}

func (e *Edit) empty() bool {
	return e == nil || (e.PersonalInfo == nil && e.FarmInfo == nil && e.RequestedParameters == nil)
}

// Command is one transition request together with its payload.
type Command struct {
	Action Action
	Actor  user.Actor
	At     time.Time

	Cost     *request.CostDetails // estimate
	DeviceID string               // assign
	Edit     *Edit                // update
	Reason   *string              // reject, cancel, user-reject
}

// Transition validates cmd against current and returns the resulting request.
// current is never mutated.
func Transition(current *request.DeviceRequest, cmd Command) (*request.DeviceRequest, error) {
	if current == nil {
		return nil, appErrors.Validation("request is required", nil)
	}

	who, known := actionPerformers[cmd.Action]
	if !known {
		return nil, appErrors.NewAppError(
			appErrors.CodeInvalidTransition,
			fmt.Sprintf("Unknown action: %s", cmd.Action),
			nil,
		)
	}

	if err := authorize(current, cmd.Actor, who, cmd.Action); err != nil {
		return nil, err
	}

	if current.Status.IsTerminal() {
		return nil, appErrors.NewAppError(
			appErrors.CodeAlreadyTerminal,
			fmt.Sprintf("Request is already %s", current.Status),
			nil,
		)
	}

	edges, exists := validTransitions[current.Status]
	if !exists {
		return nil, appErrors.NewAppError(
			appErrors.CodeInvalidTransition,
			fmt.Sprintf("Unknown current status: %s", current.Status),
			nil,
		)
	}
	target, allowed := edges[cmd.Action]
	if !allowed {
		return nil, appErrors.NewAppError(
			appErrors.CodeInvalidTransition,
			fmt.Sprintf("Cannot %s a request in status %s", cmd.Action, current.Status),
			nil,
		)
	}

	if err := validatePayload(cmd); err != nil {
		return nil, err
	}

	next := current.Clone()
	apply(next, cmd)
	next.Status = target
	next.UpdatedAt = cmd.At

	if err := next.CheckInvariants(); err != nil {
		return nil, appErrors.NewAppError(
			appErrors.CodeInvalidTransition,
			fmt.Sprintf("Cannot %s request %s", cmd.Action, current.ID),
			err,
		)
	}

	return next, nil
}

func authorize(current *request.DeviceRequest, actor user.Actor, who performer, action Action) error {
	if actor.IsSuperAdmin() {
		return nil
	}

	switch who {
	case performerOperator:
		if actor.Role != user.RoleOperator {
			return appErrors.Unauthorized(fmt.Sprintf("Only operators can %s a request", action))
		}
	case performerOwner:
		if actor.UserID != current.OwnerUserID {
			return appErrors.Unauthorized(fmt.Sprintf("Only the requesting user can %s this request", action))
		}
	}
	return nil
}

func validatePayload(cmd Command) error {
	if cmd.At.IsZero() {
		return appErrors.Validation("transition timestamp is required", nil)
	}

	switch cmd.Action {
	case ActionEstimate:
		if cmd.Cost == nil {
			return appErrors.Validation("cost details are required to estimate a request", nil)
		}
	case ActionAssign:
		if strings.TrimSpace(cmd.DeviceID) == "" {
			return appErrors.Validation("device id is required to assign a request", nil)
		}
	case ActionUpdate:
		if cmd.Edit.empty() {
			return appErrors.Validation("at least one field must be edited", nil)
		}
		if cmd.Edit.RequestedParameters != nil && len(request.NormalizeParameters(cmd.Edit.RequestedParameters)) == 0 {
			return appErrors.Validation("at least one sensor parameter must be requested", nil)
		}
	}
	return nil
}

func apply(next *request.DeviceRequest, cmd Command) {
	at := cmd.At

	switch cmd.Action {
	case ActionAccept:
		stamp(&next.AcceptedAt, at)
	case ActionReject:
		stamp(&next.RejectedAt, at)
		next.RejectionReason = copyString(cmd.Reason)
	case ActionCancel:
		stamp(&next.CancelledAt, at)
		next.CancellationReason = copyString(cmd.Reason)
	case ActionUpdate:
		if cmd.Edit.PersonalInfo != nil {
			next.PersonalInfo = *cmd.Edit.PersonalInfo
		}
		if cmd.Edit.FarmInfo != nil {
			next.FarmInfo = *cmd.Edit.FarmInfo
		}
		if cmd.Edit.RequestedParameters != nil {
			next.RequestedParameters = request.NormalizeParameters(cmd.Edit.RequestedParameters)
		}
	case ActionEstimate:
		cost := *cmd.Cost
		cost.Notes = copyString(cmd.Cost.Notes)
		cost.EstimatedBy = cmd.Actor.UserID
		next.CostDetails = &cost
		stamp(&next.EstimatedAt, at)
	case ActionUserAccept:
		stamp(&next.UserAcceptedAt, at)
	case ActionUserReject:
		stamp(&next.UserRejectedAt, at)
		next.RejectionReason = copyString(cmd.Reason)
	case ActionAssign:
		deviceID := strings.TrimSpace(cmd.DeviceID)
		assignedBy := cmd.Actor.UserID
		next.AssignedDeviceID = &deviceID
		next.AssignedBy = &assignedBy
		stamp(&next.DeviceAssignedAt, at)
	case ActionComplete:
		stamp(&next.CompletedAt, at)
	}
}

// stamp sets a transition timestamp unless it was already set.
func stamp(field **time.Time, at time.Time) {
	if *field != nil {
		return
	}
	t := at
	*field = &t
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// GetAllowedTransitions returns the actions leaving a status and their targets
func GetAllowedTransitions(current request.Status) map[Action]request.Status {
	out := make(map[Action]request.Status, len(validTransitions[current]))
	for action, target := range validTransitions[current] {
		out[action] = target
	}
	return out
}

// AllowedActions lists the actions actor may attempt on r, ignoring payload.
func AllowedActions(r *request.DeviceRequest, actor user.Actor) []Action {
	var out []Action
	for _, action := range orderedActions {
		if _, ok := validTransitions[r.Status][action]; !ok {
			continue
		}
		if authorize(r, actor, actionPerformers[action], action) != nil {
			continue
		}
		out = append(out, action)
	}
	return out
}

var orderedActions = []Action{
	ActionUpdate,
	ActionCancel,
	ActionAccept,
	ActionReject,
	ActionEstimate,
	ActionUserAccept,
	ActionUserReject,
	ActionAssign,
	ActionComplete,
}
