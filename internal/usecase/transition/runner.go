package transition

import (
	"context"
	"errors"
	"time"

	domainRequest "farm-iot-provisioning/internal/domain/request"
	"farm-iot-provisioning/internal/domain/store"
	"farm-iot-provisioning/internal/logger"
	"farm-iot-provisioning/internal/request/lifecycle"
	appErrors "farm-iot-provisioning/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxAttempts bounds how often a lost compare-and-swap is re-evaluated.
const maxAttempts = 3

// Step describes one state-machine transition and what must commit with it.
type Step struct {
	Command lifecycle.Command

	// Done reports that current already reflects the command, so the call is a
	// retry and nothing is written.
	Done func(current *domainRequest.DeviceRequest) bool

	// OnReject may translate a state-machine rejection.
	OnReject func(current *domainRequest.DeviceRequest, err error) error

	// Writes builds the writes that commit atomically with the request.
	// It runs on every attempt so it always sees fresh state.
	Writes func(ctx context.Context, current, next *domainRequest.DeviceRequest) ([]store.Write, error)
}

// Runner loads a request, applies a transition and commits it with a
// conditional write on the status it was read in.
type Runner struct {
	requests  domainRequest.Repository
	committer store.Committer
	now       func() time.Time
}

func NewRunner(requests domainRequest.Repository, committer store.Committer) *Runner {
	return &Runner{
		requests:  requests,
		committer: committer,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used to stamp transitions.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

func (r *Runner) Now() time.Time {
	return r.now()
}

// Load fetches a request and maps a missing record to NotFound.
func (r *Runner) Load(ctx context.Context, requestID uuid.UUID) (*domainRequest.DeviceRequest, error) {
	current, err := r.requests.GetByID(ctx, requestID)
	if errors.Is(err, domainRequest.ErrRequestNotFound) {
		return nil, appErrors.NotFound("Device request not found", err)
	}
	if err != nil {
		return nil, appErrors.Persistence("Failed to load device request", err)
	}
	return current, nil
}

// Run applies step to the request. It returns the stored result and whether
// this call wrote it.
func (r *Runner) Run(ctx context.Context, requestID uuid.UUID, step Step) (*domainRequest.DeviceRequest, bool, error) {
	var lastConflict error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		current, err := r.Load(ctx, requestID)
		if err != nil {
			return nil, false, err
		}

		if step.Done != nil && step.Done(current) {
			logger.Info("Transition already applied",
				zap.String("request_id", requestID.String()),
				zap.String("action", string(step.Command.Action)),
				logger.Event("request_transition_replayed"),
			)
			return current, false, nil
		}

		cmd := step.Command
		if cmd.At.IsZero() {
			cmd.At = r.now()
		}

		next, err := lifecycle.Transition(current, cmd)
		if err != nil {
			if step.OnReject != nil {
				err = step.OnReject(current, err)
			}
			logRejection(current, cmd, err)
			return nil, false, err
		}

		writes := []store.Write{store.RequestWrite{Request: next, ExpectStatus: current.Status}}
		if step.Writes != nil {
			extra, err := step.Writes(ctx, current, next)
			if err != nil {
				logRejection(current, cmd, err)
				return nil, false, err
			}
			writes = append(writes, extra...)
		}

		err = r.committer.Commit(ctx, writes...)
		if err == nil {
			logger.Info("Request transitioned",
				zap.String("request_id", requestID.String()),
				zap.String("action", string(cmd.Action)),
				zap.String("from", string(current.Status)),
				zap.String("to", string(next.Status)),
				zap.String("actor_id", cmd.Actor.UserID.String()),
				logger.Event("request_transitioned"),
			)
			return next, true, nil
		}

		if !errors.Is(err, store.ErrConflict) {
			logger.Error("Failed to commit request transition",
				zap.String("request_id", requestID.String()),
				zap.String("action", string(cmd.Action)),
				zap.Error(err),
				logger.Event("request_commit_failed"),
			)
			return nil, false, appErrors.Persistence("Failed to persist device request", err)
		}

		lastConflict = err
		logger.Warn("Concurrent update detected, re-evaluating",
			zap.String("request_id", requestID.String()),
			zap.String("action", string(cmd.Action)),
			zap.String("target", store.ConflictTarget(err)),
			zap.Int("attempt", attempt),
			logger.Event("request_write_conflict"),
		)
	}

	return nil, false, appErrors.Persistence("Device request kept changing concurrently", lastConflict)
}

func logRejection(current *domainRequest.DeviceRequest, cmd lifecycle.Command, err error) {
	fields := []zap.Field{
		zap.String("request_id", current.ID.String()),
		zap.String("action", string(cmd.Action)),
		zap.String("status", string(current.Status)),
		zap.String("actor_id", cmd.Actor.UserID.String()),
		zap.String("actor_role", string(cmd.Actor.Role)),
		zap.Error(err),
	}

	switch {
	case errors.Is(err, appErrors.ErrUnauthorized):
		logger.Warn("Unauthorized request transition", append(fields, logger.Event("request_transition_unauthorized"))...)
	case errors.Is(err, appErrors.ErrInvalidTransition):
		logger.Warn("Invalid request transition", append(fields, logger.Event("request_transition_invalid"))...)
	case errors.Is(err, appErrors.ErrValidation):
		logger.Debug("Request transition failed validation", append(fields, logger.Event("request_transition_validation"))...)
	default:
		logger.Warn("Request transition refused", append(fields, logger.Event("request_transition_refused"))...)
	}
}
