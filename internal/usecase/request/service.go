package request

import (
	"context"

	domainRequest "farm-iot-provisioning/internal/domain/request"
	"farm-iot-provisioning/internal/domain/store"
	domainUser "farm-iot-provisioning/internal/domain/user"
	"farm-iot-provisioning/internal/logger"
	"farm-iot-provisioning/internal/request/lifecycle"
	"farm-iot-provisioning/internal/usecase/transition"
	appErrors "farm-iot-provisioning/pkg/errors"
	"farm-iot-provisioning/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service implements device request use cases
type Service struct {
	requestRepo domainRequest.Repository
	committer   store.Committer
	runner      *transition.Runner
}

// NewService creates a new device request service
func NewService(
	requestRepo domainRequest.Repository,
	committer store.Committer,
	runner *transition.Runner,
) *Service {
	return &Service{
		requestRepo: requestRepo,
		committer:   committer,
		runner:      runner,
	}
}

// Submit stores a new pending request owned by the caller.
func (s *Service) Submit(ctx context.Context, actor domainUser.Actor, req *SubmitRequest) (*RequestResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.Validation("Invalid input", err)
	}

	params := domainRequest.NormalizeParameters(req.RequestedParameters)
	if len(params) == 0 {
		return nil, appErrors.Validation("At least one sensor parameter must be requested", nil)
	}

	now := s.runner.Now()
	r := &domainRequest.DeviceRequest{
		ID:                  uuid.New(),
		OwnerUserID:         actor.UserID,
		Status:              domainRequest.StatusPending,
		PersonalInfo:        toPersonalInfo(&req.PersonalInfo),
		FarmInfo:            toFarmInfo(&req.FarmInfo),
		RequestedParameters: params,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.committer.Commit(ctx, store.RequestWrite{Request: r}); err != nil {
		return nil, appErrors.Persistence("Failed to store device request", err)
	}

	logger.Info("Device request submitted",
		zap.String("request_id", r.ID.String()),
		zap.String("owner_user_id", actor.UserID.String()),
		zap.Strings("requested_parameters", params),
		logger.Event("device_request_submitted"),
	)

	return ToRequestResponse(r, actor), nil
}

// Update edits a pending request. Only the requesting user may edit it.
func (s *Service) Update(ctx context.Context, actor domainUser.Actor, requestID uuid.UUID, req *UpdateRequest) (*RequestResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.Validation("Invalid input", err)
	}

	edit := &lifecycle.Edit{RequestedParameters: req.RequestedParameters}
	if req.PersonalInfo != nil {
		info := toPersonalInfo(req.PersonalInfo)
		edit.PersonalInfo = &info
	}
	if req.FarmInfo != nil {
		info := toFarmInfo(req.FarmInfo)
		edit.FarmInfo = &info
	}

	return s.apply(ctx, actor, requestID, lifecycle.Command{Action: lifecycle.ActionUpdate, Edit: edit})
}

func (s *Service) Cancel(ctx context.Context, actor domainUser.Actor, requestID uuid.UUID, req *ReasonRequest) (*RequestResponse, error) {
	return s.applyWithReason(ctx, actor, requestID, lifecycle.ActionCancel, req)
}

func (s *Service) Accept(ctx context.Context, actor domainUser.Actor, requestID uuid.UUID) (*RequestResponse, error) {
	return s.apply(ctx, actor, requestID, lifecycle.Command{Action: lifecycle.ActionAccept})
}

func (s *Service) Reject(ctx context.Context, actor domainUser.Actor, requestID uuid.UUID, req *ReasonRequest) (*RequestResponse, error) {
	return s.applyWithReason(ctx, actor, requestID, lifecycle.ActionReject, req)
}

func (s *Service) UserAccept(ctx context.Context, actor domainUser.Actor, requestID uuid.UUID) (*RequestResponse, error) {
	return s.apply(ctx, actor, requestID, lifecycle.Command{Action: lifecycle.ActionUserAccept})
}

func (s *Service) UserReject(ctx context.Context, actor domainUser.Actor, requestID uuid.UUID, req *ReasonRequest) (*RequestResponse, error) {
	return s.applyWithReason(ctx, actor, requestID, lifecycle.ActionUserReject, req)
}

// Get returns a request to its owner or to an operator.
func (s *Service) Get(ctx context.Context, actor domainUser.Actor, requestID uuid.UUID) (*RequestResponse, error) {
	r, err := s.runner.Load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.OwnerUserID != actor.UserID && !actor.IsOperator() {
		logger.Warn("Request read denied",
			zap.String("request_id", requestID.String()),
			zap.String("actor_id", actor.UserID.String()),
			logger.Event("request_read_unauthorized"),
		)
		return nil, appErrors.Unauthorized("Not allowed to view this request")
	}
	return ToRequestResponse(r, actor), nil
}

// List returns the caller's requests, or any owner's requests for operators.
func (s *Service) List(ctx context.Context, actor domainUser.Actor, req *ListRequest) (*ListResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.Validation("Invalid input", err)
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, appErrors.Validation("Unknown request status", nil)
	}

	filter := &domainRequest.Filter{
		Status:   req.Status,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	switch {
	case actor.IsOperator():
		filter.OwnerUserID = req.OwnerID
	case req.OwnerID != nil && *req.OwnerID != actor.UserID:
		return nil, appErrors.Unauthorized("Not allowed to list other users' requests")
	default:
		owner := actor.UserID
		filter.OwnerUserID = &owner
	}

	requests, total, err := s.requestRepo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Persistence("Failed to list device requests", err)
	}

	responses := make([]*RequestResponse, len(requests))
	for i, r := range requests {
		responses[i] = ToRequestResponse(r, actor)
	}

	totalPages := int(total) / filter.PageSize
	if int(total)%filter.PageSize != 0 {
		totalPages++
	}

	return &ListResponse{
		Requests:   responses,
		Total:      total,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalPages: totalPages,
	}, nil
}

func (s *Service) applyWithReason(ctx context.Context, actor domainUser.Actor, requestID uuid.UUID, action lifecycle.Action, req *ReasonRequest) (*RequestResponse, error) {
	if req == nil {
		req = &ReasonRequest{}
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.Validation("Invalid input", err)
	}

	var reason *string
	if req.Reason != nil {
		sanitized := utils.SanitizeText(*req.Reason)
		reason = &sanitized
	}

	return s.apply(ctx, actor, requestID, lifecycle.Command{Action: action, Reason: reason})
}

func (s *Service) apply(ctx context.Context, actor domainUser.Actor, requestID uuid.UUID, cmd lifecycle.Command) (*RequestResponse, error) {
	cmd.Actor = actor
	r, _, err := s.runner.Run(ctx, requestID, transition.Step{Command: cmd})
	if err != nil {
		return nil, err
	}
	return ToRequestResponse(r, actor), nil
}

func toPersonalInfo(in *PersonalInfoInput) domainRequest.PersonalInfo {
	return domainRequest.PersonalInfo{
		FullName:   utils.SanitizeLine(in.FullName),
		Email:      utils.NormalizeEmail(in.Email),
		Phone:      utils.SanitizePhone(in.Phone),
		NationalID: utils.SanitizeLine(in.NationalID),
		Address:    utils.SanitizeText(in.Address),
	}
}

func toFarmInfo(in *FarmInfoInput) domainRequest.FarmInfo {
	return domainRequest.FarmInfo{
		FarmName: utils.SanitizeLine(in.FarmName),
		FarmSize: in.FarmSize,
		SoilType: utils.SanitizeLine(in.SoilType),
		Location: utils.SanitizeLine(in.Location),
		Notes:    utils.SanitizeText(in.Notes),
	}
}

