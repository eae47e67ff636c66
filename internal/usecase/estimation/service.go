package estimation

import (
	"context"

	domainUser "farm-iot-provisioning/internal/domain/user"
	"farm-iot-provisioning/internal/logger"
	"farm-iot-provisioning/internal/pricing"
	"farm-iot-provisioning/internal/request/lifecycle"
	"farm-iot-provisioning/internal/usecase/transition"
	usecaseRequest "farm-iot-provisioning/internal/usecase/request"
	appErrors "farm-iot-provisioning/pkg/errors"
	"farm-iot-provisioning/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EstimateRequest struct {
	DeviceCost     float64 `json:"device_cost" validate:"gte=0"`
	ServiceCharge  float64 `json:"service_charge" validate:"gte=0"`
	DeliveryCharge float64 `json:"delivery_charge" validate:"gte=0"`
	Notes          *string `json:"notes" validate:"omitempty,max=1000"`
}

// Service builds cost breakdowns and advances accepted requests to cost-estimated.
type Service struct {
	converter *pricing.Converter
	runner    *transition.Runner
}

func NewService(converter *pricing.Converter, runner *transition.Runner) *Service {
	return &Service{
		converter: converter,
		runner:    runner,
	}
}

// Estimate stores the breakdown and the status change in one conditional write.
func (s *Service) Estimate(ctx context.Context, actor domainUser.Actor, requestID uuid.UUID, req *EstimateRequest) (*usecaseRequest.RequestResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, appErrors.Validation("Invalid input", err)
	}

	cost, err := s.converter.Estimate(req.DeviceCost, req.ServiceCharge, req.DeliveryCharge)
	if err != nil {
		return nil, err
	}
	if req.Notes != nil {
		notes := utils.SanitizeText(*req.Notes)
		cost.Notes = &notes
	}

	r, _, err := s.runner.Run(ctx, requestID, transition.Step{
		Command: lifecycle.Command{
			Action: lifecycle.ActionEstimate,
			Actor:  actor,
			Cost:   cost,
		},
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Cost estimated",
		zap.String("request_id", requestID.String()),
		zap.Float64("total_entry", cost.TotalCost.Entry),
		zap.Float64("total_canonical", cost.TotalCost.Canonical),
		zap.Float64("exchange_rate", cost.ExchangeRate),
		zap.String("estimated_by", actor.UserID.String()),
		logger.Event("request_cost_estimated"),
	)

	return usecaseRequest.ToRequestResponse(r, actor), nil
}

