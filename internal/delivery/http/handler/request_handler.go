package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	domainUser "farm-iot-provisioning/internal/domain/user"
	"farm-iot-provisioning/internal/usecase/assignment"
	"farm-iot-provisioning/internal/usecase/estimation"
	"farm-iot-provisioning/internal/usecase/request"
	"farm-iot-provisioning/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RequestHandler struct {
	requests    *request.Service
	estimates   *estimation.Service
	assignments *assignment.Service
	reconciler  *assignment.Reconciler
}

func NewRequestHandler(
	requests *request.Service,
	estimates *estimation.Service,
	assignments *assignment.Service,
	reconciler *assignment.Reconciler,
) *RequestHandler {
	return &RequestHandler{
		requests:    requests,
		estimates:   estimates,
		assignments: assignments,
		reconciler:  reconciler,
	}
}

func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/requests")
	{
		requests.POST("", h.Submit)
		requests.GET("", h.List)
		requests.GET("/:id", h.Get)
		requests.PUT("/:id", h.Update)
		requests.POST("/:id/cancel", h.Cancel)
		requests.POST("/:id/user-accept", h.UserAccept)
		requests.POST("/:id/user-reject", h.UserReject)
	}
}

func (h *RequestHandler) RegisterOperatorRoutes(router *gin.RouterGroup) {
	requests := router.Group("/requests")
	{
		requests.POST("/:id/accept", h.Accept)
		requests.POST("/:id/reject", h.Reject)
		requests.POST("/:id/estimate", h.Estimate)
		requests.POST("/:id/assign", h.Assign)
		requests.POST("/:id/complete", h.Complete)
	}
	router.GET("/reconciliation", h.Reconcile)
}

func (h *RequestHandler) Submit(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req request.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	result, err := h.requests.Submit(c.Request.Context(), actor, &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Device request submitted", result)
}

func (h *RequestHandler) List(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req request.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "Invalid query parameters")
		return
	}
	if raw := c.Query("owner_id"); raw != "" {
		ownerID, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "Invalid owner_id")
			return
		}
		req.OwnerID = &ownerID
	}

	result, err := h.requests.List(c.Request.Context(), actor, &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

func (h *RequestHandler) Get(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	result, err := h.requests.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

func (h *RequestHandler) Update(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req request.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	result, err := h.requests.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device request updated", result)
}

func (h *RequestHandler) Cancel(c *gin.Context) {
	h.withReason(c, h.requests.Cancel, "Device request cancelled")
}

func (h *RequestHandler) Reject(c *gin.Context) {
	h.withReason(c, h.requests.Reject, "Device request rejected")
}

func (h *RequestHandler) UserReject(c *gin.Context) {
	h.withReason(c, h.requests.UserReject, "Cost estimate rejected")
}

func (h *RequestHandler) Accept(c *gin.Context) {
	h.withoutBody(c, h.requests.Accept, "Device request accepted")
}

func (h *RequestHandler) UserAccept(c *gin.Context) {
	h.withoutBody(c, h.requests.UserAccept, "Cost estimate accepted")
}

func (h *RequestHandler) Complete(c *gin.Context) {
	h.withoutBody(c, h.assignments.Complete, "Device request completed")
}

func (h *RequestHandler) Estimate(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req estimation.EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	result, err := h.estimates.Estimate(c.Request.Context(), actor, id, &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Cost estimated", result)
}

func (h *RequestHandler) Assign(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req assignment.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	result, err := h.assignments.Assign(c.Request.Context(), actor, id, &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	status := http.StatusOK
	if !result.Replayed {
		status = http.StatusCreated
	}
	utils.SuccessResponse(c, status, "Device assigned", result)
}

func (h *RequestHandler) Reconcile(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	report, err := h.reconciler.Run(c.Request.Context(), actor)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", report)
}

type reasonFunc func(ctx context.Context, actor domainUser.Actor, id uuid.UUID, req *request.ReasonRequest) (*request.RequestResponse, error)

type plainFunc func(ctx context.Context, actor domainUser.Actor, id uuid.UUID) (*request.RequestResponse, error)

func (h *RequestHandler) withReason(c *gin.Context, apply reasonFunc, message string) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	// The reason is optional, so an empty body is accepted.
	var req request.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid request body")
		return
	}

	result, err := apply(c.Request.Context(), actor, id, &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, message, result)
}

func (h *RequestHandler) withoutBody(c *gin.Context, apply plainFunc, message string) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	result, err := apply(c.Request.Context(), actor, id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, message, result)
}
