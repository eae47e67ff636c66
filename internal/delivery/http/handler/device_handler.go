package handler

import (
	"net/http"

	"farm-iot-provisioning/internal/usecase/access"
	"farm-iot-provisioning/pkg/utils"

	"github.com/gin-gonic/gin"
)

type DeviceHandler struct {
	accessService *access.Service
}

func NewDeviceHandler(accessService *access.Service) *DeviceHandler {
	return &DeviceHandler{accessService: accessService}
}

func (h *DeviceHandler) RegisterRoutes(router *gin.RouterGroup) {
	devices := router.Group("/devices")
	{
		devices.GET("", h.ListAccessible)
		devices.GET("/:id", h.Get)
		devices.PUT("/:id/status", h.SetStatus)

		grants := devices.Group("/:id/grants")
		{
			grants.GET("", h.ListGrants)
			grants.POST("", h.Grant)
			grants.DELETE("/:granteeId", h.Revoke)
		}
	}
}

func (h *DeviceHandler) ListAccessible(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	devices, err := h.accessService.ListAccessibleDevices(c.Request.Context(), actor)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", devices)
}

func (h *DeviceHandler) Get(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	device, err := h.accessService.GetDevice(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", device)
}

func (h *DeviceHandler) SetStatus(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req access.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	device, err := h.accessService.SetDeviceStatus(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device status updated", device)
}

func (h *DeviceHandler) ListGrants(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	grants, err := h.accessService.ListGrants(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", grants)
}

func (h *DeviceHandler) Grant(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req access.GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	grant, err := h.accessService.GrantAccess(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device access granted", grant)
}

func (h *DeviceHandler) Revoke(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	granteeID, ok := uuidParam(c, "granteeId")
	if !ok {
		return
	}

	if err := h.accessService.RevokeAccess(c.Request.Context(), actor, c.Param("id"), granteeID); err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Device access revoked", nil)
}
