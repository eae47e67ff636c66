package handler

import (
	"errors"
	"net/http"

	domainUser "farm-iot-provisioning/internal/domain/user"
	"farm-iot-provisioning/internal/logger"
	"farm-iot-provisioning/internal/middleware"
	appErrors "farm-iot-provisioning/pkg/errors"
	"farm-iot-provisioning/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var codeStatus = map[string]int{
	appErrors.CodeValidation:           http.StatusBadRequest,
	appErrors.CodeUnauthorized:         http.StatusForbidden,
	appErrors.CodeNotFound:             http.StatusNotFound,
	appErrors.CodeInvalidTransition:    http.StatusConflict,
	appErrors.CodeAlreadyTerminal:      http.StatusConflict,
	appErrors.CodeRequestNotAssignable: http.StatusConflict,
	appErrors.CodeDeviceUnavailable:    http.StatusConflict,
	appErrors.CodePersistence:          http.StatusServiceUnavailable,
}

// respondWithError maps an application error to its HTTP status and code.
func respondWithError(c *gin.Context, err error) {
	var appErr *appErrors.AppError
	if !errors.As(err, &appErr) {
		logger.Error("Unhandled error",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	status, ok := codeStatus[appErr.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	message := appErr.Message
	if appErr.Code == appErrors.CodeValidation && appErr.Err != nil {
		message = appErr.Error()
	}
	utils.CodedErrorResponse(c, status, appErr.Code, message)
}

func badRequest(c *gin.Context, message string) {
	utils.CodedErrorResponse(c, http.StatusBadRequest, appErrors.CodeValidation, message)
}

// actorFrom returns the authenticated caller or writes a 401.
func actorFrom(c *gin.Context) (domainUser.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		utils.CodedErrorResponse(c, http.StatusUnauthorized, appErrors.CodeUnauthorized, "Caller identity not found")
	}
	return actor, ok
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
