package middleware

import (
	"net/http"

	domainUser "farm-iot-provisioning/internal/domain/user"
	"farm-iot-provisioning/internal/logger"
	appErrors "farm-iot-provisioning/pkg/errors"
	"farm-iot-provisioning/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RoleMiddleware admits callers holding one of allowedRoles. Superadmins are always admitted.
func RoleMiddleware(allowedRoles ...domainUser.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, exists := GetActor(c)
		if !exists {
			utils.CodedErrorResponse(c, http.StatusForbidden, appErrors.CodeUnauthorized, "Caller identity not found")
			c.Abort()
			return
		}

		if actor.IsSuperAdmin() {
			c.Next()
			return
		}
		for _, allowedRole := range allowedRoles {
			if actor.Role == allowedRole {
				c.Next()
				return
			}
		}

		logger.Warn("Role not permitted for route",
			zap.String("request_id", GetRequestID(c)),
			zap.String("user_id", actor.UserID.String()),
			zap.String("role", string(actor.Role)),
			zap.String("path", c.FullPath()),
			logger.Event("route_unauthorized"),
		)
		utils.CodedErrorResponse(c, http.StatusForbidden, appErrors.CodeUnauthorized, "Insufficient permissions")
		c.Abort()
	}
}

func OperatorOnly() gin.HandlerFunc {
	return RoleMiddleware(domainUser.RoleOperator)
}
