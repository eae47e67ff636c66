package middleware

import (
	"context"
	"net/http"
	"strings"

	"farm-iot-provisioning/internal/config"
	domainUser "farm-iot-provisioning/internal/domain/user"
	"farm-iot-provisioning/internal/logger"
	appErrors "farm-iot-provisioning/pkg/errors"
	"farm-iot-provisioning/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const ActorKey = "actor"

// ActorResolver maps verified claims to the caller's identity.
type ActorResolver interface {
	Resolve(ctx context.Context, claims *utils.Claims) (domainUser.Actor, error)
}

func AuthMiddleware(cfg *config.JWTConfig, resolver ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.CodedErrorResponse(c, http.StatusUnauthorized, appErrors.CodeUnauthorized, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.CodedErrorResponse(c, http.StatusUnauthorized, appErrors.CodeUnauthorized, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(parts[1], cfg.Secret)
		if err == nil && cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
			err = appErrors.ErrInvalidToken
		}
		if err != nil {
			logger.Debug("Rejected bearer token",
				zap.String("request_id", GetRequestID(c)),
				zap.Error(err),
				logger.Event("auth_token_rejected"),
			)
			utils.CodedErrorResponse(c, http.StatusUnauthorized, appErrors.CodeUnauthorized, "Invalid or expired token")
			c.Abort()
			return
		}

		actor, err := resolver.Resolve(c.Request.Context(), claims)
		if err != nil {
			status := http.StatusUnauthorized
			if appErrors.CodeOf(err) == appErrors.CodePersistence {
				status = http.StatusServiceUnavailable
			}
			utils.CodedErrorResponse(c, status, appErrors.CodeOf(err), err.Error())
			c.Abort()
			return
		}

		c.Set(ActorKey, actor)
		c.Next()
	}
}

// GetActor returns the caller set by AuthMiddleware.
func GetActor(c *gin.Context) (domainUser.Actor, bool) {
	value, exists := c.Get(ActorKey)
	if !exists {
		return domainUser.Actor{}, false
	}
	actor, ok := value.(domainUser.Actor)
	return actor, ok
}
