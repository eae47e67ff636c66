// Package identity turns verified token claims into the caller's Actor.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	domainUser "farm-iot-provisioning/internal/domain/user"
	"farm-iot-provisioning/internal/logger"
	appErrors "farm-iot-provisioning/pkg/errors"
	"farm-iot-provisioning/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Resolver looks the caller up in the user directory. The role claimed by a
// token is never trusted; superadmin comes only from the privileged set.
type Resolver struct {
	users      domainUser.Repository
	privileged map[string]struct{}
	now        func() time.Time
}

// NewResolver builds a resolver. privileged holds emails or user ids.
func NewResolver(users domainUser.Repository, privileged []string) *Resolver {
	set := make(map[string]struct{}, len(privileged))
	for _, p := range privileged {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			set[p] = struct{}{}
		}
	}
	return &Resolver{
		users:      users,
		privileged: set,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// IsPrivileged reports whether the user id or email is configured as superadmin.
func (r *Resolver) IsPrivileged(userID uuid.UUID, email string) bool {
	if _, ok := r.privileged[userID.String()]; ok {
		return true
	}
	_, ok := r.privileged[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// Resolve returns the Actor for verified claims. A first-time caller is
// registered as an owner.
func (r *Resolver) Resolve(ctx context.Context, claims *utils.Claims) (domainUser.Actor, error) {
	if claims == nil || claims.UserID == uuid.Nil {
		return domainUser.Actor{}, appErrors.Unauthorized("Token does not identify a user")
	}

	u, err := r.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, domainUser.ErrUserNotFound) {
		u, err = r.register(ctx, claims)
	}
	if err != nil {
		return domainUser.Actor{}, err
	}

	actor := domainUser.Actor{UserID: u.ID, Email: u.Email, Role: u.Role}
	switch {
	case r.IsPrivileged(u.ID, u.Email):
		actor.Role = domainUser.RoleSuperAdmin
	case u.Role == domainUser.RoleSuperAdmin:
		logger.Warn("Stored superadmin role is not configured as privileged",
			zap.String("user_id", u.ID.String()),
			logger.Event("identity_privilege_ignored"),
		)
		actor.Role = domainUser.RoleOwner
	case !u.Role.Valid():
		return domainUser.Actor{}, appErrors.Unauthorized("User has no valid role")
	}

	return actor, nil
}

func (r *Resolver) register(ctx context.Context, claims *utils.Claims) (*domainUser.User, error) {
	email, err := utils.ParseEmail(claims.Email)
	if err != nil {
		return nil, appErrors.Unauthorized("Token carries no valid email for a new user")
	}

	now := r.now()
	u := &domainUser.User{
		ID:        claims.UserID,
		Email:     email,
		FullName:  email,
		Role:      domainUser.RoleOwner,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = r.users.Create(ctx, u)
	if errors.Is(err, domainUser.ErrUserAlreadyExists) {
		// Registered concurrently, or the email belongs to someone else.
		existing, getErr := r.users.GetByID(ctx, claims.UserID)
		if getErr == nil {
			return existing, nil
		}
		return nil, appErrors.Unauthorized("Email is already registered to another user")
	}
	if err != nil {
		return nil, appErrors.Persistence("Failed to register user", err)
	}

	logger.Info("User registered on first sign-in",
		zap.String("user_id", u.ID.String()),
		logger.Event("user_registered"),
	)
	return u, nil
}
