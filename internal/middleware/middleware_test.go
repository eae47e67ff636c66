package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"farm-iot-provisioning/internal/config"
	domainUser "farm-iot-provisioning/internal/domain/user"
	appErrors "farm-iot-provisioning/pkg/errors"
	"farm-iot-provisioning/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type staticResolver struct {
	role domainUser.Role
	err  error
}

func (r staticResolver) Resolve(_ context.Context, claims *utils.Claims) (domainUser.Actor, error) {
	if r.err != nil {
		return domainUser.Actor{}, r.err
	}
	return domainUser.Actor{UserID: claims.UserID, Email: claims.Email, Role: r.role}, nil
}

func newEngine(cfg *config.JWTConfig, resolver ActorResolver, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	handlers := append([]gin.HandlerFunc{AuthMiddleware(cfg, resolver)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		actor, _ := GetActor(c)
		c.String(http.StatusOK, string(actor.Role))
	})
	r.GET("/whoami", handlers...)
	return r
}

func get(t *testing.T, r http.Handler, header string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func token(t *testing.T, secret string, ttl time.Duration) string {
	t.Helper()
	tok, err := utils.GenerateToken(uuid.New(), "farmer@example.com", "", secret, ttl)
	require.NoError(t, err)
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.JWTConfig{Secret: testSecret}
	r := newEngine(cfg, staticResolver{role: domainUser.RoleOwner})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + token(t, testSecret, time.Hour), http.StatusOK},
		{"lowercase scheme", "bearer " + token(t, testSecret, time.Hour), http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + token(t, "other", time.Hour), http.StatusUnauthorized},
		{"expired", "Bearer " + token(t, testSecret, -time.Minute), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, r, tt.header)
			assert.Equal(t, tt.want, w.Code)
			assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
		})
	}
}

func TestAuthMiddleware_Issuer(t *testing.T) {
	r := newEngine(&config.JWTConfig{Secret: testSecret, Issuer: "farm-idp"}, staticResolver{role: domainUser.RoleOwner})

	w := get(t, r, "Bearer "+token(t, testSecret, time.Hour))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_ResolverFailure(t *testing.T) {
	cfg := &config.JWTConfig{Secret: testSecret}

	denied := newEngine(cfg, staticResolver{err: appErrors.Unauthorized("nope")})
	assert.Equal(t, http.StatusUnauthorized, get(t, denied, "Bearer "+token(t, testSecret, time.Hour)).Code)

	down := newEngine(cfg, staticResolver{err: appErrors.Persistence("db down", nil)})
	assert.Equal(t, http.StatusServiceUnavailable, get(t, down, "Bearer "+token(t, testSecret, time.Hour)).Code)
}

func TestOperatorOnly(t *testing.T) {
	cfg := &config.JWTConfig{Secret: testSecret}
	header := "Bearer " + token(t, testSecret, time.Hour)

	for role, want := range map[domainUser.Role]int{
		domainUser.RoleOwner:      http.StatusForbidden,
		domainUser.RoleOperator:   http.StatusOK,
		domainUser.RoleSuperAdmin: http.StatusOK,
	} {
		r := newEngine(cfg, staticResolver{role: role}, OperatorOnly())
		assert.Equal(t, want, get(t, r, header).Code, string(role))
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 2)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("10.0.0.1"))

	now = now.Add(idleLimiterTTL + time.Second)
	rl.Prune()
	assert.Empty(t, rl.limiters)
}

func TestRateLimitHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(rateLimitHandler(NewRateLimiter(0, 1)))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
