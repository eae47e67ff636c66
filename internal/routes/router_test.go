package routes_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"farm-iot-provisioning/internal/config"
	domainUser "farm-iot-provisioning/internal/domain/user"
	"farm-iot-provisioning/internal/routes"
	"farm-iot-provisioning/internal/testutil"
	appErrors "farm-iot-provisioning/pkg/errors"
	"farm-iot-provisioning/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type api struct {
	t      *testing.T
	router http.Handler
}

func newAPI(t *testing.T) (*api, *domainUser.User, *domainUser.User) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	owner := testutil.SeedUser(t, db, "farmer@example.com", domainUser.RoleOwner)
	operator := testutil.SeedUser(t, db, "ops@example.com", domainUser.RoleOperator)

	cfg := &config.Config{
		Server:    config.ServerConfig{Environment: "test"},
		JWT:       config.JWTConfig{Secret: testSecret},
		Currency:  config.CurrencyConfig{EntryCode: "LKR", CanonicalCode: "USD", EntryRate: 300},
		RateLimit: config.RateLimitConfig{GeneralRPS: 1000, GeneralBurst: 1000},
	}
	router, err := routes.SetupRoutes(cfg, db, routes.Options{
		Clock: testutil.Clock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)

	return &api{t: t, router: router}, owner, operator
}

func (a *api) do(u *domainUser.User, method, path string, body interface{}) (int, envelope) {
	a.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if u != nil {
		tok, err := utils.GenerateToken(u.ID, u.Email, "", testSecret, time.Hour)
		require.NoError(a.t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func decode(t *testing.T, env envelope, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func submitBody() map[string]interface{} {
	return map[string]interface{}{
		"personal_info": map[string]interface{}{
			"full_name": "Kamala Perera",
			"email":     "kamala@example.com",
			"phone":     "+94771234567",
			"nic":       "199012345678",
			"address":   "12 Temple Road, Kandy",
		},
		"farm_info": map[string]interface{}{
			"farm_name": "Hill Crest",
			"farm_size": 4.5,
			"location":  "Kandy",
		},
		"requested_parameters": []string{"Soil_Moisture", "temperature"},
	}
}

func TestHealth(t *testing.T) {
	a, _, _ := newAPI(t)

	code, _ := a.do(nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	a, owner, operator := newAPI(t)

	code, env := a.do(owner, http.MethodPost, "/api/v1/requests", submitBody())
	require.Equal(t, http.StatusCreated, code, env.Message)
	var submitted struct {
		ID     uuid.UUID `json:"id"`
		Status string    `json:"status"`
	}
	decode(t, env, &submitted)
	assert.Equal(t, "pending", submitted.Status)
	base := "/api/v1/requests/" + submitted.ID.String()

	code, env = a.do(owner, http.MethodPost, base+"/accept", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, appErrors.CodeUnauthorized, env.Code)

	code, env = a.do(operator, http.MethodPost, base+"/accept", nil)
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = a.do(operator, http.MethodPost, base+"/estimate", map[string]interface{}{
		"device_cost":     15000,
		"service_charge":  1500,
		"delivery_charge": 600,
	})
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = a.do(owner, http.MethodPost, base+"/user-accept", nil)
	require.Equal(t, http.StatusOK, code, env.Message)

	assign := map[string]interface{}{"device_id": "ESP32-0001", "user_id": owner.ID}
	code, env = a.do(operator, http.MethodPost, base+"/assign", assign)
	require.Equal(t, http.StatusCreated, code, env.Message)
	var record struct {
		Request struct {
			Status           string  `json:"status"`
			AssignedDeviceID *string `json:"assigned_device_id"`
		} `json:"request"`
		Replayed bool `json:"replayed"`
	}
	decode(t, env, &record)
	assert.Equal(t, "device-assigned", record.Request.Status)
	require.NotNil(t, record.Request.AssignedDeviceID)
	assert.Equal(t, "ESP32-0001", *record.Request.AssignedDeviceID)
	assert.False(t, record.Replayed)

	code, env = a.do(operator, http.MethodPost, base+"/assign", assign)
	require.Equal(t, http.StatusOK, code, env.Message)
	decode(t, env, &record)
	assert.True(t, record.Replayed)

	code, env = a.do(owner, http.MethodGet, "/api/v1/devices", nil)
	require.Equal(t, http.StatusOK, code)
	var devices []struct {
		AccessType string `json:"access_type"`
		Device     struct {
			ID string `json:"id"`
		} `json:"device"`
	}
	decode(t, env, &devices)
	require.Len(t, devices, 1)
	assert.Equal(t, "ESP32-0001", devices[0].Device.ID)
	assert.Equal(t, "owner", devices[0].AccessType)

	code, env = a.do(owner, http.MethodGet, "/api/v1/notifications", nil)
	require.Equal(t, http.StatusOK, code)
	var notifications []struct {
		ID   uuid.UUID `json:"id"`
		Read bool      `json:"read"`
	}
	decode(t, env, &notifications)
	require.Len(t, notifications, 1)
	assert.False(t, notifications[0].Read)

	code, _ = a.do(owner, http.MethodPost, "/api/v1/notifications/"+notifications[0].ID.String()+"/read", nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = a.do(operator, http.MethodGet, "/api/v1/reconciliation", nil)
	require.Equal(t, http.StatusOK, code)
	var report struct {
		Issues []json.RawMessage `json:"issues"`
	}
	decode(t, env, &report)
	assert.Empty(t, report.Issues)

	code, env = a.do(owner, http.MethodPost, base+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, appErrors.CodeInvalidTransition, env.Code)

	code, _ = a.do(operator, http.MethodPost, base+"/complete", nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = a.do(owner, http.MethodPost, base+"/cancel", map[string]string{"reason": "too late"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, appErrors.CodeAlreadyTerminal, env.Code)
}

func TestErrorMapping(t *testing.T) {
	a, owner, operator := newAPI(t)

	code, env := a.do(nil, http.MethodGet, "/api/v1/requests", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, appErrors.CodeUnauthorized, env.Code)

	code, env = a.do(owner, http.MethodGet, "/api/v1/requests/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, appErrors.CodeValidation, env.Code)

	code, env = a.do(owner, http.MethodGet, "/api/v1/requests/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, appErrors.CodeNotFound, env.Code)

	body := submitBody()
	body["requested_parameters"] = []string{}
	code, env = a.do(owner, http.MethodPost, "/api/v1/requests", body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, appErrors.CodeValidation, env.Code)

	code, env = a.do(owner, http.MethodPost, "/api/v1/requests", submitBody())
	require.Equal(t, http.StatusCreated, code)
	var submitted struct {
		ID uuid.UUID `json:"id"`
	}
	decode(t, env, &submitted)

	code, env = a.do(operator, http.MethodPost, "/api/v1/requests/"+submitted.ID.String()+"/assign",
		map[string]interface{}{"device_id": "ESP32-0002", "user_id": owner.ID})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, appErrors.CodeRequestNotAssignable, env.Code)

	code, env = a.do(owner, http.MethodGet, "/api/v1/devices/ESP32-0002", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, appErrors.CodeNotFound, env.Code)
}
