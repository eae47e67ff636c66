package estimation

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	domainRequest "farm-iot-provisioning/internal/domain/request"
	"farm-iot-provisioning/internal/domain/store"
	domainUser "farm-iot-provisioning/internal/domain/user"
	"farm-iot-provisioning/internal/infrastructure/database/postgres"
	"farm-iot-provisioning/internal/pricing"
	"farm-iot-provisioning/internal/testutil"
	"farm-iot-provisioning/internal/usecase/transition"
	appErrors "farm-iot-provisioning/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	db       *postgres.DB
	operator domainUser.Actor
	owner    domainUser.Actor
}

func newFixture(t *testing.T, rate float64) *fixture {
	db := testutil.NewDB(t)
	converter, err := pricing.NewConverter("lkr", "usd", rate)
	require.NoError(t, err)
	runner := transition.NewRunner(postgres.NewRequestRepository(db), postgres.NewCommitter(db)).WithClock(testutil.Clock(t0))
	return &fixture{
		svc:      NewService(converter, runner),
		db:       db,
		operator: domainUser.Actor{UserID: uuid.New(), Role: domainUser.RoleOperator},
		owner:    domainUser.Actor{UserID: uuid.New(), Role: domainUser.RoleOwner},
	}
}

func (f *fixture) seed(t *testing.T, status domainRequest.Status) uuid.UUID {
	t.Helper()
	r := testutil.PendingRequest(f.owner.UserID, t0)
	r.Status = status
	require.NoError(t, postgres.NewCommitter(f.db).Commit(context.Background(), store.RequestWrite{Request: r}))
	return r.ID
}

func TestService_Estimate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 303.62)
	id := f.seed(t, domainRequest.StatusAccepted)

	notes := "includes <script>install</script>"
	resp, err := f.svc.Estimate(ctx, f.operator, id, &EstimateRequest{
		DeviceCost:     15000,
		ServiceCharge:  2000,
		DeliveryCharge: 1000,
		Notes:          &notes,
	})
	require.NoError(t, err)

	assert.Equal(t, domainRequest.StatusCostEstimated, resp.Status)
	require.NotNil(t, resp.EstimatedAt)
	cost := resp.CostDetails
	require.NotNil(t, cost)
	assert.Equal(t, 18000.0, cost.TotalCost.Entry)
	assert.InDelta(t, 59.2846, cost.TotalCost.Canonical, 1e-4)
	assert.InDelta(t, 15000/303.62, cost.DeviceCost.Canonical, 1e-9)
	assert.Equal(t, 303.62, cost.ExchangeRate)
	assert.Equal(t, "LKR", cost.EntryCurrency)
	assert.Equal(t, "USD", cost.CanonicalCurrency)
	assert.Equal(t, f.operator.UserID, cost.EstimatedBy)
	require.NotNil(t, cost.Notes)
	assert.NotContains(t, *cost.Notes, "<script>")

	stored, err := postgres.NewRequestRepository(f.db).GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, stored.CostDetails)
	assert.Equal(t, 303.62, stored.CostDetails.ExchangeRate)
	assert.InDelta(t, cost.TotalCost.Canonical, stored.CostDetails.TotalCost.Canonical, 1e-9)
}

func TestService_EstimateRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 303.62)
	accepted := f.seed(t, domainRequest.StatusAccepted)
	pending := f.seed(t, domainRequest.StatusPending)

	tests := []struct {
		name  string
		actor domainUser.Actor
		id    uuid.UUID
		req   *EstimateRequest
		want  error
	}{
		{"negative device cost", f.operator, accepted, &EstimateRequest{DeviceCost: -1}, appErrors.ErrValidation},
		{"negative delivery", f.operator, accepted, &EstimateRequest{DeliveryCharge: -0.01}, appErrors.ErrValidation},
		{"not a number", f.operator, accepted, &EstimateRequest{ServiceCharge: math.NaN()}, appErrors.ErrValidation},
		{"owner cannot estimate", f.owner, accepted, &EstimateRequest{DeviceCost: 10}, appErrors.ErrUnauthorized},
		{"not accepted yet", f.operator, pending, &EstimateRequest{DeviceCost: 10}, appErrors.ErrInvalidTransition},
		{"unknown request", f.operator, uuid.New(), &EstimateRequest{DeviceCost: 10}, appErrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Estimate(ctx, tt.actor, tt.id, tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	stored, err := postgres.NewRequestRepository(f.db).GetByID(ctx, accepted)
	require.NoError(t, err)
	assert.Equal(t, domainRequest.StatusAccepted, stored.Status)
	assert.Nil(t, stored.CostDetails)
}

func TestService_EstimateKeepsRateSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 300)
	first := f.seed(t, domainRequest.StatusAccepted)
	second := f.seed(t, domainRequest.StatusAccepted)

	_, err := f.svc.Estimate(ctx, f.operator, first, &EstimateRequest{DeviceCost: 3000})
	require.NoError(t, err)

	// The configured rate changes; figures already stored keep theirs.
	converter, err := pricing.NewConverter("LKR", "USD", 400)
	require.NoError(t, err)
	runner := transition.NewRunner(postgres.NewRequestRepository(f.db), postgres.NewCommitter(f.db)).WithClock(testutil.Clock(t0))
	_, err = NewService(converter, runner).Estimate(ctx, f.operator, second, &EstimateRequest{DeviceCost: 3000})
	require.NoError(t, err)

	repo := postgres.NewRequestRepository(f.db)
	before, err := repo.GetByID(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 300.0, before.CostDetails.ExchangeRate)
	assert.InDelta(t, 10.0, before.CostDetails.TotalCost.Canonical, 1e-9)

	after, err := repo.GetByID(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 400.0, after.CostDetails.ExchangeRate)
	assert.InDelta(t, 7.5, after.CostDetails.TotalCost.Canonical, 1e-9)
}
