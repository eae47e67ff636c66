package testutil

import (
	"time"

	"farm-iot-provisioning/internal/domain/request"

	"github.com/google/uuid"
)

// PendingRequest builds a freshly submitted request owned by ownerID.
func PendingRequest(ownerID uuid.UUID, at time.Time) *request.DeviceRequest {
	return &request.DeviceRequest{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		Status:      request.StatusPending,
		PersonalInfo: request.PersonalInfo{
			FullName:   "Kamala Silva",
			Email:      "kamala@example.com",
			Phone:      "+94771234567",
			NationalID: "199012345678",
			Address:    "12 Temple Road, Kandy",
		},
		FarmInfo: request.FarmInfo{
			FarmName: "Hillside Tea",
			FarmSize: 3.5,
			SoilType: "loam",
			Location: "Kandy",
		},
		RequestedParameters: []string{"humidity", "soil_moisture", "temperature"},
		CreatedAt:           at,
		UpdatedAt:           at,
	}
}

// SampleCost is the 15000 + 2000 + 1000 LKR breakdown at 303.62 LKR per USD.
func SampleCost(estimatedBy uuid.UUID) *request.CostDetails {
	const rate = 303.62
	return &request.CostDetails{
		DeviceCost:        request.Amount{Entry: 15000, Canonical: 15000 / rate},
		ServiceCharge:     request.Amount{Entry: 2000, Canonical: 2000 / rate},
		DeliveryCharge:    request.Amount{Entry: 1000, Canonical: 1000 / rate},
		TotalCost:         request.Amount{Entry: 18000, Canonical: 18000 / rate},
		ExchangeRate:      rate,
		EntryCurrency:     "LKR",
		CanonicalCurrency: "USD",
		EstimatedBy:       estimatedBy,
	}
}
