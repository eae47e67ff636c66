package pricing

import (
	"fmt"
	"math"
	"strings"

	"farm-iot-provisioning/internal/domain/request"
	appErrors "farm-iot-provisioning/pkg/errors"
)

// Converter turns operator-entered amounts into the canonical currency at a fixed rate.
// Rate is the number of entry-currency units per canonical unit.
type Converter struct {
	EntryCurrency     string
	CanonicalCurrency string
	Rate              float64
}

func NewConverter(entryCurrency, canonicalCurrency string, rate float64) (*Converter, error) {
	if err := checkRate(rate); err != nil {
		return nil, err
	}
	if strings.TrimSpace(entryCurrency) == "" || strings.TrimSpace(canonicalCurrency) == "" {
		return nil, appErrors.Validation("currency codes are required", nil)
	}
	return &Converter{
		EntryCurrency:     strings.ToUpper(entryCurrency),
		CanonicalCurrency: strings.ToUpper(canonicalCurrency),
		Rate:              rate,
	}, nil
}

// ToCanonical converts one entry-currency amount.
func (c *Converter) ToCanonical(amount float64) (float64, error) {
	if err := checkAmount("amount", amount); err != nil {
		return 0, err
	}
	return amount / c.Rate, nil
}

// Estimate builds the cost breakdown using the converter's rate.
func (c *Converter) Estimate(deviceCost, serviceCharge, deliveryCharge float64) (*request.CostDetails, error) {
	cost, err := Estimate(deviceCost, serviceCharge, deliveryCharge, c.Rate)
	if err != nil {
		return nil, err
	}
	cost.EntryCurrency = c.EntryCurrency
	cost.CanonicalCurrency = c.CanonicalCurrency
	return cost, nil
}

// Estimate sums the three line items in the entry currency and divides every
// figure by rate. Negative amounts are rejected, never clamped.
func Estimate(deviceCost, serviceCharge, deliveryCharge, rate float64) (*request.CostDetails, error) {
	if err := checkRate(rate); err != nil {
		return nil, err
	}
	for _, item := range []struct {
		name  string
		value float64
	}{
		{"device cost", deviceCost},
		{"service charge", serviceCharge},
		{"delivery charge", deliveryCharge},
	} {
		if err := checkAmount(item.name, item.value); err != nil {
			return nil, err
		}
	}

	total := deviceCost + serviceCharge + deliveryCharge
	if math.IsInf(total, 0) {
		return nil, appErrors.Validation("total cost overflows", nil)
	}

	return &request.CostDetails{
		DeviceCost:     request.Amount{Entry: deviceCost, Canonical: deviceCost / rate},
		ServiceCharge:  request.Amount{Entry: serviceCharge, Canonical: serviceCharge / rate},
		DeliveryCharge: request.Amount{Entry: deliveryCharge, Canonical: deliveryCharge / rate},
		TotalCost:      request.Amount{Entry: total, Canonical: total / rate},
		ExchangeRate:   rate,
	}, nil
}

func checkRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return appErrors.Validation(fmt.Sprintf("exchange rate must be a positive number, got %v", rate), nil)
	}
	return nil
}

func checkAmount(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return appErrors.Validation(fmt.Sprintf("%s must be a finite number", name), nil)
	}
	if value < 0 {
		return appErrors.Validation(fmt.Sprintf("%s must not be negative, got %v", name, value), nil)
	}
	return nil
}
