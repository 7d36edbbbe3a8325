package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotation_RecalculateUsesNestedActivityTotal(t *testing.T) {
	q := &Quotation{
		Adults:        2,
		PricePerAdult: 1000,
		Activities:    map[string]interface{}{"total": int32(300)},
	}

	q.Recalculate()
	assert.Equal(t, 300.0, q.Calculated.ActivityTotal)
	assert.Equal(t, 2300.0, q.Calculated.FinalPrice)
	assert.Equal(t, "THB", q.Currency)
}

func TestQuotation_NestedActivityTotalIgnoresNonFinite(t *testing.T) {
	q := &Quotation{
		Adults:        1,
		PricePerAdult: 1000,
		Activities:    map[string]interface{}{"total": math.NaN()},
	}

	q.Recalculate()
	assert.Equal(t, 0.0, q.Calculated.ActivityTotal)
	assert.Equal(t, 1000.0, q.Calculated.FinalPrice)

	q.Activities = map[string]interface{}{"total": "250"}
	q.Recalculate()
	assert.Equal(t, 250.0, q.Calculated.ActivityTotal)
}

func TestQuotation_ToView(t *testing.T) {
	q := &Quotation{
		ID:               42,
		QuotationNumber:  "QT-2025-000042",
		Status:           QuotationStatusWaiting,
		DateStart:        "2025-01-10",
		DateEnd:          "2025-01-13",
		CustomerName:     "Somchai",
		FlightIncluded:   true,
		FlightAdultPrice: 300,
		Sharing:          QuotationSharing{AccessCode: "123456", ShareCount: 2},
	}
	q.Recalculate()

	view := q.ToView()
	assert.Equal(t, QuotationStatusWriting, view.Status)
	assert.Equal(t, 3, view.Nights)
	assert.Equal(t, "Somchai", view.Customer.Name)
	require.NotNil(t, view.Flight.AdultPrice)
	assert.Equal(t, 300.0, *view.Flight.AdultPrice)
	assert.Nil(t, view.Flight.ChildPrice)
	assert.NotNil(t, view.Attractions)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "123456")
	assert.NotContains(t, string(raw), "accessCode")
	assert.Contains(t, string(raw), `"grandTotal"`)
}

func TestDaysNights(t *testing.T) {
	days, nights := DaysNights("2025-01-10", "2025-01-10")
	assert.Equal(t, 1, days)
	assert.Equal(t, 0, nights)

	days, nights = DaysNights("2025-01-10", "2025-01-13")
	assert.Equal(t, 4, days)
	assert.Equal(t, 3, nights)

	days, nights = DaysNights("", "2025-01-13")
	assert.Equal(t, 0, days)
	assert.Equal(t, 0, nights)

	days, nights = DaysNights("2025-01-13", "2025-01-10")
	assert.Equal(t, 1, days)
	assert.Equal(t, 0, nights)
}

func TestTour_ToViewDefaults(t *testing.T) {
	tour := &Tour{ID: 1, Title: "Luang Prabang", DateStart: "2025-03-01", DateEnd: "2025-03-03", AccommodationName: "Riverside"}

	view := tour.ToView()
	assert.Equal(t, DefaultMaxGuests, view.MaxGuests)
	assert.Equal(t, 3, view.Days)
	assert.Equal(t, "Riverside", view.Accommodation.Name)
	assert.NotNil(t, view.DayPlans)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"title":"Luang Prabang"`)
	assert.NotContains(t, string(raw), "accommodation_name")
}
