package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"nguide/admin/internal/models"
)

func TestApplyQuotationPayload_NestedWinsOverFlat(t *testing.T) {
	q := &models.Quotation{}
	touched := applyQuotationPayload(q, map[string]interface{}{
		"customerName": "Flat Name",
		"customer":     map[string]interface{}{"name": "Nested Name", "email": "malee@example.com"},
		"adults":       float64(1),
		"travelers":    map[string]interface{}{"adults": float64(4)},
	})

	assert.Equal(t, "Nested Name", q.CustomerName)
	assert.Equal(t, "malee@example.com", q.CustomerEmail)
	assert.Equal(t, 4, q.Adults)
	assert.ElementsMatch(t, []string{"customerName", "customerEmail", "adults"}, touchedNames(touched))
}

func TestApplyQuotationPayload_FlatAliases(t *testing.T) {
	q := &models.Quotation{}
	applyQuotationPayload(q, map[string]interface{}{
		"name":           "Somchai",
		"phone":          "0812345678",
		"pricePerAdult":  "1500",
		"flightIncluded": "true",
		"country":        "Vietnam",
	})

	assert.Equal(t, "Somchai", q.CustomerName)
	assert.Equal(t, "0812345678", q.CustomerPhone)
	assert.Equal(t, 1500.0, q.PricePerAdult)
	assert.True(t, q.FlightIncluded)
	assert.Equal(t, "VN", q.CountryCode)
}

func TestApplyQuotationPayload_FoodTotals(t *testing.T) {
	q := &models.Quotation{}
	touched := applyQuotationPayload(q, map[string]interface{}{
		"food": map[string]interface{}{
			"mealOptions": []interface{}{"breakfast", "dinner"},
			"totals": map[string]interface{}{
				"breakfast":      float64(300),
				"dinner":         float64(450),
				"totalFoodPrice": float64(750),
			},
		},
	})

	assert.Equal(t, []interface{}{"breakfast", "dinner"}, q.MealOptions)
	assert.Equal(t, 300.0, q.BreakfastTotal)
	assert.Equal(t, 450.0, q.DinnerTotal)
	assert.Equal(t, 750.0, q.TotalFoodPrice)
	assert.Contains(t, touchedNames(touched), "totalFoodPrice")
}

func TestApplyQuotationPayload_AccommodationObjectIsNotAName(t *testing.T) {
	q := &models.Quotation{Accommodation: "Riverside Hotel"}
	applyQuotationPayload(q, map[string]interface{}{
		"accommodation": map[string]interface{}{"roomType": "Deluxe"},
	})

	assert.Equal(t, "Riverside Hotel", q.Accommodation)
	assert.Equal(t, "Deluxe", q.RoomType)
}

func TestApplyQuotationPayload_InfantTypeRestricted(t *testing.T) {
	q := &models.Quotation{}
	applyQuotationPayload(q, map[string]interface{}{"flightInfantType": "lap"})
	assert.Equal(t, "lap", q.FlightInfantType)

	applyQuotationPayload(q, map[string]interface{}{"flight": map[string]interface{}{"infantType": "cabin"}})
	assert.Equal(t, "", q.FlightInfantType)
}

func TestApplyQuotationPayload_WrongShapesIgnored(t *testing.T) {
	q := &models.Quotation{Adults: 2}
	touched := applyQuotationPayload(q, map[string]interface{}{
		"adults":     map[string]interface{}{"n": 3},
		"activities": "not an object",
	})

	assert.Equal(t, 2, q.Adults)
	assert.Empty(t, touched)
}

func TestApplyQuotationPayload_ListsFromJSONString(t *testing.T) {
	q := &models.Quotation{}
	applyQuotationPayload(q, map[string]interface{}{
		"lists":       map[string]interface{}{"includedItems": `["Hotel","Guide"]`},
		"attractions": "Wat Arun",
	})

	assert.Equal(t, []interface{}{"Hotel", "Guide"}, q.IncludedItems)
	assert.Equal(t, []interface{}{"Wat Arun"}, q.Attractions)
}

func TestNormalizeCountryCode(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "TH"},
		{"th", "TH"},
		{"Thailand", "TH"},
		{"ไทย", "TH"},
		{"Laos", "LA"},
		{"ลาว", "LA"},
		{"vnm", "VN"},
		{"เวียดนาม", "VN"},
		{"japan", "JA"},
		{"  kh  ", "KH"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeCountryCode(c.in), "input %q", c.in)
	}
}
