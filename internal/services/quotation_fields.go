package services

import (
	"nguide/admin/internal/models"
	"nguide/admin/internal/pricing"
)

// quotationField maps one client payload value onto the stored quotation.
// group/key locate the nested form, aliases the flat forms, flat is the
// canonical field name used for the recompute policy.
type quotationField struct {
	group   string
	key     string
	flat    string
	aliases []string
	bson    string
	apply   func(q *models.Quotation, v interface{}) bool
}

func stringField(dst func(q *models.Quotation) *string) func(*models.Quotation, interface{}) bool {
	return func(q *models.Quotation, v interface{}) bool {
		s, ok := toString(v)
		if ok {
			*dst(q) = s
		}
		return ok
	}
}

func intField(dst func(q *models.Quotation) *int) func(*models.Quotation, interface{}) bool {
	return func(q *models.Quotation, v interface{}) bool {
		n, ok := toInt(v)
		if ok {
			*dst(q) = n
		}
		return ok
	}
}

func floatField(dst func(q *models.Quotation) *float64) func(*models.Quotation, interface{}) bool {
	return func(q *models.Quotation, v interface{}) bool {
		f, ok := pricing.ToFloat(v)
		if ok {
			*dst(q) = f
		}
		return ok
	}
}

func boolField(dst func(q *models.Quotation) *bool) func(*models.Quotation, interface{}) bool {
	return func(q *models.Quotation, v interface{}) bool {
		b, ok := toBool(v)
		if ok {
			*dst(q) = b
		}
		return ok
	}
}

func listField(dst func(q *models.Quotation) *[]interface{}) func(*models.Quotation, interface{}) bool {
	return func(q *models.Quotation, v interface{}) bool {
		l, ok := toList(v)
		if ok {
			*dst(q) = l
		}
		return ok
	}
}

// quotationFields is the fixed payload table. Order matters only for
// fields sharing a BSON name, which none do.
var quotationFields = []quotationField{
	{flat: "quotationNumber", aliases: []string{"quotationNumber"}, bson: "quotation_number",
		apply: stringField(func(q *models.Quotation) *string { return &q.QuotationNumber })},
	{flat: "status", aliases: []string{"status"}, bson: "status",
		apply: stringField(func(q *models.Quotation) *string { return &q.Status })},
	{flat: "countryCode", aliases: []string{"countryCode", "country"}, bson: "country_code",
		apply: func(q *models.Quotation, v interface{}) bool {
			s, ok := toString(v)
			if ok {
				q.CountryCode = NormalizeCountryCode(s)
			}
			return ok
		}},
	{flat: "attractions", aliases: []string{"attractions"}, bson: "attractions",
		apply: listField(func(q *models.Quotation) *[]interface{} { return &q.Attractions })},
	{flat: "purpose", aliases: []string{"purpose"}, bson: "purpose",
		apply: stringField(func(q *models.Quotation) *string { return &q.Purpose })},
	{flat: "dateStart", aliases: []string{"dateStart"}, bson: "date_start",
		apply: stringField(func(q *models.Quotation) *string { return &q.DateStart })},
	{flat: "dateEnd", aliases: []string{"dateEnd"}, bson: "date_end",
		apply: stringField(func(q *models.Quotation) *string { return &q.DateEnd })},

	{group: "customer", key: "name", flat: "customerName", aliases: []string{"customerName", "name"}, bson: "customer_name",
		apply: stringField(func(q *models.Quotation) *string { return &q.CustomerName })},
	{group: "customer", key: "email", flat: "customerEmail", aliases: []string{"customerEmail", "email"}, bson: "customer_email",
		apply: stringField(func(q *models.Quotation) *string { return &q.CustomerEmail })},
	{group: "customer", key: "phone", flat: "customerPhone", aliases: []string{"customerPhone", "phone"}, bson: "customer_phone",
		apply: stringField(func(q *models.Quotation) *string { return &q.CustomerPhone })},
	{group: "customer", key: "callTime", flat: "customerCallTime", aliases: []string{"customerCallTime"}, bson: "customer_call_time",
		apply: stringField(func(q *models.Quotation) *string { return &q.CustomerCallTime })},

	{group: "travelers", key: "adults", flat: "adults", aliases: []string{"adults"}, bson: "adults",
		apply: intField(func(q *models.Quotation) *int { return &q.Adults })},
	{group: "travelers", key: "children", flat: "children", aliases: []string{"children"}, bson: "children",
		apply: intField(func(q *models.Quotation) *int { return &q.Children })},
	{group: "travelers", key: "infants", flat: "infants", aliases: []string{"infants"}, bson: "infants",
		apply: intField(func(q *models.Quotation) *int { return &q.Infants })},

	{group: "unitPrices", key: "pricePerAdult", flat: "pricePerAdult", aliases: []string{"pricePerAdult"}, bson: "price_per_adult",
		apply: floatField(func(q *models.Quotation) *float64 { return &q.PricePerAdult })},
	{group: "unitPrices", key: "pricePerChild", flat: "pricePerChild", aliases: []string{"pricePerChild"}, bson: "price_per_child",
		apply: floatField(func(q *models.Quotation) *float64 { return &q.PricePerChild })},
	{group: "unitPrices", key: "pricePerInfant", flat: "pricePerInfant", aliases: []string{"pricePerInfant"}, bson: "price_per_infant",
		apply: floatField(func(q *models.Quotation) *float64 { return &q.PricePerInfant })},

	{group: "accommodation", key: "name", flat: "accommodation", aliases: []string{"accommodation"}, bson: "accommodation",
		apply: stringField(func(q *models.Quotation) *string { return &q.Accommodation })},
	{group: "accommodation", key: "roomType", flat: "roomType", aliases: []string{"roomType"}, bson: "room_type",
		apply: stringField(func(q *models.Quotation) *string { return &q.RoomType })},
	{group: "accommodation", key: "childRoomType", flat: "childRoomType", aliases: []string{"childRoomType"}, bson: "child_room_type",
		apply: stringField(func(q *models.Quotation) *string { return &q.ChildRoomType })},

	{group: "rooms", key: "adultRooms", flat: "adultRooms", aliases: []string{"adultRooms"}, bson: "adult_rooms",
		apply: intField(func(q *models.Quotation) *int { return &q.AdultRooms })},
	{group: "rooms", key: "childRooms", flat: "childRooms", aliases: []string{"childRooms"}, bson: "child_rooms",
		apply: intField(func(q *models.Quotation) *int { return &q.ChildRooms })},
	{group: "rooms", key: "adultRoomPrice", flat: "adultRoomPrice", aliases: []string{"adultRoomPrice"}, bson: "adult_room_price",
		apply: floatField(func(q *models.Quotation) *float64 { return &q.AdultRoomPrice })},
	{group: "rooms", key: "childRoomPrice", flat: "childRoomPrice", aliases: []string{"childRoomPrice"}, bson: "child_room_price",
		apply: floatField(func(q *models.Quotation) *float64 { return &q.ChildRoomPrice })},

	{group: "flight", key: "included", flat: "flightIncluded", aliases: []string{"flightIncluded"}, bson: "flight_included",
		apply: boolField(func(q *models.Quotation) *bool { return &q.FlightIncluded })},
	{group: "flight", key: "adultPrice", flat: "flightAdultPrice", aliases: []string{"flightAdultPrice"}, bson: "flight_adult_price",
		apply: floatField(func(q *models.Quotation) *float64 { return &q.FlightAdultPrice })},
	{group: "flight", key: "childPrice", flat: "flightChildPrice", aliases: []string{"flightChildPrice"}, bson: "flight_child_price",
		apply: floatField(func(q *models.Quotation) *float64 { return &q.FlightChildPrice })},
	{group: "flight", key: "infantType", flat: "flightInfantType", aliases: []string{"flightInfantType"}, bson: "flight_infant_type",
		apply: func(q *models.Quotation, v interface{}) bool {
			s, ok := toString(v)
			if !ok {
				return false
			}
			if s != pricing.InfantSeat && s != pricing.InfantLap {
				s = ""
			}
			q.FlightInfantType = s
			return true
		}},
	{group: "flight", key: "infantSeatPrice", flat: "flightInfantSeatPrice", aliases: []string{"flightInfantSeatPrice"}, bson: "flight_infant_seat_price",
		apply: floatField(func(q *models.Quotation) *float64 { return &q.FlightInfantSeatPrice })},
	{group: "flight", key: "infantLapPrice", flat: "flightInfantLapPrice", aliases: []string{"flightInfantLapPrice"}, bson: "flight_infant_lap_price",
		apply: floatField(func(q *models.Quotation) *float64 { return &q.FlightInfantLapPrice })},

	{group: "food", key: "mealOptions", flat: "mealOptions", aliases: []string{"mealOptions"}, bson: "meal_options",
		apply: listField(func(q *models.Quotation) *[]interface{} { return &q.MealOptions })},
	{group: "foodTotals", key: "breakfast", flat: "breakfastTotal", aliases: []string{"breakfastTotal"}, bson: "breakfast_total",
		apply: floatField(func(q *models.Quotation) *float64 { return &q.BreakfastTotal })},
	{group: "foodTotals", key: "lunch", flat: "lunchTotal", aliases: []string{"lunchTotal"}, bson: "lunch_total",
		apply: floatField(func(q *models.Quotation) *float64 { return &q.LunchTotal })},
	{group: "foodTotals", key: "dinner", flat: "dinnerTotal", aliases: []string{"dinnerTotal"}, bson: "dinner_total",
		apply: floatField(func(q *models.Quotation) *float64 { return &q.DinnerTotal })},
	{group: "foodTotals", key: "totalFoodPrice", flat: "totalFoodPrice", aliases: []string{"totalFoodPrice"}, bson: "total_food_price",
		apply: floatField(func(q *models.Quotation) *float64 { return &q.TotalFoodPrice })},

	{flat: "activityTotal", aliases: []string{"activityTotal"}, bson: "activity_total",
		apply: floatField(func(q *models.Quotation) *float64 { return &q.ActivityTotal })},
	{flat: "activities", aliases: []string{"activities"}, bson: "activities",
		apply: func(q *models.Quotation, v interface{}) bool {
			m, ok := toMap(v)
			if ok {
				q.Activities = m
			}
			return ok
		}},

	{group: "package", key: "packagePrice", flat: "packagePrice", aliases: []string{"packagePrice"}, bson: "package_price",
		apply: floatField(func(q *models.Quotation) *float64 { return &q.PackagePrice })},
	{group: "package", key: "discountPercent", flat: "discountPercent", aliases: []string{"discountPercent"}, bson: "discount_percent",
		apply: floatField(func(q *models.Quotation) *float64 { return &q.DiscountPercent })},
	{group: "package", key: "additionalCost", flat: "additionalCost", aliases: []string{"additionalCost"}, bson: "additional_cost",
		apply: floatField(func(q *models.Quotation) *float64 { return &q.AdditionalCost })},

	{group: "lists", key: "includedItems", flat: "includedItems", aliases: []string{"includedItems"}, bson: "included_items",
		apply: listField(func(q *models.Quotation) *[]interface{} { return &q.IncludedItems })},
	{group: "lists", key: "excludedItems", flat: "excludedItems", aliases: []string{"excludedItems"}, bson: "excluded_items",
		apply: listField(func(q *models.Quotation) *[]interface{} { return &q.ExcludedItems })},

	{flat: "additional", aliases: []string{"additional"}, bson: "additional",
		apply: stringField(func(q *models.Quotation) *string { return &q.Additional })},
	{flat: "currency", aliases: []string{"currency"}, bson: "currency",
		apply: stringField(func(q *models.Quotation) *string { return &q.Currency })},
}

// flattenPayload lifts food.totals to the synthetic foodTotals group so
// every nested value is one level deep.
func flattenPayload(payload map[string]interface{}) map[string]interface{} {
	food, ok := payload["food"].(map[string]interface{})
	if !ok {
		return payload
	}
	totals, ok := food["totals"].(map[string]interface{})
	if !ok {
		return payload
	}
	out := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out["foodTotals"] = totals
	return out
}

// applyQuotationPayload overlays payload onto q and returns the fields it
// changed.
func applyQuotationPayload(q *models.Quotation, payload map[string]interface{}) []*quotationField {
	payload = flattenPayload(payload)
	var touched []*quotationField
	for i := range quotationFields {
		f := &quotationFields[i]
		v, found := lookup(payload, f.group, f.key, f.aliases...)
		if !found {
			continue
		}
		if f.apply(q, v) {
			touched = append(touched, f)
		}
	}
	return touched
}

func touchedNames(fields []*quotationField) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.flat
	}
	return names
}
