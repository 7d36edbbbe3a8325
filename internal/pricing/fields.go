package pricing

// PricingFields lists the flat payload keys whose change forces a recompute.
// Updates touching none of them leave the calculated block alone.
var PricingFields = []string{
	"adults", "children", "infants",
	"pricePerAdult", "pricePerChild", "pricePerInfant",
	"adultRooms", "childRooms", "adultRoomPrice", "childRoomPrice",
	"flightIncluded", "flightAdultPrice", "flightChildPrice",
	"flightInfantType", "flightInfantSeatPrice", "flightInfantLapPrice",
	"totalFoodPrice", "activityTotal",
	"packagePrice", "discountPercent", "additionalCost",
}

var pricingFieldSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(PricingFields))
	for _, f := range PricingFields {
		set[f] = struct{}{}
	}
	return set
}()

// IsPricingField reports whether key is in PricingFields.
func IsPricingField(key string) bool {
	_, ok := pricingFieldSet[key]
	return ok
}

// TouchesPricing reports whether any of keys is a pricing field.
func TouchesPricing(keys []string) bool {
	for _, k := range keys {
		if IsPricingField(k) {
			return true
		}
	}
	return false
}
