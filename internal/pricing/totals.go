// Package pricing derives the monetary totals of a quotation from its raw
// pricing inputs.
package pricing

import (
	"math"
	"strings"
	"time"
)

// DefaultCurrency is used when the input carries no currency.
const DefaultCurrency = "THB"

// Infant flight modes.
const (
	InfantSeat = "seat"
	InfantLap  = "lap"
)

// Input holds the pricing-relevant fields of a quotation. Counts are float64
// because they arrive from loosely typed client payloads.
type Input struct {
	Adults   float64
	Children float64
	Infants  float64

	PricePerAdult  float64
	PricePerChild  float64
	PricePerInfant float64

	DateStart string
	DateEnd   string

	AdultRooms     float64
	ChildRooms     float64
	AdultRoomPrice float64
	ChildRoomPrice float64

	FlightIncluded        bool
	FlightAdultPrice      float64
	FlightChildPrice      float64
	FlightInfantType      string
	FlightInfantSeatPrice float64
	FlightInfantLapPrice  float64

	TotalFoodPrice float64

	// ActivityTotal is the flat activity total. NestedActivityTotal is the
	// activities.total value and only counts when the flat one is empty.
	ActivityTotal       float64
	NestedActivityTotal float64

	// PackagePrice is reference data only and never enters the totals.
	PackagePrice    float64
	DiscountPercent float64
	AdditionalCost  float64

	Currency string
}

// Totals is the calculated block of a quotation.
type Totals struct {
	TravelerTotal  float64 `bson:"traveler_total" json:"travelerTotal"`
	RoomTotal      float64 `bson:"room_total" json:"roomTotal"`
	FlightTotal    float64 `bson:"flight_total" json:"flightTotal"`
	ActivityTotal  float64 `bson:"activity_total" json:"activityTotal"`
	Subtotal       float64 `bson:"subtotal" json:"subtotal"`
	DiscountAmount float64 `bson:"discount_amount" json:"discountAmount"`
	FinalPrice     float64 `bson:"final_price" json:"finalPrice"`
	Currency       string  `bson:"currency" json:"currency"`
}

// ComputeTotals never fails: NaN and infinite inputs count as zero.
func ComputeTotals(in Input) Totals {
	adults := safeNum(in.Adults)
	children := safeNum(in.Children)
	infants := safeNum(in.Infants)

	travelerTotal := adults*safeNum(in.PricePerAdult) +
		children*safeNum(in.PricePerChild) +
		infants*safeNum(in.PricePerInfant)

	nights := float64(Nights(in.DateStart, in.DateEnd))
	roomTotal := (safeNum(in.AdultRooms)*safeNum(in.AdultRoomPrice) +
		safeNum(in.ChildRooms)*safeNum(in.ChildRoomPrice)) * nights

	var flightTotal float64
	if in.FlightIncluded {
		flightTotal = adults*safeNum(in.FlightAdultPrice) + children*safeNum(in.FlightChildPrice)
		if infants > 0 {
			switch in.FlightInfantType {
			case InfantSeat:
				flightTotal += infants * safeNum(in.FlightInfantSeatPrice)
			case InfantLap:
				flightTotal += infants * safeNum(in.FlightInfantLapPrice)
			}
		}
	}

	activityTotal := safeNum(in.ActivityTotal)
	if activityTotal == 0 {
		activityTotal = safeNum(in.NestedActivityTotal)
	}

	subtotal := travelerTotal + roomTotal + flightTotal + safeNum(in.TotalFoodPrice) + activityTotal

	discountPercent := ClampPercent(in.DiscountPercent)
	discountAmount := subtotal * discountPercent / 100
	finalPrice := subtotal - discountAmount + safeNum(in.AdditionalCost)

	currency := strings.TrimSpace(in.Currency)
	if currency == "" {
		currency = DefaultCurrency
	}

	return Totals{
		TravelerTotal:  travelerTotal,
		RoomTotal:      roomTotal,
		FlightTotal:    flightTotal,
		ActivityTotal:  activityTotal,
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		FinalPrice:     finalPrice,
		Currency:       currency,
	}
}

// ClampPercent bounds a discount percent to [0, 100].
func ClampPercent(p float64) float64 {
	return min(max(safeNum(p), 0), 100)
}

// Nights counts overnight stays between two dates, excluding the end date.
// Returns 0 when either date is missing or unparseable.
func Nights(dateStart, dateEnd string) int {
	start, ok := ParseDate(dateStart)
	if !ok {
		return 0
	}
	end, ok := ParseDate(dateEnd)
	if !ok {
		return 0
	}
	days := math.Floor(end.Sub(start).Hours() / 24)
	if days < 0 {
		return 0
	}
	return int(days)
}

// ParseDate accepts YYYY-MM-DD and RFC 3339 timestamps.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func safeNum(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
