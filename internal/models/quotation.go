package models

import (
	"time"

	"nguide/admin/internal/pricing"
)

// Quotation statuses. "waiting" is a legacy label shown to clients as "writing".
const (
	QuotationStatusWaiting   = "waiting"
	QuotationStatusWriting   = "writing"
	QuotationStatusQuotation = "quotation"
	QuotationStatusCheck     = "check"
)

// ValidQuotationStatus reports whether s is a known status label.
func ValidQuotationStatus(s string) bool {
	switch s {
	case QuotationStatusWaiting, QuotationStatusWriting, QuotationStatusQuotation, QuotationStatusCheck:
		return true
	}
	return false
}

// QuotationSharing holds the public access credential of a quotation.
// It is only written through the dedicated store operations.
type QuotationSharing struct {
	AccessCode          string     `bson:"access_code,omitempty" json:"accessCode,omitempty"`
	AccessCodeCreatedAt *time.Time `bson:"access_code_created_at,omitempty" json:"accessCodeCreatedAt,omitempty"`
	ShareCount          int        `bson:"share_count" json:"shareCount"`
	LastSharedAt        *time.Time `bson:"last_shared_at,omitempty" json:"lastSharedAt,omitempty"`
}

// HasAccessCode reports whether a code has been allocated.
func (s QuotationSharing) HasAccessCode() bool {
	return s.AccessCode != ""
}

// Quotation is the persisted travel quotation.
type Quotation struct {
	ID              int64         `bson:"_id"`
	QuotationNumber string        `bson:"quotation_number,omitempty"`
	Status          string        `bson:"status"`
	CountryCode     string        `bson:"country_code"`
	Attractions     []interface{} `bson:"attractions"`
	Purpose         string        `bson:"purpose"`
	DateStart       string        `bson:"date_start"` // YYYY-MM-DD
	DateEnd         string        `bson:"date_end"`

	CustomerName     string `bson:"customer_name"`
	CustomerEmail    string `bson:"customer_email"`
	CustomerPhone    string `bson:"customer_phone"`
	CustomerCallTime string `bson:"customer_call_time,omitempty"`

	Adults         int     `bson:"adults"`
	Children       int     `bson:"children"`
	Infants        int     `bson:"infants"`
	PricePerAdult  float64 `bson:"price_per_adult"`
	PricePerChild  float64 `bson:"price_per_child"`
	PricePerInfant float64 `bson:"price_per_infant"`

	Accommodation string `bson:"accommodation"`
	RoomType      string `bson:"room_type"`
	ChildRoomType string `bson:"child_room_type"`

	AdultRooms     int     `bson:"adult_rooms"`
	ChildRooms     int     `bson:"child_rooms"`
	AdultRoomPrice float64 `bson:"adult_room_price"`
	ChildRoomPrice float64 `bson:"child_room_price"`

	FlightIncluded        bool    `bson:"flight_included"`
	FlightAdultPrice      float64 `bson:"flight_adult_price"`
	FlightChildPrice      float64 `bson:"flight_child_price"`
	FlightInfantType      string  `bson:"flight_infant_type"` // "seat", "lap" or empty
	FlightInfantSeatPrice float64 `bson:"flight_infant_seat_price"`
	FlightInfantLapPrice  float64 `bson:"flight_infant_lap_price"`

	MealOptions    []interface{} `bson:"meal_options"`
	BreakfastTotal float64       `bson:"breakfast_total"`
	LunchTotal     float64       `bson:"lunch_total"`
	DinnerTotal    float64       `bson:"dinner_total"`
	TotalFoodPrice float64       `bson:"total_food_price"`

	ActivityTotal float64                `bson:"activity_total"`
	Activities    map[string]interface{} `bson:"activities,omitempty"`

	PackagePrice    float64 `bson:"package_price"`
	DiscountPercent float64 `bson:"discount_percent"`
	AdditionalCost  float64 `bson:"additional_cost"`

	IncludedItems []interface{} `bson:"included_items"`
	ExcludedItems []interface{} `bson:"excluded_items"`
	Additional    string        `bson:"additional,omitempty"`

	Currency   string         `bson:"currency"`
	Calculated pricing.Totals `bson:"calculated"`

	Sharing QuotationSharing `bson:"sharing"`

	CreatedBy string     `bson:"created_by,omitempty"`
	UpdatedBy string     `bson:"updated_by,omitempty"`
	CreatedAt time.Time  `bson:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at"`
	DeletedAt *time.Time `bson:"deleted_at,omitempty"`
}

// PricingInput extracts the calculator input from the record.
func (q *Quotation) PricingInput() pricing.Input {
	in := pricing.Input{
		Adults:                float64(q.Adults),
		Children:              float64(q.Children),
		Infants:               float64(q.Infants),
		PricePerAdult:         q.PricePerAdult,
		PricePerChild:         q.PricePerChild,
		PricePerInfant:        q.PricePerInfant,
		DateStart:             q.DateStart,
		DateEnd:               q.DateEnd,
		AdultRooms:            float64(q.AdultRooms),
		ChildRooms:            float64(q.ChildRooms),
		AdultRoomPrice:        q.AdultRoomPrice,
		ChildRoomPrice:        q.ChildRoomPrice,
		FlightIncluded:        q.FlightIncluded,
		FlightAdultPrice:      q.FlightAdultPrice,
		FlightChildPrice:      q.FlightChildPrice,
		FlightInfantType:      q.FlightInfantType,
		FlightInfantSeatPrice: q.FlightInfantSeatPrice,
		FlightInfantLapPrice:  q.FlightInfantLapPrice,
		TotalFoodPrice:        q.TotalFoodPrice,
		ActivityTotal:         q.ActivityTotal,
		PackagePrice:          q.PackagePrice,
		DiscountPercent:       q.DiscountPercent,
		AdditionalCost:        q.AdditionalCost,
		Currency:              q.Currency,
	}
	if total, ok := q.Activities["total"]; ok {
		in.NestedActivityTotal, _ = pricing.ToFloat(total)
	}
	return in
}

// Recalculate refreshes the calculated block from the current inputs.
func (q *Quotation) Recalculate() {
	q.Calculated = pricing.ComputeTotals(q.PricingInput())
	q.Currency = q.Calculated.Currency
}
