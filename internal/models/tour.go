package models

import (
	"time"

	"nguide/admin/internal/pricing"
)

const (
	TourStatusDraft     = "draft"
	TourStatusPublished = "published"
)

// DefaultMaxGuests applies when a tour does not set its capacity.
const DefaultMaxGuests = 10

// DayPlanItem is one scheduled activity of a tour day.
type DayPlanItem struct {
	Time string `bson:"time" json:"time"`
	Name string `bson:"name" json:"name"`
}

// DayPlan is the program of one tour day.
type DayPlan struct {
	Day   int           `bson:"day" json:"day"`
	Title string        `bson:"title" json:"title"`
	Items []DayPlanItem `bson:"items" json:"items"`
}

// Tour is a published or draft tour package.
type Tour struct {
	ID          int64         `bson:"_id" json:"id"`
	Title       string        `bson:"title" json:"title"`
	Slug        string        `bson:"slug,omitempty" json:"slug"`
	Status      string        `bson:"status" json:"status"`
	Country     string        `bson:"country,omitempty" json:"country,omitempty"`
	CountryCode string        `bson:"country_code" json:"countryCode"`
	Attractions []interface{} `bson:"attractions" json:"attractions"`
	Purpose     string        `bson:"purpose" json:"purpose"`
	DateStart   string        `bson:"date_start" json:"dateStart"`
	DateEnd     string        `bson:"date_end" json:"dateEnd"`

	AccommodationName string `bson:"accommodation_name" json:"-"`
	RoomType          string `bson:"room_type" json:"-"`
	ChildRoomType     string `bson:"child_room_type" json:"-"`

	DayPlans      []DayPlan     `bson:"day_plans" json:"dayPlans"`
	IncludedItems []interface{} `bson:"included_items" json:"includedItems"`
	ExcludedItems []interface{} `bson:"excluded_items" json:"excludedItems"`

	PackagePrice    float64 `bson:"package_price" json:"packagePrice"`
	DiscountPercent float64 `bson:"discount_percent" json:"discountPercent"`
	AdditionalCost  float64 `bson:"additional_cost" json:"additionalCost"`

	Gallery   []interface{} `bson:"gallery" json:"gallery"`
	Notes     string        `bson:"notes,omitempty" json:"notes,omitempty"`
	MaxGuests int           `bson:"max_guests" json:"maxGuests"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// TourView adds the derived duration and nested accommodation.
type TourView struct {
	Tour
	Days          int               `json:"days"`
	Nights        int               `json:"nights"`
	Accommodation AccommodationView `json:"accommodation"`
}

// DaysNights returns the inclusive day count and the night count of a date
// range. A same-day tour is 1 day and 0 nights.
func DaysNights(dateStart, dateEnd string) (days, nights int) {
	if _, ok := pricing.ParseDate(dateStart); !ok {
		return 0, 0
	}
	if _, ok := pricing.ParseDate(dateEnd); !ok {
		return 0, 0
	}
	nights = pricing.Nights(dateStart, dateEnd)
	return nights + 1, nights
}

// ToView renders the frontend document.
func (t *Tour) ToView() TourView {
	days, nights := DaysNights(t.DateStart, t.DateEnd)
	view := TourView{
		Tour:   *t,
		Days:   days,
		Nights: nights,
		Accommodation: AccommodationView{
			Name:          t.AccommodationName,
			RoomType:      t.RoomType,
			ChildRoomType: t.ChildRoomType,
		},
	}
	if view.MaxGuests == 0 {
		view.MaxGuests = DefaultMaxGuests
	}
	view.Attractions = nonNilSlice(view.Attractions)
	view.IncludedItems = nonNilSlice(view.IncludedItems)
	view.ExcludedItems = nonNilSlice(view.ExcludedItems)
	view.Gallery = nonNilSlice(view.Gallery)
	if view.DayPlans == nil {
		view.DayPlans = []DayPlan{}
	}
	return view
}
