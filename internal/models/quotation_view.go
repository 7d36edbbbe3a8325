package models

import (
	"time"

	"nguide/admin/internal/pricing"
)

// QuotationView is the nested document shape the admin frontend consumes.
type QuotationView struct {
	ID              int64         `json:"id"`
	QuotationNumber string        `json:"quotationNumber"`
	Status          string        `json:"status"`
	CountryCode     string        `json:"countryCode"`
	Attractions     []interface{} `json:"attractions"`
	Purpose         string        `json:"purpose"`
	DateStart       string        `json:"dateStart"`
	DateEnd         string        `json:"dateEnd"`
	Nights          int           `json:"nights"`

	Customer      CustomerView      `json:"customer"`
	Travelers     TravelersView     `json:"travelers"`
	UnitPrices    UnitPricesView    `json:"unitPrices"`
	Accommodation AccommodationView `json:"accommodation"`
	Rooms         RoomsView         `json:"rooms"`
	Flight        FlightView        `json:"flight"`
	Food          FoodView          `json:"food"`
	Package       PackageView       `json:"package"`
	Lists         ListsView         `json:"lists"`
	Additional    string            `json:"additional,omitempty"`
	Calculated    CalculatedView    `json:"calculated"`
	Currency      string            `json:"currency"`

	Activities map[string]interface{} `json:"activities,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	CreatedBy string     `json:"createdBy,omitempty"`
	UpdatedBy string     `json:"updatedBy,omitempty"`
	DeletedAt *time.Time `json:"deletedAt"`
}

type CustomerView struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	CallTime string `json:"callTime,omitempty"`
}

type TravelersView struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

type UnitPricesView struct {
	PricePerAdult  float64 `json:"pricePerAdult"`
	PricePerChild  float64 `json:"pricePerChild"`
	PricePerInfant float64 `json:"pricePerInfant"`
}

type AccommodationView struct {
	Name          string `json:"name"`
	RoomType      string `json:"roomType"`
	ChildRoomType string `json:"childRoomType"`
}

type RoomsView struct {
	AdultRooms     int     `json:"adultRooms"`
	ChildRooms     int     `json:"childRooms"`
	AdultRoomPrice float64 `json:"adultRoomPrice"`
	ChildRoomPrice float64 `json:"childRoomPrice"`
}

// FlightView omits unset prices and the infant mode when not applicable.
type FlightView struct {
	Included        bool     `json:"included"`
	AdultPrice      *float64 `json:"adultPrice,omitempty"`
	ChildPrice      *float64 `json:"childPrice,omitempty"`
	InfantType      string   `json:"infantType,omitempty"`
	InfantSeatPrice *float64 `json:"infantSeatPrice,omitempty"`
	InfantLapPrice  *float64 `json:"infantLapPrice,omitempty"`
}

type FoodView struct {
	MealOptions []interface{}  `json:"mealOptions"`
	Totals      FoodTotalsView `json:"totals"`
}

type FoodTotalsView struct {
	Breakfast      float64 `json:"breakfast"`
	Lunch          float64 `json:"lunch"`
	Dinner         float64 `json:"dinner"`
	TotalFoodPrice float64 `json:"totalFoodPrice"`
}

type PackageView struct {
	PackagePrice    float64 `json:"packagePrice"`
	DiscountPercent float64 `json:"discountPercent"`
	AdditionalCost  float64 `json:"additionalCost"`
}

type ListsView struct {
	IncludedItems []interface{} `json:"includedItems"`
	ExcludedItems []interface{} `json:"excludedItems"`
}

type CalculatedView struct {
	TravelerTotal   float64 `json:"travelerTotal"`
	RoomTotal       float64 `json:"roomTotal"`
	FlightTotal     float64 `json:"flightTotal"`
	FoodTotal       float64 `json:"foodTotal"`
	ActivityTotal   float64 `json:"activityTotal"`
	Subtotal        float64 `json:"subtotal"`
	DiscountPercent float64 `json:"discountPercent"`
	DiscountAmount  float64 `json:"discountAmount"`
	AdditionalCost  float64 `json:"additionalCost"`
	GrandTotal      float64 `json:"grandTotal"`
}

// ToView renders the frontend document. Sharing state is never included.
func (q *Quotation) ToView() QuotationView {
	status := q.Status
	if status == QuotationStatusWaiting {
		status = QuotationStatusWriting
	}
	currency := q.Currency
	if currency == "" {
		currency = q.Calculated.Currency
	}
	if currency == "" {
		currency = "THB"
	}

	return QuotationView{
		ID:              q.ID,
		QuotationNumber: q.QuotationNumber,
		Status:          status,
		CountryCode:     q.CountryCode,
		Attractions:     nonNilSlice(q.Attractions),
		Purpose:         q.Purpose,
		DateStart:       q.DateStart,
		DateEnd:         q.DateEnd,
		Nights:          nightsOf(q),
		Customer: CustomerView{
			Name:     q.CustomerName,
			Email:    q.CustomerEmail,
			Phone:    q.CustomerPhone,
			CallTime: q.CustomerCallTime,
		},
		Travelers: TravelersView{
			Adults:   q.Adults,
			Children: q.Children,
			Infants:  q.Infants,
		},
		UnitPrices: UnitPricesView{
			PricePerAdult:  q.PricePerAdult,
			PricePerChild:  q.PricePerChild,
			PricePerInfant: q.PricePerInfant,
		},
		Accommodation: AccommodationView{
			Name:          q.Accommodation,
			RoomType:      q.RoomType,
			ChildRoomType: q.ChildRoomType,
		},
		Rooms: RoomsView{
			AdultRooms:     q.AdultRooms,
			ChildRooms:     q.ChildRooms,
			AdultRoomPrice: q.AdultRoomPrice,
			ChildRoomPrice: q.ChildRoomPrice,
		},
		Flight: FlightView{
			Included:        q.FlightIncluded,
			AdultPrice:      positiveOrNil(q.FlightAdultPrice),
			ChildPrice:      positiveOrNil(q.FlightChildPrice),
			InfantType:      q.FlightInfantType,
			InfantSeatPrice: positiveOrNil(q.FlightInfantSeatPrice),
			InfantLapPrice:  positiveOrNil(q.FlightInfantLapPrice),
		},
		Food: FoodView{
			MealOptions: nonNilSlice(q.MealOptions),
			Totals: FoodTotalsView{
				Breakfast:      q.BreakfastTotal,
				Lunch:          q.LunchTotal,
				Dinner:         q.DinnerTotal,
				TotalFoodPrice: q.TotalFoodPrice,
			},
		},
		Activities: q.Activities,
		Package: PackageView{
			PackagePrice:    q.PackagePrice,
			DiscountPercent: q.DiscountPercent,
			AdditionalCost:  q.AdditionalCost,
		},
		Lists: ListsView{
			IncludedItems: nonNilSlice(q.IncludedItems),
			ExcludedItems: nonNilSlice(q.ExcludedItems),
		},
		Additional: q.Additional,
		Calculated: CalculatedView{
			TravelerTotal:   q.Calculated.TravelerTotal,
			RoomTotal:       q.Calculated.RoomTotal,
			FlightTotal:     q.Calculated.FlightTotal,
			FoodTotal:       q.TotalFoodPrice,
			ActivityTotal:   q.Calculated.ActivityTotal,
			Subtotal:        q.Calculated.Subtotal,
			DiscountPercent: q.DiscountPercent,
			DiscountAmount:  q.Calculated.DiscountAmount,
			AdditionalCost:  q.AdditionalCost,
			GrandTotal:      q.Calculated.FinalPrice,
		},
		Currency:  currency,
		CreatedAt: q.CreatedAt,
		UpdatedAt: q.UpdatedAt,
		CreatedBy: q.CreatedBy,
		UpdatedBy: q.UpdatedBy,
		DeletedAt: q.DeletedAt,
	}
}

func nightsOf(q *Quotation) int {
	return pricing.Nights(q.DateStart, q.DateEnd)
}

func positiveOrNil(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

func nonNilSlice(v []interface{}) []interface{} {
	if v == nil {
		return []interface{}{}
	}
	return v
}
