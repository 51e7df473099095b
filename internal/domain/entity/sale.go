package entity

import (
	"time"

	"card_pricer/internal/domain/value"
)

// Listing: сырая строка выдачи маркетплейса, ещё не провалидированная.
type Listing struct {
	Title      string `json:"title"`
	Price      string `json:"price"`
	Shipping   string `json:"shipping"`
	SoldDate   string `json:"sold_date"`
	ListingURL string `json:"listing_url"`
	ImageURL   string `json:"image_url"`
}

// Sale: нормализованная продажа. Price всегда > 0 и включает доставку.
type Sale struct {
	Title      string      `json:"title"`
	Price      float64     `json:"price"`
	ItemPrice  float64     `json:"item_price"`
	Shipping   float64     `json:"shipping"`
	SoldDate   time.Time   `json:"sold_date"`
	DaysAgo    int         `json:"days_ago"`
	ListingURL string      `json:"listing_url,omitempty"`
	ImageURL   string      `json:"image_url,omitempty"`
	Grade      value.Grade `json:"grade"`
	Serial     int         `json:"serial,omitempty"`
}

// Diagnostics: счётчики отброшенных при нормализации объявлений.
type Diagnostics struct {
	Listings       int `json:"listings"`
	Accepted       int `json:"accepted"`
	Malformed      int `json:"malformed"`
	BadPrice       int `json:"bad_price"`
	BadDate        int `json:"bad_date"`
	GradeMismatch  int `json:"grade_mismatch"`
	SerialMismatch int `json:"serial_mismatch"`
	OtherCard      int `json:"other_card"`
	Lots           int `json:"lots"`
}

func (d Diagnostics) Add(o Diagnostics) Diagnostics {
	return Diagnostics{
		Listings:       d.Listings + o.Listings,
		Accepted:       d.Accepted + o.Accepted,
		Malformed:      d.Malformed + o.Malformed,
		BadPrice:       d.BadPrice + o.BadPrice,
		BadDate:        d.BadDate + o.BadDate,
		GradeMismatch:  d.GradeMismatch + o.GradeMismatch,
		SerialMismatch: d.SerialMismatch + o.SerialMismatch,
		OtherCard:      d.OtherCard + o.OtherCard,
		Lots:           d.Lots + o.Lots,
	}
}

func (d Diagnostics) Rejected() int {
	return d.Listings - d.Accepted
}
