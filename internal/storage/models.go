package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceRecord is one (metal, carat, date) observation written by ingestion.
// Carat is empty for metals that carry a single record per day.
type PriceRecord struct {
	Date               time.Time
	Metal              string
	Carat              string
	PricePerGram       decimal.Decimal
	PricePerEightGrams decimal.NullDecimal
	PricePerKilogram   decimal.NullDecimal
	CreatedAt          time.Time
}

// Day truncates t to the 00:00 UTC instant of its civil date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
