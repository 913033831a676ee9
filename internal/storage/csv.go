package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CSVHeader is the column layout read by LoadCSV and written by exports.
var CSVHeader = []string{"date", "metal", "carat", "price_per_gram", "price_per_eight_grams", "price_per_kilogram"}

// LoadCSV reads price records in CSVHeader layout. Dates are YYYY-MM-DD;
// carat and the two optional unit columns may be blank.
func LoadCSV(r io.Reader) ([]PriceRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var out []PriceRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		rec, err := parseRow(row, index)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		out = append(out, rec)
	}
}

// CSVRow renders rec in CSVHeader layout.
func CSVRow(rec PriceRecord) []string {
	return []string{
		rec.Date.Format("2006-01-02"),
		rec.Metal,
		rec.Carat,
		rec.PricePerGram.StringFixed(2),
		nullString(rec.PricePerEightGrams),
		nullString(rec.PricePerKilogram),
	}
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range CSVHeader[:4] {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("csv header missing %q", required)
		}
	}
	return index, nil
}

func parseRow(row []string, index map[string]int) (PriceRecord, error) {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	day, err := time.Parse("2006-01-02", field("date"))
	if err != nil {
		return PriceRecord{}, fmt.Errorf("parse date: %w", err)
	}
	metal := strings.ToUpper(field("metal"))
	if metal == "" {
		return PriceRecord{}, errors.New("metal is empty")
	}
	perGram, err := decimal.NewFromString(field("price_per_gram"))
	if err != nil {
		return PriceRecord{}, fmt.Errorf("parse price_per_gram: %w", err)
	}
	if !perGram.IsPositive() {
		return PriceRecord{}, fmt.Errorf("price_per_gram must be positive, got %s", perGram)
	}

	rec := PriceRecord{
		Date:         day,
		Metal:        metal,
		Carat:        strings.ToUpper(field("carat")),
		PricePerGram: perGram,
	}
	if rec.PricePerEightGrams, err = parseOptional(field("price_per_eight_grams")); err != nil {
		return PriceRecord{}, fmt.Errorf("parse price_per_eight_grams: %w", err)
	}
	if rec.PricePerKilogram, err = parseOptional(field("price_per_kilogram")); err != nil {
		return PriceRecord{}, fmt.Errorf("parse price_per_kilogram: %w", err)
	}
	return rec, nil
}

func parseOptional(v string) (decimal.NullDecimal, error) {
	if v == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}
