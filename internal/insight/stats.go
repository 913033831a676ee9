package insight

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"metalwatch/internal/resolver"
	"metalwatch/internal/storage"
)

// Direction classifies a price move.
type Direction string

const (
	Up        Direction = "UP"
	Down      Direction = "DOWN"
	Unchanged Direction = "UNCHANGED"
)

// Change is the move of one metal between two observations.
type Change struct {
	Label     string
	Old       decimal.Decimal
	New       decimal.Decimal
	Delta     decimal.Decimal // absolute, rounded to 2dp
	Pct       decimal.Decimal // signed, rounded to 2dp
	Direction Direction
}

// NewChange computes (new-old) and (new-old)/old*100, both rounded to 2dp.
func NewChange(label string, oldPrice, newPrice decimal.Decimal) Change {
	diff := newPrice.Sub(oldPrice)
	pct := decimal.Zero
	if !oldPrice.IsZero() {
		pct = diff.Div(oldPrice).Mul(hundred).Round(2)
	}

	dir := Unchanged
	switch diff.Round(2).Sign() {
	case 1:
		dir = Up
	case -1:
		dir = Down
	}

	return Change{
		Label:     label,
		Old:       oldPrice,
		New:       newPrice,
		Delta:     diff.Abs().Round(2),
		Pct:       pct,
		Direction: dir,
	}
}

// Point is one observation of a single-metal series.
type Point struct {
	Date  time.Time
	Price decimal.Decimal
}

// SeriesStats summarises a single-metal series.
type SeriesStats struct {
	Label  string
	Points []Point
	Min    Point
	Max    Point
	Change Change
}

// Series extracts metal's reference price from each day that has one.
func Series(days []resolver.Day, metal string) (string, []Point) {
	label := ""
	points := make([]Point, 0, len(days))
	for _, day := range days {
		rec, ok := day.Reference(metal)
		if !ok {
			continue
		}
		if label == "" {
			label = Label(rec)
		}
		points = append(points, Point{Date: day.Date, Price: rec.PricePerGram})
	}
	return label, points
}

// Summarise computes min, max and first-to-last change. Ties on min/max
// keep the earliest date. points must be non-empty.
func Summarise(label string, points []Point) SeriesStats {
	stats := SeriesStats{Label: label, Points: points, Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		if p.Price.LessThan(stats.Min.Price) {
			stats.Min = p
		}
		if p.Price.GreaterThan(stats.Max.Price) {
			stats.Max = p
		}
	}
	stats.Change = NewChange(label, points[0].Price, points[len(points)-1].Price)
	return stats
}

// Mean returns the arithmetic mean of the points rounded to 2dp.
func Mean(points []Point) decimal.Decimal {
	if len(points) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, p := range points {
		sum = sum.Add(p.Price)
	}
	return sum.Div(decimal.NewFromInt(int64(len(points)))).Round(2)
}

// RankEntry is one metal in a price ranking.
type RankEntry struct {
	Metal  string
	Record storage.PriceRecord
}

// Rank orders the reference record of every metal ascending by price per
// gram, breaking ties by metal code.
func Rank(day resolver.Day, metals []string) []RankEntry {
	entries := make([]RankEntry, 0, len(metals))
	for _, metal := range metals {
		if rec, ok := day.Reference(metal); ok {
			entries = append(entries, RankEntry{Metal: metal, Record: rec})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Record.PricePerGram, entries[j].Record.PricePerGram
		if !a.Equal(b) {
			return a.LessThan(b)
		}
		return entries[i].Metal < entries[j].Metal
	})
	return entries
}
