package insight

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"metalwatch/internal/query"
	"metalwatch/internal/storage"
)

const (
	currencySymbol = "₹"
	dateLayout     = "2 Jan 2006"
)

var hundred = decimal.NewFromInt(100)

// Money renders d as rupees with Indian digit grouping and 2 decimals,
// e.g. ₹1,23,456.70.
func Money(d decimal.Decimal) string {
	fixed := d.Round(2).StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	return sign + currencySymbol + groupIndian(whole) + "." + frac
}

func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	parts := make([]string, 0, len(head)/2+1)
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}

// Percent renders a signed percentage with 2 decimals, e.g. +0.66%.
func Percent(d decimal.Decimal) string {
	rounded := d.Round(2)
	if rounded.Sign() > 0 {
		return "+" + rounded.StringFixed(2) + "%"
	}
	return rounded.StringFixed(2) + "%"
}

// Date renders a calendar date as "25 Feb 2026".
func Date(t time.Time) string {
	return t.Format(dateLayout)
}

// DescribeQuery renders the requested period for messages.
func DescribeQuery(q query.DateQuery) string {
	switch dq := q.(type) {
	case query.SingleDate:
		return Date(dq.Date)
	case query.DateRange:
		return fmt.Sprintf("%s to %s", Date(dq.From), Date(dq.To))
	default:
		return "the latest date"
	}
}

// Label names a record, adding the carat for gold variants.
func Label(rec storage.PriceRecord) string {
	name := query.DisplayName(rec.Metal)
	if rec.Carat != "" {
		return name + " " + rec.Carat
	}
	return name
}

// evidenceRow renders every stored unit for one record.
func evidenceRow(rec storage.PriceRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s/g", Label(rec), Money(rec.PricePerGram))
	if rec.PricePerEightGrams.Valid {
		fmt.Fprintf(&b, " | %s/8g", Money(rec.PricePerEightGrams.Decimal))
	}
	if rec.PricePerKilogram.Valid {
		fmt.Fprintf(&b, " | %s/kg", Money(rec.PricePerKilogram.Decimal))
	}
	return b.String()
}

// joinList joins items as "a, b and c".
func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
