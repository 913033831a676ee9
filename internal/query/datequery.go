package query

import (
	"fmt"
	"time"
)

// DateQuery is the temporal part of a question. It is one of NoDate,
// SingleDate or DateRange; switch on the concrete type.
type DateQuery interface {
	isDateQuery()
	String() string
}

// NoDate means the question carried no recognisable date; callers use the
// latest available data.
type NoDate struct{}

// SingleDate targets one calendar day.
type SingleDate struct {
	Date time.Time
}

// DateRange targets an inclusive span of calendar days.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (NoDate) isDateQuery()     {}
func (SingleDate) isDateQuery() {}
func (DateRange) isDateQuery()  {}

func (NoDate) String() string { return "latest" }

func (q SingleDate) String() string { return q.Date.Format(isoLayout) }

func (q DateRange) String() string {
	return fmt.Sprintf("%s..%s", q.From.Format(isoLayout), q.To.Format(isoLayout))
}

// Days returns the number of calendar days covered by the range.
func (q DateRange) Days() int {
	return int(q.To.Sub(q.From).Hours()/24) + 1
}

const isoLayout = "2006-01-02"

func civil(y int, m time.Month, d int) (time.Time, bool) {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || t.Month() != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func newRange(from, to time.Time) DateRange {
	if to.Before(from) {
		from, to = to, from
	}
	return DateRange{From: from, To: to}
}
