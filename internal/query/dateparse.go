package query

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	weekDays  = 7
	monthDays = 30
	maxNDays  = 366
)

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// yearPattern only admits 1900-2099 so quantities like "1000 grams" are not
// read as years.
const yearPattern = `(?:19|20)\d{2}`

// Shared date shapes. Each is compiled twice: unanchored for scanning a whole
// question and anchored for the sides of a from/to range.
const (
	isoPattern      = `(` + yearPattern + `)[-/](\d{1,2})[-/](\d{1,2})\b`
	dmyPattern      = `(\d{1,2})[-/](\d{1,2})[-/](` + yearPattern + `)\b`
	dayMonthPattern = `(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?([a-z]+)\.?(?:,?\s*(` + yearPattern + `)\b)?`
	monthDayPattern = `([a-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s*(` + yearPattern + `)\b)?`
)

var (
	reToday       = regexp.MustCompile(`\btoday\b`)
	reYesterday   = regexp.MustCompile(`\byesterday\b`)
	reWeek        = regexp.MustCompile(`\b(?:last|past|this)\s+week\b`)
	reThisMonth   = regexp.MustCompile(`\bthis\s+month\b`)
	reLastMonth   = regexp.MustCompile(`\b(?:last|past)\s+month\b`)
	reLastNDays   = regexp.MustCompile(`\b(?:last|past)\s+(\d{1,3})\s+days?\b`)
	reFromTo      = regexp.MustCompile(`\bfrom\s+(.+?)\s+(?:to|till|until)\s+(.+)$`)
	reBetweenAnd  = regexp.MustCompile(`\bbetween\s+(.+?)\s+and\s+(.+)$`)
	reDayMonth    = regexp.MustCompile(`\b` + dayMonthPattern)
	reMonthDay    = regexp.MustCompile(`\b` + monthDayPattern)
	reISO         = regexp.MustCompile(`\b` + isoPattern)
	reDMY         = regexp.MustCompile(`\b` + dmyPattern)
	reInMonth     = regexp.MustCompile(`\bin\s+([a-z]+)(?:\s+(` + yearPattern + `))?\b`)
	reSideISO     = regexp.MustCompile(`^` + isoPattern)
	reSideDMY     = regexp.MustCompile(`^` + dmyPattern)
	reSideDayMon  = regexp.MustCompile(`^` + dayMonthPattern)
	reSideMonDay  = regexp.MustCompile(`^` + monthDayPattern)
	reSideArticle = regexp.MustCompile(`^(?:the|on)\s+`)
)

type dateRule struct {
	name  string
	match func(text string, today time.Time) (DateQuery, bool)
}

// dateRules is evaluated top to bottom; the first rule that matches wins.
var dateRules = []dateRule{
	{"relative-day", matchRelativeDay},
	{"week", matchWeek},
	{"this-month", matchThisMonth},
	{"last-month", matchLastMonth},
	{"last-n-days", matchLastNDays},
	{"explicit-range", matchExplicitRange},
	{"day-month", matchDayMonth},
	{"month-day", matchMonthDay},
	{"iso", matchISO},
	{"day-first", matchDayFirst},
	{"in-month", matchInMonth},
}

// Parser turns free text into a DateQuery relative to an injected clock.
type Parser struct {
	now func() time.Time
	loc *time.Location
}

// NewParser builds a Parser. "Today" is the civil date of now() in loc.
func NewParser(loc *time.Location, now func() time.Time) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Parser{now: now, loc: loc}
}

// Today returns the current civil date at 00:00 UTC.
func (p *Parser) Today() time.Time {
	y, m, d := p.now().In(p.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Parse extracts the date or range referenced by text.
func (p *Parser) Parse(text string) DateQuery {
	q, _ := p.ParseRule(text)
	return q
}

// ParseRule is Parse that also reports which rule matched ("" for none).
func (p *Parser) ParseRule(text string) (DateQuery, string) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	today := p.Today()
	for _, rule := range dateRules {
		if q, ok := rule.match(normalized, today); ok {
			return q, rule.name
		}
	}
	return NoDate{}, ""
}

// Trailing returns the n calendar days ending on end, inclusive.
func Trailing(end time.Time, n int) DateRange {
	if n < 1 {
		n = 1
	}
	return DateRange{From: end.AddDate(0, 0, -(n - 1)), To: end}
}

func matchRelativeDay(text string, today time.Time) (DateQuery, bool) {
	if reToday.MatchString(text) {
		return SingleDate{Date: today}, true
	}
	if reYesterday.MatchString(text) {
		return SingleDate{Date: today.AddDate(0, 0, -1)}, true
	}
	return nil, false
}

func matchWeek(text string, today time.Time) (DateQuery, bool) {
	if reWeek.MatchString(text) {
		return Trailing(today, weekDays), true
	}
	return nil, false
}

func matchThisMonth(text string, today time.Time) (DateQuery, bool) {
	if reThisMonth.MatchString(text) {
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return DateRange{From: first, To: today}, true
	}
	return nil, false
}

func matchLastMonth(text string, today time.Time) (DateQuery, bool) {
	if reLastMonth.MatchString(text) {
		return Trailing(today, monthDays), true
	}
	return nil, false
}

func matchLastNDays(text string, today time.Time) (DateQuery, bool) {
	m := reLastNDays.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > maxNDays {
		return nil, false
	}
	return Trailing(today, n), true
}

func matchExplicitRange(text string, today time.Time) (DateQuery, bool) {
	for _, re := range []*regexp.Regexp{reFromTo, reBetweenAnd} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		from, ok := parseSide(m[1], today)
		if !ok {
			continue
		}
		to, ok := parseSide(m[2], today)
		if !ok {
			continue
		}
		return newRange(from, to), true
	}
	return nil, false
}

func matchDayMonth(text string, today time.Time) (DateQuery, bool) {
	for _, m := range reDayMonth.FindAllStringSubmatch(text, -1) {
		if d, ok := dayMonthYear(m[1], m[2], m[3], today); ok {
			return SingleDate{Date: d}, true
		}
	}
	return nil, false
}

func matchMonthDay(text string, today time.Time) (DateQuery, bool) {
	for _, m := range reMonthDay.FindAllStringSubmatch(text, -1) {
		if d, ok := dayMonthYear(m[2], m[1], m[3], today); ok {
			return SingleDate{Date: d}, true
		}
	}
	return nil, false
}

func matchISO(text string, _ time.Time) (DateQuery, bool) {
	for _, m := range reISO.FindAllStringSubmatch(text, -1) {
		if d, ok := numericDate(m[1], m[2], m[3]); ok {
			return SingleDate{Date: d}, true
		}
	}
	return nil, false
}

func matchDayFirst(text string, _ time.Time) (DateQuery, bool) {
	for _, m := range reDMY.FindAllStringSubmatch(text, -1) {
		if d, ok := numericDate(m[3], m[2], m[1]); ok {
			return SingleDate{Date: d}, true
		}
	}
	return nil, false
}

func matchInMonth(text string, today time.Time) (DateQuery, bool) {
	for _, m := range reInMonth.FindAllStringSubmatch(text, -1) {
		month, ok := monthNames[m[1]]
		if !ok {
			continue
		}
		year := today.Year()
		if m[2] != "" {
			year, _ = strconv.Atoi(m[2])
		}
		first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		return DateRange{From: first, To: first.AddDate(0, 1, -1)}, true
	}
	return nil, false
}

// parseSide reads a single date at the start of one side of a range.
func parseSide(side string, today time.Time) (time.Time, bool) {
	side = strings.TrimSpace(side)
	side = reSideArticle.ReplaceAllString(side, "")

	if m := reSideISO.FindStringSubmatch(side); m != nil {
		return numericDate(m[1], m[2], m[3])
	}
	if m := reSideDMY.FindStringSubmatch(side); m != nil {
		return numericDate(m[3], m[2], m[1])
	}
	if m := reSideDayMon.FindStringSubmatch(side); m != nil {
		return dayMonthYear(m[1], m[2], m[3], today)
	}
	if m := reSideMonDay.FindStringSubmatch(side); m != nil {
		return dayMonthYear(m[2], m[1], m[3], today)
	}
	return time.Time{}, false
}

func dayMonthYear(dayStr, monthStr, yearStr string, today time.Time) (time.Time, bool) {
	month, ok := monthNames[monthStr]
	if !ok {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return time.Time{}, false
	}
	year := today.Year()
	if yearStr != "" {
		if year, err = strconv.Atoi(yearStr); err != nil {
			return time.Time{}, false
		}
	}
	return civil(year, month, day)
}

func numericDate(yearStr, monthStr, dayStr string) (time.Time, bool) {
	year, err1 := strconv.Atoi(yearStr)
	month, err2 := strconv.Atoi(monthStr)
	day, err3 := strconv.Atoi(dayStr)
	if err1 != nil || err2 != nil || err3 != nil || month < 1 || month > 12 {
		return time.Time{}, false
	}
	return civil(year, time.Month(month), day)
}
