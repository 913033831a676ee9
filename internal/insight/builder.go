package insight

import (
	"fmt"
	"strings"
	"time"

	"metalwatch/internal/query"
	"metalwatch/internal/resolver"
	"metalwatch/internal/storage"
)

// Context is the evidence for one question plus, when the numbers settle
// the question on their own, a fully computed suggested answer.
type Context struct {
	Intent    query.Intent
	AsOf      time.Time
	Evidence  []string
	Suggested string
}

// HasSuggestion reports whether a suggested answer was computed.
func (c Context) HasSuggestion() bool { return c.Suggested != "" }

// EvidenceText joins the evidence lines.
func (c Context) EvidenceText() string { return strings.Join(c.Evidence, "\n") }

// Fallback is the text returned when no generated answer is available.
func (c Context) Fallback() string {
	if c.HasSuggestion() {
		return c.Suggested
	}
	return c.EvidenceText()
}

func (c *Context) add(format string, args ...interface{}) {
	c.Evidence = append(c.Evidence, fmt.Sprintf(format, args...))
}

// wanted returns the metals a builder should report on: the explicit
// selection, or everything present in the given days.
func wanted(sel query.Selection, days ...resolver.Day) []string {
	if !sel.All() {
		return sel
	}
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, day := range days {
		for _, metal := range day.Metals() {
			if _, ok := seen[metal]; ok {
				continue
			}
			seen[metal] = struct{}{}
			out = append(out, metal)
		}
	}
	return out
}

// BuildPrice reports direct lookups: one day, or every day of a range.
func BuildPrice(res resolver.Resolution, sel query.Selection) Context {
	if _, isRange := res.Requested.(query.DateRange); isRange {
		return buildPriceRange(res, sel)
	}

	day := res.Last()
	c := Context{Intent: query.IntentPrice, AsOf: day.Date}
	c.add("Prices on %s:", Date(day.Date))
	if res.Fallback {
		c.add("No data was recorded for %s; %s is the most recent date within the search window.", DescribeQuery(res.Requested), Date(day.Date))
	}

	parts := make([]string, 0)
	missing := make([]string, 0)
	for _, metal := range wanted(sel, day) {
		variants := day.Variants(metal)
		if len(variants) == 0 {
			missing = append(missing, query.DisplayName(metal))
			continue
		}
		for _, rec := range variants {
			c.add("%s", evidenceRow(rec))
		}
		parts = append(parts, describeVariants(variants))
	}

	var b strings.Builder
	if res.Fallback {
		fmt.Fprintf(&b, "I don't have prices for %s, so here is the closest recent date. ", DescribeQuery(res.Requested))
	}
	fmt.Fprintf(&b, "On %s, %s.", Date(day.Date), joinList(parts))
	if len(missing) > 0 {
		fmt.Fprintf(&b, " No %s price was recorded that day.", joinList(missing))
		c.add("Missing on %s: %s", Date(day.Date), strings.Join(missing, ", "))
	}
	c.Suggested = b.String()
	return c
}

func describeVariants(variants []storage.PriceRecord) string {
	first := variants[0]
	if first.Carat == "" {
		return fmt.Sprintf("%s is %s/g", query.DisplayName(first.Metal), Money(first.PricePerGram))
	}
	items := make([]string, 0, len(variants))
	for i, rec := range variants {
		if i == 0 {
			items = append(items, fmt.Sprintf("%s %s is %s/g", query.DisplayName(rec.Metal), rec.Carat, Money(rec.PricePerGram)))
			continue
		}
		items = append(items, fmt.Sprintf("%s %s/g", rec.Carat, Money(rec.PricePerGram)))
	}
	return strings.Join(items, ", ")
}

func buildPriceRange(res resolver.Resolution, sel query.Selection) Context {
	first, last := res.First(), res.Last()
	c := Context{Intent: query.IntentPrice, AsOf: last.Date}
	c.add("Prices from %s to %s (%d days with data):", Date(first.Date), Date(last.Date), len(res.Days))
	for _, day := range res.Days {
		for _, rec := range day.Records {
			if !sel.All() && !sel.Contains(rec.Metal) {
				continue
			}
			c.add("%s %s", Date(day.Date), evidenceRow(rec))
		}
	}

	parts := make([]string, 0)
	for _, metal := range wanted(sel, res.Days...) {
		label, points := Series(res.Days, metal)
		if len(points) == 0 {
			continue
		}
		stats := Summarise(label, points)
		latest := points[len(points)-1]
		parts = append(parts, fmt.Sprintf("%s ranged from %s/g to %s/g and was %s/g on %s",
			label, Money(stats.Min.Price), Money(stats.Max.Price), Money(latest.Price), Date(latest.Date)))
	}
	c.Suggested = fmt.Sprintf("Between %s and %s, %s.", Date(first.Date), Date(last.Date), strings.Join(parts, "; "))
	return c
}

// BuildCompare reports per-metal moves from base to target.
func BuildCompare(base, target resolver.Day, sel query.Selection) Context {
	c := Context{Intent: query.IntentCompare, AsOf: target.Date}
	c.add("Comparison of %s against %s:", Date(target.Date), Date(base.Date))

	parts := make([]string, 0)
	for _, metal := range wanted(sel, base, target) {
		oldRec, okOld := base.Reference(metal)
		newRec, okNew := target.Reference(metal)
		if !okOld || !okNew {
			c.add("%s: not available on both dates", query.DisplayName(metal))
			continue
		}
		ch := NewChange(Label(newRec), oldRec.PricePerGram, newRec.PricePerGram)
		c.add("%s: %s/g on %s -> %s/g on %s, %s %s (%s)",
			ch.Label, Money(ch.Old), Date(base.Date), Money(ch.New), Date(target.Date), ch.Direction, Money(ch.Delta), Percent(ch.Pct))
		parts = append(parts, describeChange(ch))
	}

	if len(parts) == 0 {
		c.Suggested = fmt.Sprintf("I couldn't find the same metals on both %s and %s to compare.", Date(base.Date), Date(target.Date))
		return c
	}
	c.Suggested = fmt.Sprintf("Compared with %s, on %s %s.", Date(base.Date), Date(target.Date), joinList(parts))
	return c
}

func describeChange(ch Change) string {
	if ch.Direction == Unchanged {
		return fmt.Sprintf("%s is UNCHANGED at %s/g", ch.Label, Money(ch.New))
	}
	return fmt.Sprintf("%s is %s %s (%s) at %s/g", ch.Label, ch.Direction, Money(ch.Delta), Percent(ch.Pct), Money(ch.New))
}

// BuildTrend summarises the series of one metal over days.
func BuildTrend(days []resolver.Day, metal string) Context {
	c := Context{Intent: query.IntentTrend}
	label, points := Series(days, metal)
	if len(points) == 0 {
		c.Suggested = fmt.Sprintf("I don't have any %s prices for that period.", query.DisplayName(metal))
		return c
	}

	stats := Summarise(label, points)
	first, last := points[0], points[len(points)-1]
	c.AsOf = last.Date
	c.add("%s per gram, %s to %s:", label, Date(first.Date), Date(last.Date))
	for _, p := range points {
		c.add("%s: %s/g", Date(p.Date), Money(p.Price))
	}
	c.add("Low %s/g on %s; high %s/g on %s", Money(stats.Min.Price), Date(stats.Min.Date), Money(stats.Max.Price), Date(stats.Max.Date))

	if len(points) == 1 {
		c.Suggested = fmt.Sprintf("I only have one %s price in that period: %s/g on %s.", label, Money(last.Price), Date(last.Date))
		return c
	}

	ch := stats.Change
	move := fmt.Sprintf("%s %s (%s)", ch.Direction, Money(ch.Delta), Percent(ch.Pct))
	if ch.Direction == Unchanged {
		move = "UNCHANGED"
	}
	c.add("Change: %s", move)
	c.Suggested = fmt.Sprintf("From %s to %s, %s moved from %s/g to %s/g, %s. The low was %s/g on %s and the high was %s/g on %s.",
		Date(first.Date), Date(last.Date), label, Money(first.Price), Money(last.Price), move,
		Money(stats.Min.Price), Date(stats.Min.Date), Money(stats.Max.Price), Date(stats.Max.Date))
	return c
}

// BuildAverage reports the mean reference price of one metal over days.
func BuildAverage(days []resolver.Day, metal string) Context {
	c := Context{Intent: query.IntentAverage}
	label, points := Series(days, metal)
	if len(points) == 0 {
		c.Suggested = fmt.Sprintf("I don't have any %s prices for that period.", query.DisplayName(metal))
		return c
	}

	first, last := points[0], points[len(points)-1]
	mean := Mean(points)
	c.AsOf = last.Date
	c.add("%s per gram, %s to %s:", label, Date(first.Date), Date(last.Date))
	for _, p := range points {
		c.add("%s: %s/g", Date(p.Date), Money(p.Price))
	}
	c.add("Average: %s/g over %d data points", Money(mean), len(points))
	c.Suggested = fmt.Sprintf("The average %s price from %s to %s was %s/g across %d data points.",
		label, Date(first.Date), Date(last.Date), Money(mean), len(points))
	return c
}

// BuildRank orders metals on one day from cheapest to most expensive.
func BuildRank(day resolver.Day, sel query.Selection) Context {
	c := Context{Intent: query.IntentRank, AsOf: day.Date}
	entries := Rank(day, wanted(sel, day))
	if len(entries) == 0 {
		c.Suggested = fmt.Sprintf("I don't have prices to rank on %s.", Date(day.Date))
		return c
	}

	c.add("Ranking by price per gram on %s (gold uses %s):", Date(day.Date), query.ReferenceCarat)
	items := make([]string, 0, len(entries))
	for i, e := range entries {
		c.add("%d. %s", i+1, evidenceRow(e.Record))
		items = append(items, fmt.Sprintf("%d. %s %s/g", i+1, Label(e.Record), Money(e.Record.PricePerGram)))
	}

	cheapest, dearest := entries[0], entries[len(entries)-1]
	if len(entries) == 1 {
		c.Suggested = fmt.Sprintf("On %s, only %s has a price: %s/g.", Date(day.Date), Label(cheapest.Record), Money(cheapest.Record.PricePerGram))
		return c
	}
	c.Suggested = fmt.Sprintf("On %s, from cheapest to most expensive per gram: %s. The cheapest is %s and the most expensive is %s.",
		Date(day.Date), strings.Join(items, ", "), query.DisplayName(cheapest.Metal), query.DisplayName(dearest.Metal))
	return c
}

// BuildCarats explains gold purity labels, with prices when a day is given.
func BuildCarats(day *resolver.Day) Context {
	c := Context{Intent: query.IntentCarats}
	items := make([]string, 0, len(query.Purities))
	for _, p := range query.Purities {
		pct := p.Multiplier.Mul(hundred).StringFixed(1)
		c.add("%s: %s%% pure gold (multiplier %s)", p.Carat, pct, p.Multiplier.StringFixed(3))
		items = append(items, fmt.Sprintf("%s is %s%% pure", p.Carat, pct))
	}
	c.Suggested = fmt.Sprintf("Gold purity is measured in carats: %s. Lower carats mix in other metals for strength.", joinList(items))

	if day != nil {
		variants := day.Variants(query.Gold)
		if len(variants) > 0 {
			c.AsOf = day.Date
			for _, rec := range variants {
				c.add("%s %s", Date(day.Date), evidenceRow(rec))
			}
			c.Suggested += fmt.Sprintf(" On %s, %s.", Date(day.Date), describeVariants(variants))
		}
	}
	return c
}

// BuildDateRange reports the span of stored data.
func BuildDateRange(cov resolver.Coverage) Context {
	c := Context{Intent: query.IntentDateRange}
	if !cov.Known {
		c.add("No price data stored")
		c.Suggested = "No price data has been recorded yet."
		return c
	}
	c.AsOf = cov.Newest
	c.add("Oldest date: %s", Date(cov.Oldest))
	c.add("Newest date: %s", Date(cov.Newest))
	c.Suggested = fmt.Sprintf("Price data is available from %s to %s.", Date(cov.Oldest), Date(cov.Newest))
	return c
}

// HelpText lists what the assistant can answer.
const HelpText = "I can answer questions about gold, silver, platinum and palladium prices. Try: " +
	"\"gold price today\", \"silver price on 22 feb\", \"compare gold and silver\", " +
	"\"gold trend last week\", \"average silver price last 10 days\", \"which metal is cheapest?\", " +
	"\"what is 22K purity\" or \"what dates are available\"."

// BuildHelp returns the fixed capability text.
func BuildHelp() Context {
	return Context{Intent: query.IntentHelp, Evidence: []string{HelpText}, Suggested: HelpText}
}

// BuildNoData is the apology for a lookup that found nothing.
func BuildNoData(intent query.Intent, requested query.DateQuery, cov resolver.Coverage) Context {
	c := Context{Intent: intent}
	if !cov.Known {
		c.add("No price data stored")
		c.Suggested = "Sorry, I couldn't find any price data yet. No prices have been recorded so far."
		return c
	}
	c.add("No data for %s", DescribeQuery(requested))
	c.add("Available data: %s to %s", Date(cov.Oldest), Date(cov.Newest))
	c.Suggested = fmt.Sprintf("Sorry, I couldn't find prices for %s. Data is available from %s to %s.",
		DescribeQuery(requested), Date(cov.Oldest), Date(cov.Newest))
	return c
}
