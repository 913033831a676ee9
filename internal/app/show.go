package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"metalwatch/internal/insight"
	"metalwatch/internal/query"
	"metalwatch/internal/resolver"
)

// Show prints the stored prices for one day, the latest by default.
func (a *App) Show(ctx context.Context, opts ShowOptions, w io.Writer) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var when query.DateQuery = query.NoDate{}
	if strings.TrimSpace(opts.When) != "" {
		when = a.newParser().Parse(opts.When)
		if _, ok := when.(query.NoDate); ok {
			return fmt.Errorf("could not read a date from %q", opts.When)
		}
	}
	metals := query.NewDetector(nil).DetectMetals(strings.Join(opts.Metals, " "))

	res := resolver.New(store, resolver.Options{
		WindowDays:   a.Config.Assistant.WindowDays,
		LookbackDays: a.Config.Assistant.LookbackDays,
	}, a.Logger)
	resolution, err := res.Resolve(ctx, when, metals)
	if err != nil {
		return err
	}
	if resolution.Empty() {
		fmt.Fprintln(w, insight.BuildNoData(query.IntentPrice, resolution.Requested, resolution.Coverage).Suggested)
		return nil
	}
	if resolution.Fallback {
		fmt.Fprintf(w, "No prices on %s; showing %s.\n", insight.DescribeQuery(when), insight.Date(resolution.Last().Date))
	}

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tMetal\tCarat\tPer gram\tPer 8g\tPer kg")
	for _, day := range resolution.Days {
		for _, rec := range day.Records {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
				insight.Date(day.Date),
				query.DisplayName(rec.Metal),
				dash(rec.Carat),
				insight.Money(rec.PricePerGram),
				nullMoney(rec.PricePerEightGrams),
				nullMoney(rec.PricePerKilogram),
			)
		}
	}
	return writer.Flush()
}

func nullMoney(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return insight.Money(d.Decimal)
}

func dash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
