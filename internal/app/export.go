package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/xuri/excelize/v2"

	"metalwatch/internal/insight"
	"metalwatch/internal/query"
	"metalwatch/internal/resolver"
	"metalwatch/internal/storage"
)

const xlsxSheet = "Prices"

// Export renders one metal's price history as CSV, XLSX and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" && opts.XLSXPath == "" {
		return errors.New("at least one of --csv, --xlsx or --png must be provided")
	}

	metals := query.NewDetector(nil).DetectMetals(opts.Metal)
	if len(metals) != 1 {
		return fmt.Errorf("--metal must name exactly one metal, got %q", opts.Metal)
	}
	metal := metals[0]
	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	to := a.newParser().Today()
	if opts.To != nil {
		to = storage.Day(*opts.To)
	}
	from := to.AddDate(0, 0, -a.Config.Export.DefaultDays)
	if opts.From != nil {
		from = storage.Day(*opts.From)
	}
	if from.After(to) {
		return errors.New("from must not be after to")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	recs, err := store.PricesBetween(ctx, from, to, []string{metal})
	if err != nil {
		return err
	}
	days := resolver.GroupByDate(recs)
	if len(days) == 0 {
		a.Logger.Info().Str("metal", metal).Msg("no prices found for export window")
		return nil
	}

	kept := downsampleDays(days, opts.MaxPoints)
	a.Logger.Info().Str("metal", metal).Int("total", len(days)).Int("exported", len(kept)).Msg("exporting prices")

	if opts.CSVPath != "" {
		if err := writePricesCSV(opts.CSVPath, kept); err != nil {
			return err
		}
	}
	if opts.XLSXPath != "" {
		if err := writePricesXLSX(opts.XLSXPath, kept); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writePricesPNG(opts.PNGPath, metal, kept); err != nil {
			return err
		}
	}
	return nil
}

// downsampleDays keeps at most max days, evenly spaced, always including the
// first and last.
func downsampleDays(days []resolver.Day, max int) []resolver.Day {
	if max <= 0 || len(days) <= max {
		return days
	}
	if max == 1 {
		return days[len(days)-1:]
	}

	result := make([]resolver.Day, 0, max)
	step := float64(len(days)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(days) {
			idx = len(days) - 1
		}
		result = append(result, days[idx])
	}
	return result
}

func writePricesCSV(path string, days []resolver.Day) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(storage.CSVHeader); err != nil {
		return err
	}
	for _, day := range days {
		for _, rec := range day.Records {
			if err := writer.Write(storage.CSVRow(rec)); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

func writePricesXLSX(path string, days []resolver.Day) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header := make([]interface{}, len(storage.CSVHeader))
	for i, h := range storage.CSVHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := 2
	for _, day := range days {
		for _, rec := range day.Records {
			cells := []interface{}{
				rec.Date.Format("2006-01-02"),
				rec.Metal,
				rec.Carat,
				rec.PricePerGram.InexactFloat64(),
				nullFloat(rec.PricePerEightGrams.Valid, rec.PricePerEightGrams.Decimal.InexactFloat64()),
				nullFloat(rec.PricePerKilogram.Valid, rec.PricePerKilogram.Decimal.InexactFloat64()),
			}
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(xlsxSheet, cell, &cells); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
			row++
		}
	}
	return f.SaveAs(path)
}

func nullFloat(valid bool, v float64) interface{} {
	if !valid {
		return nil
	}
	return v
}

func writePricesPNG(path, metal string, days []resolver.Day) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	// One line per carat for gold, a single line otherwise.
	type line struct {
		x []time.Time
		y []float64
	}
	lines := make(map[string]*line)
	var order []string
	for _, day := range days {
		for _, rec := range day.Records {
			label := insight.Label(rec)
			l, ok := lines[label]
			if !ok {
				l = &line{}
				lines[label] = l
				order = append(order, label)
			}
			l.x = append(l.x, day.Date)
			l.y = append(l.y, rec.PricePerGram.InexactFloat64())
		}
	}

	series := make([]chart.Series, 0, len(order))
	for _, label := range order {
		l := lines[label]
		if len(l.x) < 2 {
			continue
		}
		series = append(series, chart.TimeSeries{Name: label, XValues: l.x, YValues: l.y})
	}
	if len(series) == 0 {
		return fmt.Errorf("not enough points to chart %s", query.DisplayName(metal))
	}

	graph := chart.Chart{
		Title:  query.DisplayName(metal) + " price per gram",
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "INR per gram",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.2f")
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
