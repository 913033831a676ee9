package resolver

import (
	"sort"

	"metalwatch/internal/query"
	"metalwatch/internal/storage"
)

// Metals returns the distinct metal codes present on the day, sorted.
func (d Day) Metals() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, rec := range d.Records {
		if _, ok := seen[rec.Metal]; ok {
			continue
		}
		seen[rec.Metal] = struct{}{}
		out = append(out, rec.Metal)
	}
	sort.Strings(out)
	return out
}

// Variants returns the records of one metal, highest purity first.
func (d Day) Variants(metal string) []storage.PriceRecord {
	out := make([]storage.PriceRecord, 0, 3)
	for _, rec := range d.Records {
		if rec.Metal == metal {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return query.PurityRank(out[i].Carat) < query.PurityRank(out[j].Carat)
	})
	return out
}

// Reference picks the single record that stands for metal on this day:
// gold's reference carat when present, otherwise the purest variant.
func (d Day) Reference(metal string) (storage.PriceRecord, bool) {
	variants := d.Variants(metal)
	if len(variants) == 0 {
		return storage.PriceRecord{}, false
	}
	for _, rec := range variants {
		if rec.Carat == query.ReferenceCarat {
			return rec, true
		}
	}
	return variants[0], true
}

func sortDays(days []Day) {
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
}
