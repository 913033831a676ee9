package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCSV(t *testing.T) {
	input := `date,metal,carat,price_per_gram,price_per_eight_grams,price_per_kilogram
2026-03-01,xau,22k,7600,60800,
2026-03-01,XAG,,95.20,,95200
`
	recs, err := LoadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "XAU", recs[0].Metal)
	assert.Equal(t, "22K", recs[0].Carat)
	assert.Equal(t, day("2026-03-01"), recs[0].Date)
	assert.True(t, recs[0].PricePerEightGrams.Valid)
	assert.False(t, recs[0].PricePerKilogram.Valid)

	assert.Equal(t, "", recs[1].Carat)
	assert.Equal(t, "95.2", recs[1].PricePerGram.String())
	assert.Equal(t, "95200", recs[1].PricePerKilogram.Decimal.String())
}

func TestLoadCSVColumnOrderFollowsHeader(t *testing.T) {
	input := "metal,price_per_gram,date,carat\nXPT,2900,2026-03-01,\n"
	recs, err := LoadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "XPT", recs[0].Metal)
	assert.Equal(t, "2900", recs[0].PricePerGram.String())
}

func TestLoadCSVErrors(t *testing.T) {
	cases := map[string]string{
		"missing column": "date,metal,price_per_gram\n2026-03-01,XAU,7600\n",
		"bad date":       "date,metal,carat,price_per_gram\n01/03/2026,XAU,22K,7600\n",
		"bad price":      "date,metal,carat,price_per_gram\n2026-03-01,XAU,22K,abc\n",
		"zero price":     "date,metal,carat,price_per_gram\n2026-03-01,XAU,22K,0\n",
		"empty metal":    "date,metal,carat,price_per_gram\n2026-03-01,,22K,7600\n",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadCSV(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestLoadCSVEmpty(t *testing.T) {
	recs, err := LoadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCSVRowRoundTrip(t *testing.T) {
	r := rec("2026-03-01", "XAU", "24K", "8290")
	row := CSVRow(r)
	assert.Equal(t, []string{"2026-03-01", "XAU", "24K", "8290.00", "", ""}, row)

	recs, err := LoadCSV(strings.NewReader(strings.Join(CSVHeader, ",") + "\n" + strings.Join(row, ",") + "\n"))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].PricePerGram.Equal(r.PricePerGram))
}
