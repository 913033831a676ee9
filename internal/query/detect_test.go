package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDetectIntent(t *testing.T) {
	cases := map[string]Intent{
		"gold price on 22 february":    IntentPrice,
		"compare gold and silver":      IntentCompare,
		"gold vs. silver":              IntentCompare,
		"compare the gold trend":       IntentCompare,
		"show me the silver history":   IntentTrend,
		"explain the gold trend":       IntentTrend,
		"which metal is cheapest?":     IntentRank,
		"highest price this week":      IntentRank,
		"average gold price last week": IntentAverage,
		"what is 22k purity":           IntentCarats,
		"which carat should I buy":     IntentCarats,
		"what dates are available":     IntentDateRange,
		"oldest data you have":         IntentDateRange,
		"help":                         IntentHelp,
		"what can you do":              IntentHelp,
		"hello there":                  IntentPrice,
	}
	for text, want := range cases {
		assert.Equal(t, want, DetectIntent(text), text)
	}
}

func TestIntentRulesOrder(t *testing.T) {
	want := []Intent{IntentCompare, IntentTrend, IntentRank, IntentAverage, IntentCarats, IntentDateRange, IntentHelp}
	got := make([]Intent, 0, len(intentRules))
	for _, rule := range intentRules {
		got = append(got, rule.intent)
	}
	assert.Equal(t, want, got)
}

func TestDetectMetals(t *testing.T) {
	det := NewDetector([]string{"XRH"})

	assert.Equal(t, Selection{Gold, Silver}, det.DetectMetals("Compare GOLD and silver and gold again"))
	assert.Equal(t, Selection{Platinum}, det.DetectMetals("xpt today"))
	assert.Equal(t, Selection{"XRH"}, det.DetectMetals("rhodium is XRH"))
	assert.True(t, det.DetectMetals("which metal is cheapest?").All())
	// substrings inside other words are not metals
	assert.True(t, det.DetectMetals("golden retriever").All())
}

func TestSelection(t *testing.T) {
	sel := Selection{Silver, Gold}
	assert.Equal(t, Silver, sel.Primary())
	// codes come back in lexical order, not selection order
	assert.Equal(t, []string{Silver, Gold}, sel.Codes())
	assert.True(t, sel.Contains(Gold))
	assert.Equal(t, Gold, Selection(nil).Primary())
	assert.Nil(t, Selection(nil).Codes())
}

func TestAnalyze(t *testing.T) {
	p := NewParser(time.UTC, func() time.Time { return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC) })
	q := Analyze("gold price on 22 february", p, NewDetector(nil))
	assert.Equal(t, IntentPrice, q.Intent)
	assert.Equal(t, Selection{Gold}, q.Metals)
	assert.Equal(t, SingleDate{Date: time.Date(2026, 2, 22, 0, 0, 0, 0, time.UTC)}, q.Date)
}
