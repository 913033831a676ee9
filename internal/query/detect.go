package query

import (
	"regexp"
	"sort"
	"strings"
)

// Intent is the single classified purpose of a question.
type Intent string

const (
	IntentPrice     Intent = "price"
	IntentTrend     Intent = "trend"
	IntentCompare   Intent = "compare"
	IntentRank      Intent = "rank"
	IntentAverage   Intent = "average"
	IntentCarats    Intent = "carats"
	IntentDateRange Intent = "daterange"
	IntentHelp      Intent = "help"
)

type intentRule struct {
	intent  Intent
	pattern *regexp.Regexp
}

// intentRules is ordered by precedence; the first matching rule decides.
var intentRules = []intentRule{
	{IntentCompare, regexp.MustCompile(`\b(?:compare|compared|comparison|vs\.?|versus|difference|diff)\b`)},
	{IntentTrend, regexp.MustCompile(`\b(?:trend|trends|trending|history|historical|chart|movement|moved)\b`)},
	{IntentRank, regexp.MustCompile(`\b(?:cheapest|cheaper|expensive|costliest|highest|lowest|rank|ranking)\b`)},
	{IntentAverage, regexp.MustCompile(`\b(?:average|avg|mean)\b`)},
	{IntentCarats, regexp.MustCompile(`\b(?:carat|carats|karat|karats|purity)\b`)},
	{IntentDateRange, regexp.MustCompile(`\b(?:available|date range|oldest)\b`)},
	{IntentHelp, regexp.MustCompile(`\b(?:help|what can|how to)\b`)},
}

// DetectIntent classifies text by keyword precedence, defaulting to price.
func DetectIntent(text string) Intent {
	normalized := strings.ToLower(text)
	for _, rule := range intentRules {
		if rule.pattern.MatchString(normalized) {
			return rule.intent
		}
	}
	return IntentPrice
}

// Selection is a set of metal codes. The empty selection means every
// tracked metal.
type Selection []string

// All reports whether the selection stands for every tracked metal.
func (s Selection) All() bool { return len(s) == 0 }

// Contains reports whether code is explicitly selected.
func (s Selection) Contains(code string) bool {
	for _, c := range s {
		if c == code {
			return true
		}
	}
	return false
}

// Primary returns the first selected metal in detection order, or gold.
func (s Selection) Primary() string {
	if len(s) == 0 {
		return Gold
	}
	return s[0]
}

// Codes returns the selection sorted, nil when it means all metals.
func (s Selection) Codes() []string {
	if len(s) == 0 {
		return nil
	}
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

var reWord = regexp.MustCompile(`[a-z0-9]+`)

// Detector finds metals in text from the name dictionary plus any extra
// ISO-style codes published by the symbol catalog.
type Detector struct {
	codes map[string]struct{}
}

// NewDetector builds a detector that also accepts the given extra codes.
func NewDetector(extraCodes []string) *Detector {
	codes := make(map[string]struct{}, len(metalNames)+len(extraCodes))
	for _, code := range metalNames {
		codes[strings.ToLower(code)] = struct{}{}
	}
	for _, code := range extraCodes {
		if code = strings.ToLower(strings.TrimSpace(code)); code != "" {
			codes[code] = struct{}{}
		}
	}
	return &Detector{codes: codes}
}

// DetectMetals returns the distinct metals mentioned in text, in order of
// first mention. Order only matters for picking a primary metal.
func (d *Detector) DetectMetals(text string) Selection {
	var found Selection
	seen := make(map[string]struct{})
	for _, word := range reWord.FindAllString(strings.ToLower(text), -1) {
		code, ok := metalNames[word]
		if !ok {
			if _, known := d.codes[word]; !known {
				continue
			}
			code = strings.ToUpper(word)
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		found = append(found, code)
	}
	return found
}
