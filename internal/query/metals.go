package query

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Tracked metal codes.
const (
	Gold      = "XAU"
	Silver    = "XAG"
	Platinum  = "XPT"
	Palladium = "XPD"
)

// ReferenceCarat is the gold variant used whenever a single price per metal
// is needed (rank, compare, trend, average).
const ReferenceCarat = "22K"

// metalNames maps lower-case words to metal codes.
var metalNames = map[string]string{
	"gold":      Gold,
	"xau":       Gold,
	"silver":    Silver,
	"xag":       Silver,
	"platinum":  Platinum,
	"xpt":       Platinum,
	"palladium": Palladium,
	"xpd":       Palladium,
}

var displayNames = map[string]string{
	Gold:      "Gold",
	Silver:    "Silver",
	Platinum:  "Platinum",
	Palladium: "Palladium",
}

// DisplayName returns a human label for a metal code.
func DisplayName(code string) string {
	if name, ok := displayNames[code]; ok {
		return name
	}
	return strings.ToUpper(code)
}

// Purity describes one gold carat label.
type Purity struct {
	Carat      string
	Multiplier decimal.Decimal
}

// Purities lists gold carat labels from highest purity down.
var Purities = []Purity{
	{Carat: "24K", Multiplier: decimal.RequireFromString("0.999")},
	{Carat: "22K", Multiplier: decimal.RequireFromString("0.916")},
	{Carat: "18K", Multiplier: decimal.RequireFromString("0.750")},
}

// PurityRank orders carat labels; lower is purer. Unknown labels sort last.
func PurityRank(carat string) int {
	for i, p := range Purities {
		if p.Carat == carat {
			return i
		}
	}
	return len(Purities)
}
