package ingest

import "strings"

// priceRange is the plausible per-quintal price band for a commodity, in
// rupees. Reports outside the band are rejected as implausible rather than
// fed into the baseline.
type priceRange struct {
	Min float64
	Max float64
}

var commodityAliases = map[string]string{
	"onions":      "onion",
	"pyaz":        "onion",
	"tomatoes":    "tomato",
	"tamatar":     "tomato",
	"potatoes":    "potato",
	"aloo":        "potato",
	"paddy":       "rice",
	"chawal":      "rice",
	"gehu":        "wheat",
	"atta":        "wheat",
	"dal":         "pulses",
	"lentils":     "pulses",
	"cooking oil": "edible_oil",
	"edible oil":  "edible_oil",
}

var commodityRanges = map[string]priceRange{
	"onion":      {Min: 300, Max: 15000},
	"tomato":     {Min: 300, Max: 12000},
	"potato":     {Min: 200, Max: 8000},
	"wheat":      {Min: 1200, Max: 5000},
	"rice":       {Min: 1500, Max: 9000},
	"sugar":      {Min: 2500, Max: 7000},
	"pulses":     {Min: 3500, Max: 16000},
	"edible_oil": {Min: 6000, Max: 22000},
}

// NormalizeCommodity lowercases, trims and de-aliases a commodity name.
// Unknown commodities pass through normalized; they simply carry no
// plausibility band.
func NormalizeCommodity(s string) string {
	c := strings.ToLower(strings.TrimSpace(s))
	if canonical, ok := commodityAliases[c]; ok {
		return canonical
	}
	return c
}

// plausibleRange returns the price band for a commodity, if one is known.
func plausibleRange(commodity string) (priceRange, bool) {
	r, ok := commodityRanges[commodity]
	return r, ok
}
