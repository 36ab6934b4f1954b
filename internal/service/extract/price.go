package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var priceRun = regexp.MustCompile(`[0-9,.]+`)

// ParsePrice reads the first numeric run of a price label, e.g.
// "GHS 1,299.50" -> 1299.50. Anything unparseable is 0.
func ParsePrice(text string) float64 {
	raw := priceRun.FindString(text)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
