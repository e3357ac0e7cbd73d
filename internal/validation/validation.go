package validation

import (
	"regexp"
	"strconv"
	"strings"
)

// Export-eligible VINs come from North American plants, which assign the
// leading world-manufacturer-identifier digits 1, 4 and 5.
var exportablePrefixes = map[byte]bool{'1': true, '4': true, '5': true}

var priceCleaner = regexp.MustCompile(`[^0-9.\-]`)

// IsValidVIN reports whether a VIN is usable for an export appraisal:
// at least 17 characters after trimming and a North American plant prefix.
func IsValidVIN(vin string) bool {
	v := strings.ToUpper(strings.TrimSpace(vin))
	if len(v) < 17 {
		return false
	}
	return exportablePrefixes[v[0]]
}

// ParsePrice converts a free-form price string ("$12,345.67", "CAD 1,999")
// to a float. Anything that is not numeric after stripping currency noise
// yields 0.0 rather than an error.
func ParsePrice(s string) float64 {
	cleaned := priceCleaner.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

// NormalizeOdometer trims an odometer reading and substitutes "0" for empty
// input so the appraisal URL always carries a numeric-looking odometer.
func NormalizeOdometer(s string) string {
	v := strings.TrimSpace(s)
	if v == "" {
		return "0"
	}
	return v
}
