package verification

import (
	"slices"
	"strings"
)

const defaultHint = "Enter a code."

var brandHints = map[string]string{
	"Amazon":           "Format e.g. AMZ-0000-0000-0000",
	"American Express": "Format e.g. AMX-1234-5678-9012",
	"eBay":             "Format e.g. EBY-1234-5678-9012",
	"Visa":             "Format e.g. VSA-1234-5678-9012",
	"Paramount":        "Format e.g. PAR-1234-5678",
	"PlayStation":      "Format e.g. PSN-123456789012",
	"Steam":            "Format e.g. STM-0000-0000-0000",
	"iTunes":           "Format e.g. ITN-ABCD-EFGH-IJKL",
	"Apple":            "Format e.g. APL-1234-5678-9012",
	"Google Play":      "Format e.g. GGP-1234-5678-9012",
	"Razer Gold":       "Format e.g. RZG-1234-5678-9012",
	"Sephora":          "Format e.g. SEP-1234-5678",
	"Xbox":             "Format e.g. XBX-1234-5678-9012",
}

// BrandHint returns the code format hint shown next to the code input.
func BrandHint(brand string) string {
	if h, ok := brandHints[strings.TrimSpace(brand)]; ok {
		return h
	}
	return defaultHint
}

// Brands lists the brands that have a hint, sorted.
func Brands() []string {
	out := make([]string, 0, len(brandHints))
	for b := range brandHints {
		out = append(out, b)
	}
	slices.Sort(out)
	return out
}
