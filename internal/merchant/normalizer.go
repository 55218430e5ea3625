// Package merchant canonicalizes the raw merchant strings that appear on
// transactions into stable, deduplicated identities.
package merchant

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	processorPrefixRe = regexp.MustCompile(`(?i)^(PAYPAL\s*\*|SQ\s*\*|SQUARE\s*\*?|TST\s*\*|POS\s+|CCD\s+)`)
	embeddedStarRe    = regexp.MustCompile(`\*`)
	storeMarkerRe     = regexp.MustCompile(`(?i)\b(STORE|LOCATION)\s*#?\s*\d+\b`)
	hashSuffixRe      = regexp.MustCompile(`#\d+\b`)
	trailingDigitsRe  = regexp.MustCompile(`\b\d{4,}\s*$`)
	legalSuffixRe     = regexp.MustCompile(`(?i)\b(INC|LLC|LTD|CORP|CO|COMPANY)\.?\s*$`)
	nonWordRe         = regexp.MustCompile(`[^\w]+`)
	whitespaceRe      = regexp.MustCompile(`\s+`)
)

// Normalize reduces a raw merchant string to its canonical lowercase form:
// payment-processor prefixes, transaction IDs, store markers, and legal
// suffixes are stripped, punctuation collapses to spaces, and whitespace is
// squeezed.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	s = processorPrefixRe.ReplaceAllString(s, "")
	s = embeddedStarRe.ReplaceAllString(s, " ")
	s = storeMarkerRe.ReplaceAllString(s, " ")
	s = hashSuffixRe.ReplaceAllString(s, " ")
	s = trailingDigitsRe.ReplaceAllString(s, " ")
	s = legalSuffixRe.ReplaceAllString(s, " ")
	s = nonWordRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")

	return strings.ToLower(strings.TrimSpace(s))
}

// knownDisplayNames maps normalized names to their preferred presentation.
var knownDisplayNames = map[string]string{
	"mcdonalds": "McDonald's",
	"starbucks": "Starbucks",
	"uber":      "Uber",
	"uber eats": "Uber Eats",
	"lyft":      "Lyft",
	"amazon":    "Amazon",
	"walmart":   "Walmart",
	"target":    "Target",
	"netflix":   "Netflix",
	"spotify":   "Spotify",
	"doordash":  "DoorDash",
	"grubhub":   "Grubhub",
	"cvs":       "CVS Pharmacy",
	"walgreens": "Walgreens",
	"costco":    "Costco",
	"ikea":      "IKEA",
	"airbnb":    "Airbnb",
	"7 eleven":  "7-Eleven",
}

var titleCaser = cases.Title(language.English)

// Beautify produces a display name for a normalized merchant string using
// the known-merchant table with a title-case fallback.
func Beautify(normalized string) string {
	if display, ok := knownDisplayNames[normalized]; ok {
		return display
	}
	return titleCaser.String(normalized)
}
