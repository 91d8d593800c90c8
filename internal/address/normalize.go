package address

import (
	"regexp"
	"strings"
)

var (
	spaceBeforeCommaRe = regexp.MustCompile(`\s+,`)
	streetTypeRe       = regexp.MustCompile(`(?i)\b(?:street|avenue|boulevard|road|drive)\b`)
)

// streetTypeAbbr holds the street-type words Normalize abbreviates.
// Directionals are left alone on purpose.
var streetTypeAbbr = map[string]string{
	"street":    "St",
	"avenue":    "Ave",
	"boulevard": "Blvd",
	"road":      "Rd",
	"drive":     "Dr",
}

// Normalize canonicalizes a free-form US address: whitespace is collapsed,
// spaces before commas are dropped, full state names become USPS codes and
// common street types are abbreviated. All matches are whole-word and
// case-insensitive. Normalize is idempotent.
func Normalize(raw string) string {
	s := collapseSpace(raw)
	s = spaceBeforeCommaRe.ReplaceAllString(s, ",")
	s = stateNameRe.ReplaceAllStringFunc(s, func(m string) string {
		return stateCodes[strings.ToLower(collapseSpace(m))]
	})
	s = streetTypeRe.ReplaceAllStringFunc(s, func(m string) string {
		return streetTypeAbbr[strings.ToLower(m)]
	})
	return collapseSpace(s)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
