// Package address canonicalizes and splits free-form US postal addresses.
package address

import (
	"regexp"
	"sort"
	"strings"
)

// stateCodes maps lowercase full state names (50 states + DC) to USPS codes.
var stateCodes = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"florida": "FL", "georgia": "GA", "hawaii": "HI", "idaho": "ID",
	"illinois": "IL", "indiana": "IN", "iowa": "IA", "kansas": "KS",
	"kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY", "district of columbia": "DC",
}

// stateNameRe matches any full state name as whole words. Longer names come
// first in the alternation so "West Virginia" wins over "Virginia".
var stateNameRe = func() *regexp.Regexp {
	names := make([]string, 0, len(stateCodes))
	for name := range stateCodes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	alts := make([]string, len(names))
	for i, n := range names {
		alts[i] = strings.ReplaceAll(regexp.QuoteMeta(n), " ", `\s+`)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
}()

// StateCode returns the USPS code for a full state name or an existing code,
// and false when the input is neither.
func StateCode(s string) (string, bool) {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	if code, ok := stateCodes[s]; ok {
		return code, true
	}
	upper := strings.ToUpper(s)
	for _, code := range stateCodes {
		if code == upper {
			return code, true
		}
	}
	return "", false
}
