package address

import (
	"regexp"
	"strings"

	"github.com/sells-group/jobmap/internal/model"
)

// stateZipRe finds a trailing "ST 12345" or "ST 12345-6789". The state must
// start the string or follow whitespace or a comma.
var stateZipRe = regexp.MustCompile(`(?:^|[\s,])([A-Z]{2})\s+(\d{5}(?:-\d{4})?)$`)

// streetSuffixRe matches the first street-type word in a segment. The
// alternation is leftmost-first; \b keeps "St" from matching inside "Street".
var streetSuffixRe = regexp.MustCompile(`(?i)\b(?:St|Street|Ave|Avenue|Rd|Road|Dr|Drive|Ln|Lane|Blvd|Boulevard|Ct|Court|Pl|Place|Way|Circle|Cir|Pkwy|Parkway)\b\.?`)

// ParseFullAddress splits a one-line address into street, city, state and
// zip. Text that cannot be split is returned as Street with low confidence
// so nothing is silently dropped.
func ParseFullAddress(input string) model.AddressParts {
	s := strings.TrimSpace(input)
	if s == "" {
		return model.AddressParts{Confidence: model.ConfidenceLow}
	}

	loc := stateZipRe.FindStringSubmatchIndex(s)
	if loc == nil {
		return model.AddressParts{Street: s, Confidence: model.ConfidenceLow}
	}

	parts := model.AddressParts{
		State: s[loc[2]:loc[3]],
		Zip:   s[loc[4]:loc[5]],
	}

	var segments []string
	for _, seg := range strings.Split(s[:loc[2]], ",") {
		if seg = strings.TrimSpace(seg); seg != "" {
			segments = append(segments, seg)
		}
	}

	switch {
	case len(segments) >= 2:
		parts.City = segments[len(segments)-1]
		parts.Street = strings.Join(segments[:len(segments)-1], ", ")
	case len(segments) == 1:
		parts.Street, parts.City = splitOnSuffix(segments[0])
	}

	parts.Confidence = confidenceOf(parts)
	return parts
}

// splitOnSuffix cuts a single segment after its first street-type word.
// Without a suffix the whole segment is the street.
func splitOnSuffix(seg string) (street, city string) {
	loc := streetSuffixRe.FindStringIndex(seg)
	if loc == nil {
		return seg, ""
	}
	return strings.TrimSpace(seg[:loc[1]]), strings.TrimSpace(seg[loc[1]:])
}

func confidenceOf(p model.AddressParts) model.Confidence {
	switch {
	case p.Street != "" && p.City != "":
		return model.ConfidenceHigh
	case p.Street != "":
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}
