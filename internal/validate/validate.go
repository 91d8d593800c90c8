// Package validate maps raw spreadsheet rows onto the canonical job schema
// and rejects rows that cannot be persisted.
package validate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/jobmap/internal/address"
	"github.com/sells-group/jobmap/internal/model"
)

// DateLayout is the storage format for service dates.
const DateLayout = "2006-01-02"

// dateLayouts are tried in order when parsing a service date.
var dateLayouts = []string{
	DateLayout,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"01-02-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// minExcelSerial keeps bare years like "2024" from being read as serial days.
const minExcelSerial = 10000

// excelEpoch is day zero of the 1900 date system as Excel counts it.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// FieldError describes why a single row was rejected.
type FieldError struct {
	Field   model.Field
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

func fieldErr(f model.Field, format string, args ...any) *FieldError {
	return &FieldError{Field: f, Message: fmt.Sprintf(format, args...)}
}

// Row validates one raw row against mapping and returns the job ready for
// persistence. When only a full address is given it is parsed into parts,
// and the job is flagged for geocoding if the parse was low confidence or
// left any part empty.
func Row(raw model.RawRow, mapping model.ColumnMapping) (model.Job, error) {
	job := model.Job{
		Name:        mapping.Value(raw, model.FieldName),
		ServiceType: mapping.Value(raw, model.FieldServiceType),
		LeadSource:  mapping.Value(raw, model.FieldLeadSource),
		Street:      mapping.Value(raw, model.FieldStreet),
		City:        mapping.Value(raw, model.FieldCity),
		State:       mapping.Value(raw, model.FieldState),
		Zip:         mapping.Value(raw, model.FieldZip),
		FullAddress: mapping.Value(raw, model.FieldFullAddress),
	}

	if job.Name == "" {
		return model.Job{}, fieldErr(model.FieldName, "name is required")
	}

	rawDate := mapping.Value(raw, model.FieldServiceDate)
	if rawDate == "" {
		return model.Job{}, fieldErr(model.FieldServiceDate, "service_date is required")
	}
	date, err := ParseDate(rawDate)
	if err != nil {
		return model.Job{}, fieldErr(model.FieldServiceDate, "service_date %q is not a valid date", rawDate)
	}
	job.ServiceDate = date

	rawPrice := mapping.Value(raw, model.FieldPrice)
	if rawPrice == "" {
		return model.Job{}, fieldErr(model.FieldPrice, "price is required")
	}
	price, err := ParsePrice(rawPrice)
	if err != nil {
		return model.Job{}, fieldErr(model.FieldPrice, "%s", err.Error())
	}
	job.Price = price

	job.Lat = parseCoord(mapping.Value(raw, model.FieldLat), 90)
	job.Lng = parseCoord(mapping.Value(raw, model.FieldLng), 180)

	lowConfidence := false
	switch {
	case job.HasFullAddressParts():
	case job.FullAddress != "":
		parts := address.ParseFullAddress(job.FullAddress)
		lowConfidence = parts.Confidence == model.ConfidenceLow
		job.Street = firstNonEmpty(job.Street, parts.Street)
		job.City = firstNonEmpty(job.City, parts.City)
		job.State = firstNonEmpty(job.State, parts.State)
		job.Zip = firstNonEmpty(job.Zip, parts.Zip)
	default:
		return model.Job{}, fieldErr(model.FieldFullAddress,
			"address is incomplete: provide street, city, state and zip, or full_address")
	}

	if code, ok := address.StateCode(job.State); ok {
		job.State = code
	}

	job.NeedsGeocode = !job.HasCoordinates() || lowConfidence || !job.HasFullAddressParts()
	if !job.HasCoordinates() {
		job.Lat, job.Lng = nil, nil
	}
	job.GeocodeStatus = model.GeocodePending
	if job.HasCoordinates() {
		job.GeocodeStatus = model.GeocodeOK
	}
	return job, nil
}

// ParseDate parses a service date in any accepted layout, including Excel
// serial day numbers, and returns it as YYYY-MM-DD.
func ParseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= minExcelSerial && serial < 2958466 {
		days := int(math.Floor(serial))
		return excelEpoch.AddDate(0, 0, days).Format(DateLayout), nil
	}
	return "", eris.Errorf("unrecognized date %q", s)
}

// ParsePrice parses a non-negative price given as a number or as currency
// text such as "$1,250.00".
func ParsePrice(s string) (float64, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return 0, eris.Errorf("price %q is not a valid number", s)
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, eris.Errorf("price %q is not a valid number", s)
	}
	if v < 0 {
		return 0, eris.Errorf("price must be >= 0, got %s", s)
	}
	return v, nil
}

// parseCoord returns nil for empty, non-numeric or out-of-range input.
func parseCoord(s string, limit float64) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.Abs(v) > limit {
		return nil
	}
	return &v
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
