// Package model defines the canonical job record shared by the import,
// geocoding, persistence and reporting layers.
package model

import (
	"math"
	"strings"
	"time"
)

// GeocodeStatus records what happened the last time a job went through a
// geocoding pass.
type GeocodeStatus string

const (
	GeocodePending GeocodeStatus = "pending"  // never attempted
	GeocodeOK      GeocodeStatus = "ok"       // coordinates populated
	GeocodeNoMatch GeocodeStatus = "no_match" // provider returned nothing
	GeocodeSkipped GeocodeStatus = "skipped"  // no usable address text
)

// Confidence is the Address Parser's self-assessed reliability of a split.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// AddressParts is the structured output of parsing a one-line address.
type AddressParts struct {
	Street     string     `json:"street,omitempty"`
	City       string     `json:"city,omitempty"`
	State      string     `json:"state,omitempty"`
	Zip        string     `json:"zip,omitempty"`
	Confidence Confidence `json:"confidence"`
}

// Job is one customer/job record. Before persistence it is owned by the
// import that produced it; afterwards the store is authoritative.
type Job struct {
	ID            string        `json:"id,omitempty"`
	Name          string        `json:"name"`
	ServiceDate   string        `json:"service_date"` // YYYY-MM-DD
	Price         float64       `json:"price"`
	ServiceType   string        `json:"service_type,omitempty"`
	LeadSource    string        `json:"lead_source,omitempty"`
	Street        string        `json:"street,omitempty"`
	City          string        `json:"city,omitempty"`
	State         string        `json:"state,omitempty"`
	Zip           string        `json:"zip,omitempty"`
	FullAddress   string        `json:"full_address,omitempty"`
	Lat           *float64      `json:"lat,omitempty"`
	Lng           *float64      `json:"lng,omitempty"`
	NeedsGeocode  bool          `json:"needs_geocode"`
	GeocodeStatus GeocodeStatus `json:"geocode_status,omitempty"`
	CreatedAt     time.Time     `json:"created_at,omitempty"`
}

// HasCoordinates reports whether the job carries a usable lat/lng pair.
// A pair of exact zeros is treated as unset.
func (j Job) HasCoordinates() bool {
	if j.Lat == nil || j.Lng == nil {
		return false
	}
	lat, lng := *j.Lat, *j.Lng
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return false
	}
	return lat != 0 || lng != 0
}

// AddressLine returns the one-line address used for geocoding: the full
// address when present, otherwise "street, city, state zip" built from the
// non-empty parts.
func (j Job) AddressLine() string {
	if s := strings.TrimSpace(j.FullAddress); s != "" {
		return s
	}
	var parts []string
	for _, p := range []string{j.Street, j.City} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	tail := strings.TrimSpace(strings.TrimSpace(j.State) + " " + strings.TrimSpace(j.Zip))
	if tail != "" {
		parts = append(parts, tail)
	}
	return strings.Join(parts, ", ")
}

// HasFullAddressParts reports whether street, city, state and zip are all set.
func (j Job) HasFullAddressParts() bool {
	return strings.TrimSpace(j.Street) != "" &&
		strings.TrimSpace(j.City) != "" &&
		strings.TrimSpace(j.State) != "" &&
		strings.TrimSpace(j.Zip) != ""
}

// ImportResult summarizes one import request.
type ImportResult struct {
	Total    int             `json:"total"`
	Inserted int             `json:"inserted"`
	Skipped  int             `json:"skipped"`
	Errors   []string        `json:"errors"`
	Geocode  *GeocodeSummary `json:"geocode,omitempty"`
}

// GeocodeSummary counts the outcome of a geocoding pass.
type GeocodeSummary struct {
	Attempted int `json:"attempted"`
	Success   int `json:"success"`
	Failed    int `json:"failed"`
}
