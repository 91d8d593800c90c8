// Package aggregate rolls job records up into per-zip metrics for reporting.
package aggregate

import (
	"math"
	"strings"
	"time"

	"github.com/sells-group/jobmap/internal/model"
	"github.com/sells-group/jobmap/internal/validate"
)

// DateRange bounds service dates inclusively. Empty or unparseable bounds
// are open.
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// ZipMetric is the aggregate for one 5-digit zip. It is derived on demand
// and never persisted.
type ZipMetric struct {
	Zip          string  `json:"zip"`
	Jobs         int     `json:"jobs"`
	Sales        float64 `json:"sales"`
	Avg          float64 `json:"avg"`
	JobShare     float64 `json:"jobShare"`
	RevenueShare float64 `json:"revenueShare"`
	AvgDeltaPct  float64 `json:"avgDeltaPct"`
}

// Totals are computed over every record that landed in a zip group.
type Totals struct {
	TotalJobs  int     `json:"totalJobs"`
	TotalSales float64 `json:"totalSales"`
	OverallAvg float64 `json:"overallAvg"`
	Zips       int     `json:"zips"`
}

// Report is the result of one aggregation.
type Report struct {
	PerZip map[string]ZipMetric `json:"perZip"`
	Totals Totals               `json:"totals"`
}

// Aggregate filters jobs to dr (when non-nil) and groups them by normalized
// zip. Records whose date cannot be parsed pass the filter; records without
// a zip are left out of both groups and totals.
func Aggregate(jobs []model.Job, dr *DateRange) Report {
	var start, end time.Time
	if dr != nil {
		start = parseBound(dr.Start)
		end = parseBound(dr.End)
	}

	groups := make(map[string]*ZipMetric)
	var totals Totals
	for _, j := range jobs {
		if !inRange(j.ServiceDate, start, end) {
			continue
		}
		zip := NormalizeZip(j.Zip)
		if zip == "" {
			continue
		}
		m, ok := groups[zip]
		if !ok {
			m = &ZipMetric{Zip: zip}
			groups[zip] = m
		}
		m.Jobs++
		m.Sales += j.Price
		totals.TotalJobs++
		totals.TotalSales += j.Price
	}

	totals.OverallAvg = safeDiv(totals.TotalSales, float64(totals.TotalJobs))
	totals.Zips = len(groups)

	perZip := make(map[string]ZipMetric, len(groups))
	for zip, m := range groups {
		m.Avg = safeDiv(m.Sales, float64(m.Jobs))
		m.JobShare = round1(safeDiv(float64(m.Jobs), float64(totals.TotalJobs)) * 100)
		m.RevenueShare = round1(safeDiv(m.Sales, totals.TotalSales) * 100)
		m.AvgDeltaPct = round1(safeDiv(m.Avg-totals.OverallAvg, totals.OverallAvg) * 100)
		perZip[zip] = *m
	}

	return Report{PerZip: perZip, Totals: totals}
}

// NormalizeZip extracts the digits of s and returns the first five,
// left-padded with zeros. It returns "" when s has no digits.
func NormalizeZip(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			if b.Len() == 5 {
				break
			}
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	return strings.Repeat("0", 5-len(digits)) + digits
}

func parseBound(s string) time.Time {
	if strings.TrimSpace(s) == "" {
		return time.Time{}
	}
	d, err := validate.ParseDate(s)
	if err != nil {
		return time.Time{}
	}
	t, _ := time.Parse(validate.DateLayout, d)
	return t
}

// inRange is fail-open: an unparseable service date is always in range.
func inRange(serviceDate string, start, end time.Time) bool {
	if start.IsZero() && end.IsZero() {
		return true
	}
	d, err := validate.ParseDate(serviceDate)
	if err != nil {
		return true
	}
	t, err := time.Parse(validate.DateLayout, d)
	if err != nil {
		return true
	}
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && t.After(end) {
		return false
	}
	return true
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
