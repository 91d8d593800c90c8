package aggregate

import (
	"sort"
	"strings"
)

// SortField selects the primary key of a ranked listing.
type SortField string

const (
	SortJobs         SortField = "jobs"
	SortSales        SortField = "sales"
	SortAvg          SortField = "avg"
	SortJobShare     SortField = "jobShare"
	SortRevenueShare SortField = "revenueShare"
	SortAvgDelta     SortField = "avgDeltaPct"
)

// ParseSortField maps a user-supplied name onto a SortField, defaulting to
// SortSales.
func ParseSortField(s string) SortField {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jobs", "count":
		return SortJobs
	case "avg", "average":
		return SortAvg
	case "jobshare", "job_share":
		return SortJobShare
	case "revenueshare", "revenue_share":
		return SortRevenueShare
	case "avgdeltapct", "avg_delta_pct", "delta":
		return SortAvgDelta
	default:
		return SortSales
	}
}

func (f SortField) value(m ZipMetric) float64 {
	switch f {
	case SortJobs:
		return float64(m.Jobs)
	case SortAvg:
		return m.Avg
	case SortJobShare:
		return m.JobShare
	case SortRevenueShare:
		return m.RevenueShare
	case SortAvgDelta:
		return m.AvgDeltaPct
	default:
		return m.Sales
	}
}

// Ranked returns the zip metrics ordered by field (descending when desc).
// Ties break by sales descending, then zip ascending, so identical input
// always yields identical output.
func (r Report) Ranked(field SortField, desc bool) []ZipMetric {
	out := make([]ZipMetric, 0, len(r.PerZip))
	for _, m := range r.PerZip {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := field.value(out[i]), field.value(out[j])
		if a != b {
			if desc {
				return a > b
			}
			return a < b
		}
		if out[i].Sales != out[j].Sales {
			return out[i].Sales > out[j].Sales
		}
		return out[i].Zip < out[j].Zip
	})
	return out
}
