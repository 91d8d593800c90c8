package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/jobmap/internal/model"
)

func zips(ms []ZipMetric) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Zip
	}
	return out
}

func TestRanked(t *testing.T) {
	r := Aggregate([]model.Job{
		job("2024-01-01", 300, "30000"),
		job("2024-01-01", 100, "10000"),
		job("2024-01-01", 100, "10000"),
		job("2024-01-01", 50, "20000"),
		job("2024-01-01", 50, "20000"),
		job("2024-01-01", 50, "20000"),
	}, nil)

	assert.Equal(t, []string{"30000", "10000", "20000"}, zips(r.Ranked(SortSales, true)))
	assert.Equal(t, []string{"20000", "10000", "30000"}, zips(r.Ranked(SortSales, false)))
	assert.Equal(t, []string{"20000", "10000", "30000"}, zips(r.Ranked(SortJobs, true)))
	assert.Equal(t, []string{"30000", "10000", "20000"}, zips(r.Ranked(SortAvg, true)))
}

func TestRanked_TieBreak(t *testing.T) {
	r := Aggregate([]model.Job{
		job("2024-01-01", 100, "50000"),
		job("2024-01-01", 200, "40000"),
		job("2024-01-01", 100, "30000"),
	}, nil)

	// All have one job: sales desc, then zip asc.
	assert.Equal(t, []string{"40000", "30000", "50000"}, zips(r.Ranked(SortJobs, true)))
	assert.Equal(t, []string{"40000", "30000", "50000"}, zips(r.Ranked(SortJobs, false)))
}

func TestParseSortField(t *testing.T) {
	assert.Equal(t, SortJobs, ParseSortField("jobs"))
	assert.Equal(t, SortJobs, ParseSortField(" Count "))
	assert.Equal(t, SortAvg, ParseSortField("average"))
	assert.Equal(t, SortRevenueShare, ParseSortField("revenue_share"))
	assert.Equal(t, SortAvgDelta, ParseSortField("delta"))
	assert.Equal(t, SortSales, ParseSortField(""))
	assert.Equal(t, SortSales, ParseSortField("bogus"))
}
