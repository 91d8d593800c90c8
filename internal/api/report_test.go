package api

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobmap/internal/model"
)

func reportJobs() []model.Job {
	return []model.Job{
		{Name: "A", ServiceDate: "2024-01-05", Price: 100, Zip: "62704"},
		{Name: "B", ServiceDate: "2024-01-06", Price: 50, Zip: "62704"},
		{Name: "C", ServiceDate: "2024-02-01", Price: 75, Zip: "60601"},
	}
}

func TestReport(t *testing.T) {
	h := newTestServer(t, &memStore{jobs: reportJobs()}, &fakeGeocoder{})

	rec := do(t, h, http.MethodGet, "/api/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)

	totals := body["totals"].(map[string]any)
	assert.EqualValues(t, 3, totals["totalJobs"])
	assert.InDelta(t, 225, totals["totalSales"], 1e-9)
	assert.InDelta(t, 75, totals["overallAvg"], 1e-9)

	zips := body["zips"].([]any)
	require.Len(t, zips, 2)
	first := zips[0].(map[string]any)
	assert.Equal(t, "62704", first["zip"])
	assert.EqualValues(t, 2, first["jobs"])
}

func TestReport_FiltersAndSort(t *testing.T) {
	st := &memStore{jobs: reportJobs()}
	h := newTestServer(t, st, &fakeGeocoder{})

	rec := do(t, h, http.MethodGet, "/api/report?start=2024-01-01&end=2024-01-31&min_price=60&sort=jobs&order=asc", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "2024-01-01", st.filter.Start.Format("2006-01-02"))
	assert.Equal(t, "2024-01-31", st.filter.End.Format("2006-01-02"))
	assert.InDelta(t, 60, st.filter.MinPrice, 1e-9)

	body := decode(t, rec)
	zips := body["zips"].([]any)
	require.Len(t, zips, 1)
	assert.Equal(t, "62704", zips[0].(map[string]any)["zip"])
	filter := body["filter"].(map[string]any)
	assert.Equal(t, "jobs", filter["sort"])
	assert.Equal(t, "asc", filter["order"])
}

func TestReport_BadDateIsIgnored(t *testing.T) {
	st := &memStore{jobs: reportJobs()}
	h := newTestServer(t, st, &fakeGeocoder{})

	rec := do(t, h, http.MethodGet, "/api/report?start=someday", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, st.filter.Start.IsZero())
}

func TestReport_BadMinPrice(t *testing.T) {
	h := newTestServer(t, &memStore{}, &fakeGeocoder{})

	rec := do(t, h, http.MethodGet, "/api/report?min_price=-5", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReport_StoreError(t *testing.T) {
	h := newTestServer(t, &memStore{selectErr: errors.New("boom")}, &fakeGeocoder{})

	rec := do(t, h, http.MethodGet, "/api/report", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
