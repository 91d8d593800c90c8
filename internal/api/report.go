package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/jobmap/internal/aggregate"
	"github.com/sells-group/jobmap/internal/store"
	"github.com/sells-group/jobmap/internal/validate"
)

type reportResponse struct {
	Filter reportFilter          `json:"filter"`
	Totals aggregate.Totals      `json:"totals"`
	Zips   []aggregate.ZipMetric `json:"zips"`
}

type reportFilter struct {
	Start    string             `json:"start,omitempty"`
	End      string             `json:"end,omitempty"`
	MinPrice float64            `json:"minPrice,omitempty"`
	Sort     aggregate.SortField `json:"sort"`
	Order    string             `json:"order"`
}

// handleReport aggregates stored jobs by zip.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var f store.Filter
	rf := reportFilter{
		Sort:  aggregate.ParseSortField(q.Get("sort")),
		Order: "desc",
	}
	if strings.EqualFold(q.Get("order"), "asc") {
		rf.Order = "asc"
	}

	// Unparseable bounds are ignored rather than rejected.
	if d, ok := parseDateParam(q.Get("start")); ok {
		f.Start, rf.Start = d, d.Format(validate.DateLayout)
	}
	if d, ok := parseDateParam(q.Get("end")); ok {
		f.End, rf.End = d, d.Format(validate.DateLayout)
	}
	if v := strings.TrimSpace(q.Get("min_price")); v != "" {
		p, err := validate.ParsePrice(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "min_price must be a non-negative number")
			return
		}
		f.MinPrice, rf.MinPrice = p, p
	}

	jobs, err := s.store.Select(r.Context(), f)
	if err != nil {
		zap.L().Error("api: report select failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rep := aggregate.Aggregate(jobs, &aggregate.DateRange{Start: rf.Start, End: rf.End})
	writeJSON(w, http.StatusOK, reportResponse{
		Filter: rf,
		Totals: rep.Totals,
		Zips:   rep.Ranked(rf.Sort, rf.Order == "desc"),
	})
}

func parseDateParam(s string) (time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, false
	}
	d, err := validate.ParseDate(s)
	if err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(validate.DateLayout, d)
	return t, err == nil
}

// parseIntParam returns def when s is empty or not an integer.
func parseIntParam(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
