package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/jobmap/internal/aggregate"
	"github.com/sells-group/jobmap/internal/model"
	"github.com/sells-group/jobmap/internal/store"
	"github.com/sells-group/jobmap/internal/validate"
)

// handleJobsGeoJSON serves geocoded jobs as map pins.
func (s *Server) handleJobsGeoJSON(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var f store.Filter
	if d, ok := parseDateParam(q.Get("start")); ok {
		f.Start = d
	}
	if d, ok := parseDateParam(q.Get("end")); ok {
		f.End = d
	}
	if v := strings.TrimSpace(q.Get("min_price")); v != "" {
		p, err := validate.ParsePrice(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "min_price must be a non-negative number")
			return
		}
		f.MinPrice = p
	}
	limit := parseIntParam(q.Get("limit"), 0)

	jobs, err := s.store.Select(r.Context(), f)
	if err != nil {
		zap.L().Error("api: geojson select failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	fc := JobsFeatureCollection(jobs, limit)
	body, err := json.Marshal(fc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode geojson")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// JobsFeatureCollection builds one Point feature per job with usable
// coordinates. A positive limit caps the feature count.
func JobsFeatureCollection(jobs []model.Job, limit int) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for _, j := range jobs {
		if !j.HasCoordinates() {
			continue
		}
		if limit > 0 && len(fc.Features) >= limit {
			break
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       j.ID,
			Geometry: geom.NewPointFlat(geom.XY, []float64{*j.Lng, *j.Lat}),
			Properties: map[string]any{
				"name":         j.Name,
				"service_date": j.ServiceDate,
				"price":        j.Price,
				"service_type": j.ServiceType,
				"zip":          aggregate.NormalizeZip(j.Zip),
				"address":      j.AddressLine(),
			},
		})
	}
	return fc
}
