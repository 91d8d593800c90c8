package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/jobmap/internal/importer"
	"github.com/sells-group/jobmap/internal/model"
	"github.com/sells-group/jobmap/internal/sheet"
)

type importRequest struct {
	Rows    []model.RawRow    `json:"rows"`
	Mapping map[string]string `json:"mapping,omitempty"`
	Geocode *bool             `json:"geocode,omitempty"`
}

// handleImport validates and stores uploaded rows.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Rows == nil {
		writeError(w, http.StatusBadRequest, "rows is required")
		return
	}

	mapping, err := sheet.MappingFromStrings(req.Mapping)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	geocodeRows := s.geocodeOnLoad
	if req.Geocode != nil {
		geocodeRows = *req.Geocode
	}

	res, err := s.importer.Import(r.Context(), req.Rows, importer.Options{
		Mapping:      mapping,
		Geocode:      geocodeRows,
		GeocodeBatch: s.geocodeBatch,
	})
	if err != nil {
		zap.L().Error("api: import failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, struct {
			model.ImportResult
			Error string `json:"error"`
		}{res, err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}
