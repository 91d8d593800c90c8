package api

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/jobmap/internal/address"
)

type geocodeRequest struct {
	Address string `json:"address"`
}

type geocodeMiss struct {
	Error   string `json:"error"`
	Address string `json:"address"`
}

// handleGeocode resolves a single address from ?q= or a JSON body.
func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("q")
	if r.Method == http.MethodPost {
		var req geocodeRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Address != "" {
			raw = req.Address
		}
	}

	addr := address.Normalize(raw)
	if addr == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	if err := s.geocoder.Configured(); err != nil {
		zap.L().Error("api: geocoder not configured", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "geocoder is not configured")
		return
	}

	res := s.geocoder.GeocodeOnce(r.Context(), addr)
	if res == nil {
		writeJSON(w, http.StatusUnprocessableEntity, geocodeMiss{Error: "no match found", Address: addr})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type geocodeRunRequest struct {
	Limit int `json:"limit"`
}

// handleGeocodeRun geocodes a batch of stored jobs that still lack coordinates.
func (s *Server) handleGeocodeRun(w http.ResponseWriter, r *http.Request) {
	var req geocodeRunRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.geocoder.Configured(); err != nil {
		writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), "geocode: "))
		return
	}

	sum, err := s.runner.Run(r.Context(), req.Limit)
	if err != nil {
		zap.L().Error("api: geocode run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
