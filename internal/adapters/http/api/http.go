// Package api exposes the acquisition control signals and results over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/okian/peelforce/internal/domain/model"
)

// maxBodyBytes bounds request bodies; sample uploads are the largest.
const maxBodyBytes = 8 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	MonitoringDependencies
	CalibrationDependencies
	DisplayDependencies
	ResultDependencies
	StatsProvider
}

// Server wires HTTP routes for the control API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	monitoringHandler  *MonitoringHandler
	calibrationHandler *CalibrationHandler
	displayHandler     *DisplayHandler
	resultsHandler     *ResultsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		monitoringHandler:  NewMonitoringHandler(deps),
		calibrationHandler: NewCalibrationHandler(deps),
		displayHandler:     NewDisplayHandler(deps),
		resultsHandler:     NewResultsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("/monitoring", MetricsMiddleware(s.monitoringHandler.HandleStatus, "monitoring"))
	mux.HandleFunc("/monitoring/start", MetricsMiddleware(s.monitoringHandler.HandleStart, "monitoring_start"))
	mux.HandleFunc("/monitoring/stop", MetricsMiddleware(s.monitoringHandler.HandleStop, "monitoring_stop"))
	mux.HandleFunc("/monitoring/samples", MetricsMiddleware(s.monitoringHandler.HandleSamples, "monitoring_samples"))

	mux.HandleFunc("/calibration", MetricsMiddleware(s.calibrationHandler.HandleGet, "calibration"))
	mux.HandleFunc("/calibration/zero", MetricsMiddleware(s.calibrationHandler.HandleZero, "calibration_zero"))
	mux.HandleFunc("/calibration/load", MetricsMiddleware(s.calibrationHandler.HandleLoad, "calibration_load"))
	mux.HandleFunc("/calibration/tare", MetricsMiddleware(s.calibrationHandler.HandleTare, "calibration_tare"))
	mux.HandleFunc("/calibration/install", MetricsMiddleware(s.calibrationHandler.HandleInstall, "calibration_install"))
	mux.HandleFunc("/calibration/reset", MetricsMiddleware(s.calibrationHandler.HandleReset, "calibration_reset"))

	mux.HandleFunc("/display", MetricsMiddleware(s.displayHandler.HandleDisplay, "display"))
	mux.HandleFunc("/position", MetricsMiddleware(s.displayHandler.HandlePosition, "position"))
	mux.HandleFunc("/diagnostics/recent", MetricsMiddleware(s.displayHandler.HandleRecent, "diagnostics_recent"))

	mux.HandleFunc("/results", MetricsMiddleware(s.resultsHandler.HandleList, "results"))
	mux.HandleFunc("/results/", MetricsMiddleware(s.resultsHandler.HandleLayer, "results_layer"))
	mux.HandleFunc("/sessions/", MetricsMiddleware(s.resultsHandler.HandleSession, "sessions"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeKindError maps an error kind to its HTTP status.
func writeKindError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, ErrNotArmed):
		writeError(w, http.StatusConflict, "not_armed", err)
	case errors.Is(err, ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// allow writes 405 and returns false unless r uses method.
func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	return false
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, op string, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}

// num returns nil for values JSON cannot carry.
func num(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func opt(o model.OptFloat) *float64 {
	if !o.Valid {
		return nil
	}
	return num(o.V)
}

func toOpt(p *float64) model.OptFloat {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return model.None()
	}
	return model.Some(*p)
}

// positiveOr returns def for an unset value and rejects negative ones.
func positiveOr(op, name string, v, def int) (int, error) {
	switch {
	case v == 0:
		return def, nil
	case v < 0:
		return 0, WrapKind(op, ErrBadRequest, fmt.Errorf("%s must be positive, got %d", name, v))
	}
	return v, nil
}
