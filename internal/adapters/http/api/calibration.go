package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/peelforce/internal/domain/calibration"
	"github.com/okian/peelforce/internal/domain/model"
)

// defaultWindow is the number of recent raw samples averaged per reading.
const defaultWindow = 200

// CalibrationDependencies runs the calibration workflow.
type CalibrationDependencies interface {
	Calibration() model.CalibrationState
	PendingZero() model.OptFloat
	CaptureZero(ctx context.Context, window int) (float64, error)
	CaptureLoad(ctx context.Context, knownForceN float64, window int) (model.CalibrationState, error)
	Tare(ctx context.Context, window int) (model.CalibrationState, error)
	InstallCalibration(ctx context.Context, gain, offset float64) (model.CalibrationState, error)
	ResetCalibration(ctx context.Context) model.CalibrationState
}

// CalibrationHandler handles calibration requests.
type CalibrationHandler struct {
	deps CalibrationDependencies
}

// NewCalibrationHandler creates a new calibration handler.
func NewCalibrationHandler(deps CalibrationDependencies) *CalibrationHandler {
	return &CalibrationHandler{deps: deps}
}

type windowRequest struct {
	Window int `json:"window"`
}

type loadRequest struct {
	KnownForceN *float64 `json:"known_force_n"`
	Window      int      `json:"window"`
}

type installRequest struct {
	Gain   *float64 `json:"gain"`
	Offset *float64 `json:"offset"`
}

type calibrationResponse struct {
	Calibrated  bool     `json:"calibrated"`
	Gain        *float64 `json:"gain"`
	Offset      *float64 `json:"offset"`
	PendingZero *float64 `json:"pending_zero"`
}

func (h *CalibrationHandler) respond(w http.ResponseWriter, st model.CalibrationState) {
	writeJSON(w, http.StatusOK, calibrationResponse{
		Calibrated:  st.Calibrated(),
		Gain:        opt(st.Gain),
		Offset:      opt(st.Offset),
		PendingZero: opt(h.deps.PendingZero()),
	})
}

// HandleGet handles GET /calibration.
func (h *CalibrationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	h.respond(w, h.deps.Calibration())
}

// HandleZero handles POST /calibration/zero: the first step of a two-point
// calibration, taken with the cell unloaded.
func (h *CalibrationHandler) HandleZero(w http.ResponseWriter, r *http.Request) {
	const op = "api.calibration_zero"
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req windowRequest
	if err := decode(w, r, op, &req); err != nil {
		writeKindError(w, err)
		return
	}
	window, err := positiveOr(op, "window", req.Window, defaultWindow)
	if err != nil {
		writeKindError(w, err)
		return
	}
	if _, err := h.deps.CaptureZero(r.Context(), window); err != nil {
		writeKindError(w, classify(op, err))
		return
	}
	h.respond(w, h.deps.Calibration())
}

// HandleLoad handles POST /calibration/load: the second step, taken under a
// known force.
func (h *CalibrationHandler) HandleLoad(w http.ResponseWriter, r *http.Request) {
	const op = "api.calibration_load"
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req loadRequest
	if err := decode(w, r, op, &req); err != nil {
		writeKindError(w, err)
		return
	}
	if req.KnownForceN == nil {
		writeKindError(w, WrapKind(op, ErrBadRequest, errors.New("missing known_force_n")))
		return
	}
	window, err := positiveOr(op, "window", req.Window, defaultWindow)
	if err != nil {
		writeKindError(w, err)
		return
	}
	st, err := h.deps.CaptureLoad(r.Context(), *req.KnownForceN, window)
	if err != nil {
		writeKindError(w, classify(op, err))
		return
	}
	h.respond(w, st)
}

// HandleTare handles POST /calibration/tare: re-zero keeping the gain.
func (h *CalibrationHandler) HandleTare(w http.ResponseWriter, r *http.Request) {
	const op = "api.calibration_tare"
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req windowRequest
	if err := decode(w, r, op, &req); err != nil {
		writeKindError(w, err)
		return
	}
	window, err := positiveOr(op, "window", req.Window, defaultWindow)
	if err != nil {
		writeKindError(w, err)
		return
	}
	st, err := h.deps.Tare(r.Context(), window)
	if err != nil {
		writeKindError(w, classify(op, err))
		return
	}
	h.respond(w, st)
}

// HandleInstall handles POST /calibration/install with a known gain/offset pair.
func (h *CalibrationHandler) HandleInstall(w http.ResponseWriter, r *http.Request) {
	const op = "api.calibration_install"
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req installRequest
	if err := decode(w, r, op, &req); err != nil {
		writeKindError(w, err)
		return
	}
	if req.Gain == nil || req.Offset == nil {
		writeKindError(w, WrapKind(op, ErrBadRequest, errors.New("gain and offset are required")))
		return
	}
	st, err := h.deps.InstallCalibration(r.Context(), *req.Gain, *req.Offset)
	if err != nil {
		writeKindError(w, classify(op, err))
		return
	}
	h.respond(w, st)
}

// HandleReset handles POST /calibration/reset: back to raw passthrough.
func (h *CalibrationHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	h.respond(w, h.deps.ResetCalibration(r.Context()))
}

// classify maps calibration failures onto API kinds.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, calibration.ErrDegenerateCalibration):
		return WrapKind(op, ErrBadRequest, err)
	case errors.Is(err, calibration.ErrNoZero),
		errors.Is(err, calibration.ErrNotCalibrated),
		errors.Is(err, calibration.ErrNoSamples):
		return WrapKind(op, ErrConflict, err)
	}
	return Wrap(op, err)
}
