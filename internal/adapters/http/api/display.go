package api

import (
	"net/http"
	"strconv"

	"github.com/okian/peelforce/internal/domain/model"
)

const (
	defaultRecent = 100
	maxRecent     = 1000
)

// DisplayDependencies exposes the live view and the position override.
type DisplayDependencies interface {
	Display() (model.DisplayUpdate, uint64)
	SetPosition(mm float64)
	ClearPosition()
	Recent(n int) []model.RawSample
}

// DisplayHandler handles live display, position and diagnostics requests.
type DisplayHandler struct {
	deps DisplayDependencies
}

// NewDisplayHandler creates a new display handler.
func NewDisplayHandler(deps DisplayDependencies) *DisplayHandler {
	return &DisplayHandler{deps: deps}
}

type displayResponse struct {
	Timestamp  float64  `json:"t"`
	Raw        *float64 `json:"raw"`
	Force      *float64 `json:"force_n"`
	Position   *float64 `json:"position_mm"`
	Calibrated bool     `json:"calibrated"`
	Updates    uint64   `json:"updates"`
}

type positionRequest struct {
	Position *float64 `json:"position_mm"`
}

type rawSampleResponse struct {
	Timestamp float64  `json:"t"`
	Raw       *float64 `json:"raw"`
	Position  *float64 `json:"position_mm"`
}

// HandleDisplay handles GET /display with the latest rate-limited update.
func (h *DisplayHandler) HandleDisplay(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	u, n := h.deps.Display()
	writeJSON(w, http.StatusOK, displayResponse{
		Timestamp:  u.Timestamp,
		Raw:        num(u.Raw),
		Force:      opt(u.Force),
		Position:   opt(u.Position),
		Calibrated: u.Calibrated,
		Updates:    n,
	})
}

// HandlePosition handles POST /position. A null position clears the override.
func (h *DisplayHandler) HandlePosition(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_position"
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req positionRequest
	if err := decode(w, r, op, &req); err != nil {
		writeKindError(w, err)
		return
	}
	p := toOpt(req.Position)
	if p.Valid {
		h.deps.SetPosition(p.V)
	} else {
		h.deps.ClearPosition()
	}
	writeJSON(w, http.StatusOK, positionRequest{Position: opt(p)})
}

// HandleRecent handles GET /diagnostics/recent?n=100 with the newest raw
// samples from the high-frequency ring, oldest first.
func (h *DisplayHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	const op = "api.recent"
	if !allow(w, r, http.MethodGet) {
		return
	}
	n := defaultRecent
	if s := r.URL.Query().Get("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			writeKindError(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		n = min(v, maxRecent)
	}
	samples := h.deps.Recent(n)
	out := make([]rawSampleResponse, len(samples))
	for i, s := range samples {
		out[i] = rawSampleResponse{Timestamp: s.Timestamp, Raw: num(s.Raw), Position: opt(s.Position)}
	}
	writeJSON(w, http.StatusOK, out)
}
