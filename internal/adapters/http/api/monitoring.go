package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/peelforce/internal/domain/model"
	"github.com/okian/peelforce/internal/domain/session"
)

// MonitoringDependencies drives the layer monitoring session.
type MonitoringDependencies interface {
	StartMonitoring(ctx context.Context, layerID int64, bandStart, bandEnd model.OptFloat) string
	StopMonitoring(ctx context.Context) (model.PeelResult, bool)
	AddSample(ctx context.Context, timestamp float64, position, force model.OptFloat)
	SessionStatus() session.Status
}

// MonitoringHandler handles the start/stop/add_sample control signals.
type MonitoringHandler struct {
	deps MonitoringDependencies
}

// NewMonitoringHandler creates a new monitoring handler.
func NewMonitoringHandler(deps MonitoringDependencies) *MonitoringHandler {
	return &MonitoringHandler{deps: deps}
}

type startRequest struct {
	LayerID   *int64   `json:"layer_id"`
	BandStart *float64 `json:"band_start_mm"`
	BandEnd   *float64 `json:"band_end_mm"`
}

type sampleRequest struct {
	Timestamp *float64 `json:"t"`
	Position  *float64 `json:"position_mm"`
	Force     *float64 `json:"force_n"`
}

type samplesRequest struct {
	Samples []sampleRequest `json:"samples"`
}

type statusResponse struct {
	SessionID string   `json:"session_id,omitempty"`
	LayerID   int64    `json:"layer_id"`
	Armed     bool     `json:"armed"`
	Samples   int      `json:"samples"`
	InBand    int      `json:"in_band_samples"`
	BandStart *float64 `json:"band_start_mm"`
	BandEnd   *float64 `json:"band_end_mm"`
}

type stopResponse struct {
	Status string           `json:"status"`
	Result *metricsResponse `json:"result,omitempty"`
}

func newStatusResponse(st session.Status) statusResponse {
	return statusResponse{
		SessionID: st.SessionID,
		LayerID:   st.LayerID,
		Armed:     st.Armed,
		Samples:   st.Samples,
		InBand:    st.InBand,
		BandStart: opt(st.BandStart),
		BandEnd:   opt(st.BandEnd),
	}
}

// HandleStatus handles GET /monitoring.
func (h *MonitoringHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, newStatusResponse(h.deps.SessionStatus()))
}

// HandleStart handles POST /monitoring/start. Starting while armed discards
// the buffered samples.
func (h *MonitoringHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_monitoring"
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req startRequest
	if err := decode(w, r, op, &req); err != nil {
		writeKindError(w, err)
		return
	}
	if req.LayerID == nil {
		writeKindError(w, WrapKind(op, ErrBadRequest, errors.New("missing layer_id")))
		return
	}
	h.deps.StartMonitoring(r.Context(), *req.LayerID, toOpt(req.BandStart), toOpt(req.BandEnd))
	writeJSON(w, http.StatusOK, newStatusResponse(h.deps.SessionStatus()))
}

// HandleStop handles POST /monitoring/stop. Fewer than two buffered samples
// yield no result.
func (h *MonitoringHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	const op = "api.stop_monitoring"
	if !allow(w, r, http.MethodPost) {
		return
	}
	if !h.deps.SessionStatus().Armed {
		writeKindError(w, NewKind(op, ErrNotArmed))
		return
	}
	res, ok := h.deps.StopMonitoring(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, stopResponse{Status: "insufficient_samples"})
		return
	}
	m := newMetricsResponse(res.Metrics)
	status := "completed"
	if res.Metrics.IsEmpty() {
		status = "empty"
	}
	writeJSON(w, http.StatusOK, stopResponse{Status: status, Result: &m})
}

// HandleSamples handles POST /monitoring/samples for externally acquired
// samples.
func (h *MonitoringHandler) HandleSamples(w http.ResponseWriter, r *http.Request) {
	const op = "api.add_samples"
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req samplesRequest
	if err := decode(w, r, op, &req); err != nil {
		writeKindError(w, err)
		return
	}
	for i, s := range req.Samples {
		if s.Timestamp == nil {
			writeKindError(w, WrapKind(op, ErrBadRequest, fmt.Errorf("sample %d has no t", i)))
			return
		}
	}
	if !h.deps.SessionStatus().Armed {
		writeKindError(w, NewKind(op, ErrNotArmed))
		return
	}
	for _, s := range req.Samples {
		h.deps.AddSample(r.Context(), *s.Timestamp, toOpt(s.Position), toOpt(s.Force))
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": len(req.Samples)})
}
