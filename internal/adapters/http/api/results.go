package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/peelforce/internal/adapters/repository"
	"github.com/okian/peelforce/internal/adapters/sink"
	"github.com/okian/peelforce/internal/domain/model"
)

const (
	defaultResultLimit = 20
	maxResultLimit     = 256
)

// ResultDependencies reads completed session results.
type ResultDependencies interface {
	Latest(ctx context.Context, n int) ([]model.PeelResult, error)
	ByLayer(ctx context.Context, layerID int64) ([]model.PeelResult, error)
	Session(ctx context.Context, sessionID string) (model.PeelResult, error)
}

// ResultsHandler handles result queries.
type ResultsHandler struct {
	deps ResultDependencies
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(deps ResultDependencies) *ResultsHandler {
	return &ResultsHandler{deps: deps}
}

// metricsResponse is the JSON shape of AdhesionMetrics. Non-finite values
// are reported as null.
type metricsResponse struct {
	LayerID     int64               `json:"layer_id"`
	SessionID   string              `json:"session_id"`
	CompletedAt time.Time           `json:"completed_at"`
	SampleCount int                 `json:"sample_count"`
	Metrics     map[string]*float64 `json:"metrics"`
}

func newMetricsResponse(m model.AdhesionMetrics) metricsResponse {
	fields := m.Fields()
	out := metricsResponse{
		LayerID:     m.LayerID,
		SessionID:   m.SessionID,
		CompletedAt: m.CompletedAt,
		SampleCount: m.SampleCount,
		Metrics:     make(map[string]*float64, len(fields)),
	}
	for _, f := range fields {
		out.Metrics[f.Name] = num(f.Value)
	}
	return out
}

func newMetricsList(rs []model.PeelResult) []metricsResponse {
	out := make([]metricsResponse, len(rs))
	for i, r := range rs {
		out[i] = newMetricsResponse(r.Metrics)
	}
	return out
}

// HandleList handles GET /results?limit=20, newest first.
func (h *ResultsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.results"
	if !allow(w, r, http.MethodGet) {
		return
	}
	limit := defaultResultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			writeKindError(w, WrapKind(op, ErrBadRequest, errors.New("limit must be a positive integer")))
			return
		}
		limit = min(v, maxResultLimit)
	}
	rs, err := h.deps.Latest(r.Context(), limit)
	if err != nil {
		writeKindError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newMetricsList(rs))
}

// HandleLayer handles GET /results/{layer}.
func (h *ResultsHandler) HandleLayer(w http.ResponseWriter, r *http.Request) {
	const op = "api.results_layer"
	if !allow(w, r, http.MethodGet) {
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/results/")
	layer, err := strconv.ParseInt(path, 10, 64)
	if path == "" || err != nil {
		writeKindError(w, WrapKind(op, ErrBadRequest, errors.New("layer must be an integer")))
		return
	}
	rs, err := h.deps.ByLayer(r.Context(), layer)
	if err != nil {
		writeKindError(w, notFound(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newMetricsList(rs))
}

// HandleSession handles GET /sessions/{id} and GET /sessions/{id}/plot.png.
func (h *ResultsHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.session"
	if !allow(w, r, http.MethodGet) {
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	id, rest, _ := strings.Cut(path, "/")
	if id == "" || (rest != "" && rest != "plot.png") {
		writeKindError(w, NewKind(op, ErrNotFound))
		return
	}
	res, err := h.deps.Session(r.Context(), id)
	if err != nil {
		writeKindError(w, notFound(op, err))
		return
	}
	if rest == "" {
		writeJSON(w, http.StatusOK, newMetricsResponse(res.Metrics))
		return
	}

	img, err := sink.RenderPNG(res)
	if errors.Is(err, sink.ErrNothingToPlot) {
		writeKindError(w, WrapKind(op, ErrNotFound, err))
		return
	}
	if err != nil {
		writeKindError(w, Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func notFound(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return WrapKind(op, ErrNotFound, err)
	}
	return Wrap(op, err)
}
